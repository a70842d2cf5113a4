package thorlabs_test

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/opticslab/gopm/comm"
	"github.com/opticslab/gopm/scpi"
	"github.com/opticslab/gopm/thorlabs"
	"github.com/opticslab/gopm/tlpm"
)

type scriptedConn struct {
	sent    bytes.Buffer
	replies []string
}

func (c *scriptedConn) Write(p []byte) (int, error) {
	return c.sent.Write(p)
}

func (c *scriptedConn) Read(p []byte) (int, error) {
	if len(c.replies) == 0 {
		return 0, io.EOF
	}
	r := c.replies[0]
	c.replies = c.replies[1:]
	return copy(p, r+"\n"), nil
}

func (c *scriptedConn) Close() error { return nil }

func pm103Over(conn *scriptedConn) *thorlabs.PM103 {
	pool := comm.NewPool(1, time.Minute, func() (io.ReadWriteCloser, error) {
		return conn, nil
	})
	p := &thorlabs.PM103{}
	p.SCPI = scpi.SCPI{Pool: pool, Handshaking: true}
	return p
}

func TestSetWavelengthWire(t *testing.T) {
	conn := &scriptedConn{replies: []string{`+0,"No error"`}}
	p := pm103Over(conn)
	if err := p.SetWavelength(632.8, 1); err != nil {
		t.Fatalf("SetWavelength errored: %v", err)
	}
	sent := conn.sent.String()
	if !strings.Contains(sent, "SENSe1:CORRection:WAVelength 632.8") {
		t.Errorf("wire bytes %q missing the wavelength command", sent)
	}
}

func TestMeasurePowerParses(t *testing.T) {
	conn := &scriptedConn{replies: []string{`9.87E-04;+0,"No error"`}}
	p := pm103Over(conn)
	f, err := p.MeasurePower(1)
	if err != nil {
		t.Fatalf("MeasurePower errored: %v", err)
	}
	if f != 9.87e-4 {
		t.Errorf("power = %v, want 9.87e-4", f)
	}
}

func TestParameterErrorTranslation(t *testing.T) {
	conn := &scriptedConn{replies: []string{`-220,"Parameter error"`}}
	p := pm103Over(conn)
	err := p.SetWavelength(99999, 1)
	if _, ok := err.(tlpm.InvalidParameterError); !ok {
		t.Errorf("expected InvalidParameterError, got %T: %v", err, err)
	}
}

func TestBadUnitRejectedLocally(t *testing.T) {
	conn := &scriptedConn{}
	p := pm103Over(conn)
	err := p.SetPowerUnit("parsecs", 1)
	if _, ok := err.(tlpm.InvalidParameterError); !ok {
		t.Errorf("expected InvalidParameterError, got %T: %v", err, err)
	}
	if conn.sent.Len() != 0 {
		t.Error("a rejected unit should never reach the wire")
	}
}

func TestPMErrorStrings(t *testing.T) {
	// code 3 is in the table; 12345 is not
	if s := (thorlabs.PMError{}).Error(); !strings.Contains(s, "UNKNOWN") {
		t.Errorf("zero-value error = %q, want unknown-code text", s)
	}
}

func fastFrame(prefix string, samples []thorlabs.Sample) []byte {
	var b bytes.Buffer
	b.WriteString(prefix)
	b.WriteByte(',')
	for _, s := range samples {
		var tuple [8]byte
		binary.LittleEndian.PutUint32(tuple[0:4], s.T)
		binary.LittleEndian.PutUint32(tuple[4:8], math.Float32bits(float32(s.P)))
		b.Write(tuple[:])
	}
	return b.Bytes()
}

func TestParseFastStream(t *testing.T) {
	want := []thorlabs.Sample{
		{T: 0, P: 1e-3},
		{T: 100, P: 2e-3},
		{T: 200, P: 1.5e-3},
	}
	got, err := thorlabs.ParseFastStream(fastFrame("1", want))
	if err != nil {
		t.Fatalf("parse errored: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("decoded %d samples, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].T != want[i].T {
			t.Errorf("sample %d: t = %d, want %d", i, got[i].T, want[i].T)
		}
		if math.Abs(got[i].P-want[i].P) > 1e-9 {
			t.Errorf("sample %d: p = %v, want %v", i, got[i].P, want[i].P)
		}
	}
}

func TestParseFastStreamEmptyFrame(t *testing.T) {
	got, err := thorlabs.ParseFastStream([]byte("0,"))
	if err != nil {
		t.Fatalf("empty frame should not error, got %v", err)
	}
	if len(got) != 0 {
		t.Errorf("empty frame decoded %d samples", len(got))
	}
}

func TestParseFastStreamMalformed(t *testing.T) {
	if _, err := thorlabs.ParseFastStream([]byte("no comma here")); err == nil {
		t.Error("expected an error for a frame with no prefix")
	}
	frame := fastFrame("1", []thorlabs.Sample{{T: 0, P: 1}})
	if _, err := thorlabs.ParseFastStream(frame[:len(frame)-3]); err == nil {
		t.Error("expected an error for a truncated body")
	}
}

func TestEnergyTrapezoid(t *testing.T) {
	// 1 W held for 1 s is 1 J
	flat := []thorlabs.Sample{{T: 0, P: 1}, {T: 1000000, P: 1}}
	if j := thorlabs.EnergyTrapezoid(flat); math.Abs(j-1) > 1e-12 {
		t.Errorf("flat integral = %v, want 1", j)
	}
	// a ramp from 0 to 1 W over 1 s is 0.5 J
	ramp := []thorlabs.Sample{{T: 0, P: 0}, {T: 500000, P: 0.5}, {T: 1000000, P: 1}}
	if j := thorlabs.EnergyTrapezoid(ramp); math.Abs(j-0.5) > 1e-12 {
		t.Errorf("ramp integral = %v, want 0.5", j)
	}
	if j := thorlabs.EnergyTrapezoid(nil); j != 0 {
		t.Errorf("no samples should integrate to 0, got %v", j)
	}
}
