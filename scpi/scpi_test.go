package scpi_test

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/opticslab/gopm/comm"
	"github.com/opticslab/gopm/scpi"
)

// scriptedConn replays canned replies and records what was written
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

func poolOf(conn *scriptedConn) *comm.Pool {
	return comm.NewPool(1, time.Minute, func() (io.ReadWriteCloser, error) {
		return conn, nil
	})
}

func TestWriteAppendsTerminator(t *testing.T) {
	conn := &scriptedConn{}
	s := &scpi.SCPI{Pool: poolOf(conn)}
	if err := s.Write("SENS:CORR:WAV 633"); err != nil {
		t.Fatalf("write errored: %v", err)
	}
	if got := conn.sent.String(); got != "SENS:CORR:WAV 633\n" {
		t.Errorf("wire bytes = %q", got)
	}
}

func TestReadFloat(t *testing.T) {
	conn := &scriptedConn{replies: []string{"1.234E-03"}}
	s := &scpi.SCPI{Pool: poolOf(conn)}
	f, err := s.ReadFloat("MEAS:POW?")
	if err != nil {
		t.Fatalf("read errored: %v", err)
	}
	if f != 1.234e-3 {
		t.Errorf("value = %v, want 1.234e-3", f)
	}
}

func TestHandshakingAcceptsCleanReply(t *testing.T) {
	conn := &scriptedConn{replies: []string{`+0,"No error"`}}
	s := &scpi.SCPI{Pool: poolOf(conn), Handshaking: true}
	if err := s.Write("SENS:AVER:COUN 100"); err != nil {
		t.Fatalf("handshook write errored: %v", err)
	}
	sent := conn.sent.String()
	if !bytes.Contains([]byte(sent), []byte("*CLS")) ||
		!bytes.Contains([]byte(sent), []byte("SYSTem:ERRor?")) {
		t.Errorf("handshaking did not bracket the command: %q", sent)
	}
}

func TestHandshakingSurfacesDeviceError(t *testing.T) {
	conn := &scriptedConn{replies: []string{`-220,"Parameter error"`}}
	s := &scpi.SCPI{Pool: poolOf(conn), Handshaking: true}
	err := s.Write("SENS:CORR:WAV 99999")
	if err == nil {
		t.Fatal("expected the device error to surface")
	}
	if scpi.ErrorCode(err) != -220 {
		t.Errorf("code = %d, want -220", scpi.ErrorCode(err))
	}
}

func TestWriteReadStripsHandshakePiece(t *testing.T) {
	conn := &scriptedConn{replies: []string{`632.8;+0,"No error"`}}
	s := &scpi.SCPI{Pool: poolOf(conn), Handshaking: true}
	resp, err := s.ReadString("SENS:CORR:WAV?")
	if err != nil {
		t.Fatalf("read errored: %v", err)
	}
	if resp != "632.8" {
		t.Errorf("reply = %q, want the error piece stripped", resp)
	}
}

// chatterConn is safe for concurrent use; it records each write as one
// message and always answers a clean error query
type chatterConn struct {
	mu   sync.Mutex
	msgs []string
}

func (c *chatterConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	c.msgs = append(c.msgs, string(p))
	c.mu.Unlock()
	return len(p), nil
}

func (c *chatterConn) Read(p []byte) (int, error) {
	return copy(p, "+0,\"No error\"\n"), nil
}

func (c *chatterConn) Close() error { return nil }

func (c *chatterConn) messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.msgs...)
}

func TestRawSkipsHandshake(t *testing.T) {
	conn := &chatterConn{}
	pool := comm.NewPool(1, time.Minute, func() (io.ReadWriteCloser, error) {
		return conn, nil
	})
	s := &scpi.SCPI{Pool: pool, Handshaking: true}
	if _, err := s.Raw("*IDN?"); err != nil {
		t.Fatalf("raw query errored: %v", err)
	}
	if err := s.Write("SENS:AVER:COUN 10"); err != nil {
		t.Fatalf("write errored: %v", err)
	}
	msgs := conn.messages()
	if len(msgs) != 2 {
		t.Fatalf("recorded %d messages, want 2", len(msgs))
	}
	if strings.Contains(msgs[0], "SYSTem:ERRor?") {
		t.Errorf("raw command was handshaked: %q", msgs[0])
	}
	if !strings.Contains(msgs[1], "SYSTem:ERRor?") {
		t.Errorf("write after a raw command lost its handshake: %q", msgs[1])
	}
}

func TestConcurrentRawNeverStripsHandshake(t *testing.T) {
	conn := &chatterConn{}
	pool := comm.NewPool(1, time.Minute, func() (io.ReadWriteCloser, error) {
		return conn, nil
	})
	s := &scpi.SCPI{Pool: pool, Handshaking: true}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			if err := s.Write("SENS:AVER:COUN 10"); err != nil {
				t.Errorf("write errored: %v", err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			if _, err := s.Raw("*IDN?"); err != nil {
				t.Errorf("raw errored: %v", err)
				return
			}
		}
	}()
	wg.Wait()

	for _, msg := range conn.messages() {
		set := strings.Contains(msg, "SENS:AVER:COUN")
		shook := strings.Contains(msg, "SYSTem:ERRor?")
		if set && !shook {
			t.Fatalf("set command went out unhandshaked: %q", msg)
		}
		if !set && shook {
			t.Fatalf("raw command was handshaked: %q", msg)
		}
	}
}

func TestErrorCode(t *testing.T) {
	if c := scpi.ErrorCode(nil); c != 0 {
		t.Errorf("nil error should code 0, got %d", c)
	}
	if c := scpi.ErrorCode(errors.New(`-113,"Undefined header"`)); c != -113 {
		t.Errorf("code = %d, want -113", c)
	}
	if c := scpi.ErrorCode(errors.New("garbage")); c != 0 {
		t.Errorf("unparseable error should code 0, got %d", c)
	}
}
