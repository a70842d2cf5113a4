package thorlabs

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Sample is one point from the console's fast power stream
type Sample struct {
	// T is the instrument timestamp in microseconds since stream start
	T uint32 `json:"t_us"`

	// P is the power in watts
	P float64 `json:"p_w"`
}

const fastTupleSize = 8 // uint32 timestamp + float32 power

/*ParseFastStream decodes one frame of the PM103 fast power stream.

A frame is an ASCII status prefix terminated by a comma, followed by packed
little endian tuples of a uint32 timestamp in microseconds and a float32 power
in watts.  A frame whose prefix begins with '0' carries no samples; the
console emits these while its sample buffer is filling.
*/
func ParseFastStream(frame []byte) ([]Sample, error) {
	idx := bytes.IndexByte(frame, ',')
	if idx < 0 {
		return nil, fmt.Errorf("fast stream frame has no status prefix")
	}
	prefix := frame[:idx]
	body := frame[idx+1:]
	if len(prefix) > 0 && prefix[0] == '0' {
		return nil, nil
	}
	if len(body)%fastTupleSize != 0 {
		return nil, fmt.Errorf("fast stream body of %d bytes is not a whole number of samples", len(body))
	}
	samples := make([]Sample, 0, len(body)/fastTupleSize)
	for off := 0; off < len(body); off += fastTupleSize {
		t := binary.LittleEndian.Uint32(body[off : off+4])
		p := math.Float32frombits(binary.LittleEndian.Uint32(body[off+4 : off+8]))
		samples = append(samples, Sample{T: t, P: float64(p)})
	}
	return samples, nil
}

// EnergyTrapezoid integrates power over time by the trapezoid rule and
// returns the energy in joules.  Fewer than two samples integrate to zero.
func EnergyTrapezoid(samples []Sample) float64 {
	var joules float64
	for i := 1; i < len(samples); i++ {
		dt := float64(samples[i].T-samples[i-1].T) * 1e-6
		joules += dt * (samples[i].P + samples[i-1].P) / 2
	}
	return joules
}

// FetchSamples pulls one buffered frame from the console and decodes it.  An
// empty slice with a nil error means the buffer had nothing yet.  The query
// goes out without handshaking; the binary body could contain the handshake
// delimiter.
func (p *PM103) FetchSamples() ([]Sample, error) {
	resp, err := p.RawReply("FETCh:ARRay?")
	if err != nil {
		return nil, err
	}
	return ParseFastStream(resp)
}
