/*Package comm provides pooled connections and small io wrappers for talking
to benchtop instruments over TCP and serial lines.

The Pool keeps a bounded set of connections to one instrument, hands them out
one at a time, and closes them after a quiet period.  The wrappers layer line
termination and deadlines on top of any io.ReadWriteCloser, so the protocol
code above them can work with clean request/reply semantics regardless of
transport.
*/
package comm

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/tarm/serial"
)

// ErrTerminatorNotFound is generated when a reply ends without the expected
// termination byte
var ErrTerminatorNotFound = errors.New("termination byte not found")

// Maker returns a new connection to an instrument.  Use a closure to bind the
// address and options.
type Maker func() (io.ReadWriteCloser, error)

// NewTCPMaker returns a Maker that dials addr with a connect timeout and sets
// read and write deadlines on the resulting connection.  Dialing retries with
// exponential backoff when the remote refuses the connection; embedded LAN
// stacks on instruments frequently refuse for a moment after a previous
// socket closes.
func NewTCPMaker(addr string, timeout time.Duration) Maker {
	return func() (io.ReadWriteCloser, error) {
		var conn net.Conn
		op := func() error {
			var err error
			conn, err = net.DialTimeout("tcp", addr, timeout)
			if err != nil && strings.Contains(strings.ToLower(err.Error()), "refused") {
				return err
			}
			if err != nil {
				return backoff.Permanent(err)
			}
			return nil
		}
		err := backoff.Retry(op, &backoff.ExponentialBackOff{
			InitialInterval:     25 * time.Millisecond,
			RandomizationFactor: 0.,
			Multiplier:          2.,
			MaxInterval:         1 * time.Second,
			MaxElapsedTime:      3 * time.Second,
			Clock:               backoff.SystemClock})
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", addr, err)
		}
		return &Timeout{Conn: conn, PerOp: timeout}, nil
	}
}

// NewSerialMaker returns a Maker that opens the serial port described by conf
func NewSerialMaker(conf *serial.Config) Maker {
	return func() (io.ReadWriteCloser, error) {
		return serial.OpenPort(conf)
	}
}

// Timeout wraps a net.Conn and refreshes the read and write deadlines before
// each operation, so a wedged instrument surfaces as a timeout error instead
// of a hang
type Timeout struct {
	net.Conn

	// PerOp is the deadline applied to each Read and Write
	PerOp time.Duration
}

func (t *Timeout) Read(p []byte) (int, error) {
	if err := t.Conn.SetReadDeadline(time.Now().Add(t.PerOp)); err != nil {
		return 0, err
	}
	return t.Conn.Read(p)
}

func (t *Timeout) Write(p []byte) (int, error) {
	if err := t.Conn.SetWriteDeadline(time.Now().Add(t.PerOp)); err != nil {
		return 0, err
	}
	return t.Conn.Write(p)
}

// Terminator layers line termination over a connection.  Writes get the Tx
// byte appended if it is absent; Reads consume through the Rx byte and strip
// it.  The embedded reader buffers, so do not read from the underlying
// connection directly once a Terminator wraps it.
type Terminator struct {
	rw io.ReadWriter
	br *bufio.Reader

	Tx byte
	Rx byte
}

// NewTerminator wraps rw with the given termination bytes
func NewTerminator(rw io.ReadWriter, tx, rx byte) *Terminator {
	return &Terminator{rw: rw, br: bufio.NewReader(rw), Tx: tx, Rx: rx}
}

func (t *Terminator) Write(p []byte) (int, error) {
	if len(p) > 0 && p[len(p)-1] == t.Tx {
		return t.rw.Write(p)
	}
	// io.Writer forbids modifying p, even spare capacity past len(p)
	buf := make([]byte, len(p)+1)
	copy(buf, p)
	buf[len(p)] = t.Tx
	n, err := t.rw.Write(buf)
	if n > len(p) {
		n = len(p)
	}
	return n, err
}

// Read returns one reply with the termination byte removed.  p must be large
// enough for the whole reply.
func (t *Terminator) Read(p []byte) (int, error) {
	buf, err := t.br.ReadBytes(t.Rx)
	if err != nil {
		if len(buf) > 0 {
			return copy(p, buf), ErrTerminatorNotFound
		}
		return 0, err
	}
	buf = bytes.TrimSuffix(buf, []byte{t.Rx})
	return copy(p, buf), nil
}

// Close closes the underlying connection if it can be closed
func (t *Terminator) Close() error {
	if c, ok := t.rw.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
