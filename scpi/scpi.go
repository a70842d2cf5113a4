// Package scpi provides primitives for working with devices that have SCPI
// interfaces
package scpi

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/opticslab/gopm/comm"
)

const replyBufSize = 1500

// SCPI encapsulates line-oriented SCPI communication over a connection pool
type SCPI struct {
	Pool *comm.Pool

	// Handshaking appends an error query to every message and checks the
	// reply, so a rejected command surfaces immediately instead of rotting
	// in the instrument's error queue
	Handshaking bool
}

// Write sends a command to the device.  With Handshaking, the command is
// bracketed by *CLS and an error query and the response is checked.  Intended
// for set operations.
func (s *SCPI) Write(cmds ...string) error {
	return s.write(s.Handshaking, cmds...)
}

// write is Write with handshaking decided per call, so callers that must
// suppress it do not mutate the shared flag under concurrent use
func (s *SCPI) write(handshake bool, cmds ...string) error {
	conn, err := s.Pool.Get()
	if err != nil {
		return err
	}
	defer func() { s.Pool.ReturnWithError(conn, err) }()
	wrap := comm.NewTerminator(conn, '\n', '\n')
	if handshake {
		cmds = append([]string{"*CLS;"}, cmds...)
		cmds = append(cmds, ";:SYSTem:ERRor?")
	}
	_, err = io.WriteString(wrap, strings.Join(cmds, " "))
	if err != nil {
		return err
	}
	if handshake {
		buf := make([]byte, replyBufSize)
		var n int
		n, err = wrap.Read(buf)
		if err != nil {
			return err
		}
		if resp := string(buf[:n]); !strings.HasPrefix(resp, "+0") {
			return errors.New(resp)
		}
	}
	return nil
}

// WriteRead sends a command and reads the reply.  Intended for get
// operations.
func (s *SCPI) WriteRead(cmds ...string) ([]byte, error) {
	return s.writeRead(s.Handshaking, cmds...)
}

func (s *SCPI) writeRead(handshake bool, cmds ...string) ([]byte, error) {
	conn, err := s.Pool.Get()
	if err != nil {
		return nil, err
	}
	defer func() { s.Pool.ReturnWithError(conn, err) }()
	wrap := comm.NewTerminator(conn, '\n', '\n')
	if handshake {
		cmds = append([]string{"*CLS;"}, cmds...)
		cmds = append(cmds, ";:SYSTem:ERRor?")
	}
	_, err = io.WriteString(wrap, strings.Join(cmds, " "))
	if err != nil {
		return nil, err
	}
	buf := make([]byte, replyBufSize)
	var n int
	n, err = wrap.Read(buf)
	if err != nil {
		return nil, err
	}
	resp := buf[:n]
	if handshake {
		pieces := bytes.Split(resp, []byte{';'})
		errS := string(pieces[len(pieces)-1])
		if !strings.HasPrefix(errS, "+0") {
			return resp, errors.New(errS)
		}
		return bytes.Join(pieces[:len(pieces)-1], []byte{}), nil
	}
	return resp, nil
}

// ReadString sends a command, reads the reply, and returns it with trailing
// line endings removed
func (s *SCPI) ReadString(cmds ...string) (string, error) {
	resp, err := s.WriteRead(cmds...)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(resp), "\r\n"), nil
}

// ReadFloat sends a command and parses the reply as a float
func (s *SCPI) ReadFloat(cmds ...string) (float64, error) {
	resp, err := s.ReadString(cmds...)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(resp, 64)
}

// ReadInt sends a command and parses the reply as an integer
func (s *SCPI) ReadInt(cmds ...string) (int, error) {
	resp, err := s.ReadString(cmds...)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(resp)
}

// ReadBool sends a command and parses the reply as a boolean.  SCPI devices
// answer 0 or 1, which ParseBool accepts.
func (s *SCPI) ReadBool(cmds ...string) (bool, error) {
	resp, err := s.ReadString(cmds...)
	if err != nil {
		return false, err
	}
	return strconv.ParseBool(resp)
}

// Raw sends a command and returns the reply if it was a query, else an empty
// string.  Handshaking is suppressed; raw traffic belongs to the caller.
func (s *SCPI) Raw(str string) (string, error) {
	if strings.Contains(str, "?") {
		resp, err := s.writeRead(false, str)
		if err != nil {
			return "", err
		}
		return strings.TrimRight(string(resp), "\r\n"), nil
	}
	return "", s.write(false, str)
}

// RawReply sends a command without handshaking and returns the reply bytes
// verbatim.  For replies with binary bodies that could contain the handshake
// delimiter.
func (s *SCPI) RawReply(cmds ...string) ([]byte, error) {
	return s.writeRead(false, cmds...)
}

// PopError pops one entry from the device error queue, nil if the queue is
// empty
func (s *SCPI) PopError() error {
	str, err := s.ReadString("SYSTem:ERRor?")
	if err != nil {
		return err
	}
	if strings.HasPrefix(str, "+0") || strings.HasPrefix(str, "0,") {
		return nil
	}
	return errors.New(str)
}

// AllErrors drains the device error queue
func (s *SCPI) AllErrors() []error {
	var errs []error
	for {
		err := s.PopError()
		if err == nil {
			break
		}
		errs = append(errs, err)
	}
	return errs
}

// AllErrorsString is AllErrors joined by newlines.  The error return is nil
// when the queue was empty, else the first entry.
func (s *SCPI) AllErrorsString() (string, error) {
	errs := s.AllErrors()
	if len(errs) == 0 {
		return "", nil
	}
	strs := make([]string, len(errs))
	for i := range errs {
		strs[i] = errs[i].Error()
	}
	return strings.Join(strs, "\n"), errs[0]
}

// ErrorCode extracts the numeric code from a SCPI error string such as
// "-220,\"Parameter error\"".  It returns 0 when the string has no leading
// code.
func ErrorCode(err error) int {
	if err == nil {
		return 0
	}
	s := err.Error()
	idx := strings.IndexByte(s, ',')
	if idx < 0 {
		idx = len(s)
	}
	code, convErr := strconv.Atoi(strings.TrimSpace(s[:idx]))
	if convErr != nil {
		return 0
	}
	return code
}

// Join collapses a list of errors into one, nil when the list is empty
func Join(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	strs := make([]string, len(errs))
	for i := range errs {
		strs[i] = errs[i].Error()
	}
	return fmt.Errorf("%s", strings.Join(strs, "; "))
}
