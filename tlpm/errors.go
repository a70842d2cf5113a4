package tlpm

import (
	"errors"
	"fmt"
)

var (
	// ErrLibraryNotFound is generated when the driver library cannot be
	// located with any of the configured search paths.  The binding remains
	// unloaded and a retry with a corrected path is safe.
	ErrLibraryNotFound = errors.New("TLPMX library not found")

	// ErrNotLoaded is generated when a session is requested before the
	// driver library has been loaded
	ErrNotLoaded = errors.New("TLPMX library not loaded")

	// ErrNotOpen is generated when a measurement or configuration call is
	// made without an open session.  No native call is made.
	ErrNotOpen = errors.New("no open session to a power meter")

	// ErrInvalidHandle is generated when a session is used after Close,
	// including a second Close.  No native call is made.
	ErrInvalidHandle = errors.New("session handle is closed")
)

// Status is a driver status code (ViStatus) viewed as its unsigned bit
// pattern.  Zero is success, codes with the high bit set are errors, and
// positive codes are completion warnings.
type Status uint32

// VISA status codes the driver is known to return.  The list is not
// exhaustive; unmapped codes print in hex.
const (
	StatusSuccess Status = 0

	StatusInvalidObject       Status = 0xBFFF000E // VI_ERROR_INV_OBJECT
	StatusResourceNotFound    Status = 0xBFFF0011 // VI_ERROR_RSRC_NFOUND
	StatusInvalidResourceName Status = 0xBFFF0012 // VI_ERROR_INV_RSRC_NAME
	StatusResourceLocked      Status = 0xBFFF000F // VI_ERROR_RSRC_LOCKED
	StatusTimeout             Status = 0xBFFF0015 // VI_ERROR_TMO
	StatusRawWriteProtocol    Status = 0xBFFF0034 // VI_ERROR_RAW_WR_PROT_VIOL
	StatusRawReadProtocol     Status = 0xBFFF0035 // VI_ERROR_RAW_RD_PROT_VIOL
	StatusInputProtocol       Status = 0xBFFF0098 // VI_ERROR_INP_PROT_VIOL
	StatusIOError             Status = 0xBFFF003E // VI_ERROR_IO
	StatusInvalidParameter    Status = 0xBFFF0078 // VI_ERROR_INV_PARAMETER

	statusParameter1 Status = 0xBFFC0001 // VI_ERROR_PARAMETER1
	statusParameter8 Status = 0xBFFC0008 // VI_ERROR_PARAMETER8
)

var statusNames = map[Status]string{
	StatusInvalidObject:       "VI_ERROR_INV_OBJECT",
	StatusResourceNotFound:    "VI_ERROR_RSRC_NFOUND",
	StatusInvalidResourceName: "VI_ERROR_INV_RSRC_NAME",
	StatusResourceLocked:      "VI_ERROR_RSRC_LOCKED",
	StatusTimeout:             "VI_ERROR_TMO",
	StatusRawWriteProtocol:    "VI_ERROR_RAW_WR_PROT_VIOL",
	StatusRawReadProtocol:     "VI_ERROR_RAW_RD_PROT_VIOL",
	StatusInputProtocol:       "VI_ERROR_INP_PROT_VIOL",
	StatusIOError:             "VI_ERROR_IO",
	StatusInvalidParameter:    "VI_ERROR_INV_PARAMETER",
	statusParameter1:          "VI_ERROR_PARAMETER1",
	statusParameter1 + 1:      "VI_ERROR_PARAMETER2",
	statusParameter1 + 2:      "VI_ERROR_PARAMETER3",
	statusParameter1 + 3:      "VI_ERROR_PARAMETER4",
	statusParameter1 + 4:      "VI_ERROR_PARAMETER5",
	statusParameter1 + 5:      "VI_ERROR_PARAMETER6",
	statusParameter1 + 6:      "VI_ERROR_PARAMETER7",
	statusParameter8:          "VI_ERROR_PARAMETER8",
}

// IsError returns true if the status is an error, as opposed to success or a
// completion warning
func (s Status) IsError() bool {
	return s&0x80000000 != 0
}

// String returns the VISA name of the status, or its hex value if unmapped
func (s Status) String() string {
	if s == StatusSuccess {
		return "VI_SUCCESS"
	}
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("0x%08X", uint32(s))
}

// isParameterStatus returns true for statuses that indicate the driver
// rejected an argument value
func (s Status) isParameterStatus() bool {
	if s == StatusInvalidParameter {
		return true
	}
	return s >= statusParameter1 && s <= statusParameter8
}

// DriverError is a non-zero driver status that does not map to a more
// specific error type
type DriverError struct {
	// Code is the raw status from the driver
	Code Status

	// Op is the driver function that produced the status
	Op string
}

func (e DriverError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Code)
}

// InvalidParameterError is generated when the driver rejects an argument
// value, e.g. an out of range wavelength or an unsupported channel.  The
// instrument's prior configuration is unchanged.
type InvalidParameterError struct {
	Code Status
	Op   string
}

func (e InvalidParameterError) Error() string {
	return fmt.Sprintf("%s: parameter rejected by driver: %s", e.Op, e.Code)
}

// MeasurementError is generated when a read fails, e.g. over-range or no
// signal.  The binding never substitutes a sentinel value for a failed read.
type MeasurementError struct {
	Code    Status
	Channel int
}

func (e MeasurementError) Error() string {
	return fmt.Sprintf("measurement on channel %d failed: %s", e.Channel, e.Code)
}

// enrich converts a raw status into the binding's error taxonomy.  Warnings
// and success produce nil; every error status surfaces.
func enrich(s Status, op string) error {
	if !s.IsError() {
		return nil
	}
	switch {
	case s == StatusInvalidObject:
		return ErrInvalidHandle
	case s == StatusResourceNotFound || s == StatusInvalidResourceName:
		return DeviceNotFoundError{Code: s}
	case s.isParameterStatus():
		return InvalidParameterError{Code: s, Op: op}
	}
	return DriverError{Code: s, Op: op}
}

// DeviceNotFoundError is generated when the named resource does not resolve
// to a reachable instrument
type DeviceNotFoundError struct {
	Code Status
}

func (e DeviceNotFoundError) Error() string {
	return fmt.Sprintf("device not found: %s", e.Code)
}
