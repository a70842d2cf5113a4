package tlpm

import (
	"fmt"
	"strings"
	"sync"
)

const (
	// DefaultChannel is the sensor channel single-channel meters respond on
	DefaultChannel = 1

	// attribute selectors for getWavelength, per the vendor header
	attrSetVal int16 = 0
	attrMinVal int16 = 1
	attrMaxVal int16 = 2
)

// Unit is the unit power readings are expressed in
type Unit int16

const (
	// Watt is absolute power in watts
	Watt Unit = 0

	// DBm is power relative to one milliwatt, in dB
	DBm Unit = 1
)

func (u Unit) String() string {
	if u == DBm {
		return "dBm"
	}
	return "W"
}

// ParseUnit converts a string to a Unit
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(s) {
	case "w", "watt", "watts":
		return Watt, nil
	case "dbm":
		return DBm, nil
	}
	return Watt, fmt.Errorf("unit %q not understood, use W or dBm", s)
}

// ID is the response to an identification query
type ID struct {
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	Serial       string `json:"serial"`
	Firmware     string `json:"firmware"`
}

/*PowerMeter is an open session to one power meter.  Sessions are created by
Library.Open and released exactly once by Close; every other method is only
valid between those two calls and fails fast without a native call otherwise.

The driver's internal thread safety is unspecified, so all calls against one
session are serialized by an embedded mutex.*/
type PowerMeter struct {
	sync.Mutex

	lib    *Library
	vi     uint32
	closed bool

	// Resource is the identifier the session was opened against.  It is
	// informational once the session exists.
	Resource string
}

// Open requests a session from the driver for the named resource.  Resource
// identifiers include USB descriptor strings
// (USB0::0x1313::0x8078::P0012345::INSTR), VISA-style strings, and bare IP
// addresses.  idQuery asks the driver to verify the instrument identity;
// reset restores the instrument's power-on configuration.
func (l *Library) Open(resource string, idQuery, reset bool) (*PowerMeter, error) {
	if !l.loaded() {
		return nil, ErrNotLoaded
	}
	vi, st := l.rawInit(resource, idQuery, reset)
	if err := enrich(st, "TLPMX_init"); err != nil {
		return nil, err
	}
	return &PowerMeter{lib: l, vi: vi, Resource: resource}, nil
}

// guard returns an error if the session is not in a state where driver calls
// are allowed.  It must be called with the lock held.
func (pm *PowerMeter) guard() error {
	if pm.closed {
		return ErrInvalidHandle
	}
	if pm.lib == nil || !pm.lib.loaded() {
		return ErrNotOpen
	}
	return nil
}

// Close releases the session.  A second Close, or any call after it, fails
// with ErrInvalidHandle rather than forwarding a dead handle to the driver.
func (pm *PowerMeter) Close() error {
	pm.Lock()
	defer pm.Unlock()
	if err := pm.guard(); err != nil {
		return err
	}
	st := pm.lib.rawClose(pm.vi)
	pm.closed = true
	pm.vi = closedSession
	return enrich(st, "TLPMX_close")
}

// Identification queries the instrument identity and returns it as one
// string, manufacturer first, comma separated
func (pm *PowerMeter) Identification() (string, error) {
	pm.Lock()
	defer pm.Unlock()
	if err := pm.guard(); err != nil {
		return "", err
	}
	mfr, model, serial, fw, st := pm.lib.rawIdentificationQuery(pm.vi)
	if err := enrich(st, "TLPMX_identificationQuery"); err != nil {
		return "", err
	}
	return strings.Join([]string{mfr, model, serial, fw}, ","), nil
}

// CalibrationMessage returns the sensor's calibration message, which
// includes the last calibration date
func (pm *PowerMeter) CalibrationMessage() (string, error) {
	pm.Lock()
	defer pm.Unlock()
	if err := pm.guard(); err != nil {
		return "", err
	}
	msg, st := pm.lib.rawGetCalibrationMsg(pm.vi, DefaultChannel)
	return msg, enrich(st, "TLPMX_getCalibrationMsg")
}

// SetWavelength programs the correction wavelength in nanometers on a channel
func (pm *PowerMeter) SetWavelength(nm float64, ch int) error {
	pm.Lock()
	defer pm.Unlock()
	if err := pm.guard(); err != nil {
		return err
	}
	return enrich(pm.lib.rawSetWavelength(pm.vi, nm, ch), "TLPMX_setWavelength")
}

// Wavelength returns the programmed correction wavelength in nanometers
func (pm *PowerMeter) Wavelength(ch int) (float64, error) {
	pm.Lock()
	defer pm.Unlock()
	if err := pm.guard(); err != nil {
		return 0, err
	}
	nm, st := pm.lib.rawGetWavelength(pm.vi, attrSetVal, ch)
	return nm, enrich(st, "TLPMX_getWavelength")
}

// WavelengthRange returns the min and max wavelength the attached sensor
// accepts, in nanometers
func (pm *PowerMeter) WavelengthRange(ch int) (min, max float64, err error) {
	pm.Lock()
	defer pm.Unlock()
	if err := pm.guard(); err != nil {
		return 0, 0, err
	}
	min, st := pm.lib.rawGetWavelength(pm.vi, attrMinVal, ch)
	if err := enrich(st, "TLPMX_getWavelength"); err != nil {
		return 0, 0, err
	}
	max, st = pm.lib.rawGetWavelength(pm.vi, attrMaxVal, ch)
	return min, max, enrich(st, "TLPMX_getWavelength")
}

// SetAverageCount programs how many internal samples are averaged per
// reading; 1000 samples take roughly one second
func (pm *PowerMeter) SetAverageCount(n int, ch int) error {
	pm.Lock()
	defer pm.Unlock()
	if err := pm.guard(); err != nil {
		return err
	}
	return enrich(pm.lib.rawSetAvgCnt(pm.vi, int16(n), ch), "TLPMX_setAvgCnt")
}

// AverageCount returns the programmed averaging count
func (pm *PowerMeter) AverageCount(ch int) (int, error) {
	pm.Lock()
	defer pm.Unlock()
	if err := pm.guard(); err != nil {
		return 0, err
	}
	n, st := pm.lib.rawGetAvgCnt(pm.vi, ch)
	return int(n), enrich(st, "TLPMX_getAvgCnt")
}

// SetPowerUnit selects the unit subsequent power readings are expressed in
func (pm *PowerMeter) SetPowerUnit(unit string, ch int) error {
	u, err := ParseUnit(unit)
	if err != nil {
		return InvalidParameterError{Op: "TLPMX_setPowerUnit"}
	}
	pm.Lock()
	defer pm.Unlock()
	if err := pm.guard(); err != nil {
		return err
	}
	return enrich(pm.lib.rawSetPowerUnit(pm.vi, int16(u), ch), "TLPMX_setPowerUnit")
}

// PowerUnit returns the unit power readings are expressed in
func (pm *PowerMeter) PowerUnit(ch int) (string, error) {
	pm.Lock()
	defer pm.Unlock()
	if err := pm.guard(); err != nil {
		return "", err
	}
	u, st := pm.lib.rawGetPowerUnit(pm.vi, ch)
	return Unit(u).String(), enrich(st, "TLPMX_getPowerUnit")
}

// SetPowerAutoRange enables or disables automatic range selection
func (pm *PowerMeter) SetPowerAutoRange(on bool, ch int) error {
	pm.Lock()
	defer pm.Unlock()
	if err := pm.guard(); err != nil {
		return err
	}
	return enrich(pm.lib.rawSetPowerAutoRange(pm.vi, on, ch), "TLPMX_setPowerAutoRange")
}

// PowerAutoRange returns true if automatic range selection is enabled
func (pm *PowerMeter) PowerAutoRange(ch int) (bool, error) {
	pm.Lock()
	defer pm.Unlock()
	if err := pm.guard(); err != nil {
		return false, err
	}
	on, st := pm.lib.rawGetPowerAutoRange(pm.vi, ch)
	return on, enrich(st, "TLPMX_getPowerAutorange")
}

// MeasurePower triggers a reading and returns it in the configured unit.
// The value is only meaningful immediately after a successful call; nothing
// is cached.  A driver error surfaces as MeasurementError, never as a
// sentinel value.
func (pm *PowerMeter) MeasurePower(ch int) (float64, error) {
	pm.Lock()
	defer pm.Unlock()
	if err := pm.guard(); err != nil {
		return 0, err
	}
	p, st := pm.lib.rawMeasPower(pm.vi, ch)
	if st.IsError() {
		if err := enrich(st, "TLPMX_measPower"); err == ErrInvalidHandle {
			return 0, err
		}
		return 0, MeasurementError{Code: st, Channel: ch}
	}
	return p, nil
}

// Reset restores the instrument's power-on configuration
func (pm *PowerMeter) Reset() error {
	pm.Lock()
	defer pm.Unlock()
	if err := pm.guard(); err != nil {
		return err
	}
	return enrich(pm.lib.rawReset(pm.vi), "TLPMX_reset")
}

// SelfTest runs the instrument self test and returns its result code and
// message
func (pm *PowerMeter) SelfTest() (int, string, error) {
	pm.Lock()
	defer pm.Unlock()
	if err := pm.guard(); err != nil {
		return 0, "", err
	}
	code, msg, st := pm.lib.rawSelfTest(pm.vi)
	return int(code), msg, enrich(st, "TLPMX_selfTest")
}

// ErrorQuery pops one entry from the instrument error queue.  It returns nil
// when the queue is empty.
func (pm *PowerMeter) ErrorQuery() error {
	pm.Lock()
	defer pm.Unlock()
	if err := pm.guard(); err != nil {
		return err
	}
	code, msg, st := pm.lib.rawErrorQuery(pm.vi)
	if err := enrich(st, "TLPMX_errorQuery"); err != nil {
		return err
	}
	if code == 0 {
		return nil
	}
	return fmt.Errorf("instrument error %d - %s", code, msg)
}

// Raw sends a command to the instrument and retrieves the reply if there is
// a question mark in the command, else returns "", err
func (pm *PowerMeter) Raw(cmd string) (string, error) {
	pm.Lock()
	defer pm.Unlock()
	if err := pm.guard(); err != nil {
		return "", err
	}
	if !strings.HasSuffix(cmd, "\n") {
		cmd = cmd + "\n"
	}
	if st := pm.lib.rawWriteRaw(pm.vi, cmd); st.IsError() {
		return "", enrich(st, "TLPMX_writeRaw")
	}
	if !strings.Contains(cmd, "?") {
		return "", nil
	}
	resp, st := pm.lib.rawReadRaw(pm.vi)
	return strings.TrimRight(resp, "\r\n"), enrich(st, "TLPMX_readRaw")
}
