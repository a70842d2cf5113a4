package tlpm

import (
	"math/rand"
	"sync"
)

// simulated sensor limits, modeled on an S120VC photodiode head
const (
	simWavelengthMin = 200
	simWavelengthMax = 1100
	simChannels      = 2
)

// Simulator is an in-memory power meter with the same state machine and
// error behavior as a driver-backed session.  It substitutes for the vendor
// binary in tests and in servers run with Mock: true.
type Simulator struct {
	sync.Mutex

	closed     bool
	wavelength map[int]float64
	avgCnt     map[int]int
	unit       map[int]Unit
	autoRange  map[int]bool
}

// NewSimulator returns an open simulated power meter
func NewSimulator() *Simulator {
	s := &Simulator{
		wavelength: make(map[int]float64),
		avgCnt:     make(map[int]int),
		unit:       make(map[int]Unit),
		autoRange:  make(map[int]bool),
	}
	for ch := 1; ch <= simChannels; ch++ {
		s.wavelength[ch] = 532
		s.avgCnt[ch] = 1
		s.unit[ch] = Watt
		s.autoRange[ch] = true
	}
	return s
}

func (s *Simulator) guard(ch int) error {
	if s.closed {
		return ErrInvalidHandle
	}
	if ch < 1 || ch > simChannels {
		return InvalidParameterError{Code: statusParameter1 + 2, Op: "channel"}
	}
	return nil
}

// Identification mimics the identification query
func (s *Simulator) Identification() (string, error) {
	s.Lock()
	defer s.Unlock()
	if err := s.guard(DefaultChannel); err != nil {
		return "", err
	}
	return "Thorlabs,PM103-SIM,M00000000,1.0.0", nil
}

// CalibrationMessage mimics the calibration message query
func (s *Simulator) CalibrationMessage() (string, error) {
	s.Lock()
	defer s.Unlock()
	if err := s.guard(DefaultChannel); err != nil {
		return "", err
	}
	return "CAL 01-Jan-2020 simulated", nil
}

// SetWavelength stores the correction wavelength, enforcing the simulated
// sensor's range the way the driver would
func (s *Simulator) SetWavelength(nm float64, ch int) error {
	s.Lock()
	defer s.Unlock()
	if err := s.guard(ch); err != nil {
		return err
	}
	if nm < simWavelengthMin || nm > simWavelengthMax {
		return InvalidParameterError{Code: statusParameter1 + 1, Op: "TLPMX_setWavelength"}
	}
	s.wavelength[ch] = nm
	return nil
}

// Wavelength returns the stored correction wavelength
func (s *Simulator) Wavelength(ch int) (float64, error) {
	s.Lock()
	defer s.Unlock()
	if err := s.guard(ch); err != nil {
		return 0, err
	}
	return s.wavelength[ch], nil
}

// SetAverageCount stores the averaging count
func (s *Simulator) SetAverageCount(n int, ch int) error {
	s.Lock()
	defer s.Unlock()
	if err := s.guard(ch); err != nil {
		return err
	}
	if n < 1 {
		return InvalidParameterError{Code: statusParameter1 + 1, Op: "TLPMX_setAvgCnt"}
	}
	s.avgCnt[ch] = n
	return nil
}

// AverageCount returns the averaging count
func (s *Simulator) AverageCount(ch int) (int, error) {
	s.Lock()
	defer s.Unlock()
	if err := s.guard(ch); err != nil {
		return 0, err
	}
	return s.avgCnt[ch], nil
}

// SetPowerUnit stores the power unit
func (s *Simulator) SetPowerUnit(unit string, ch int) error {
	u, err := ParseUnit(unit)
	if err != nil {
		return InvalidParameterError{Code: statusParameter1 + 1, Op: "TLPMX_setPowerUnit"}
	}
	s.Lock()
	defer s.Unlock()
	if err := s.guard(ch); err != nil {
		return err
	}
	s.unit[ch] = u
	return nil
}

// PowerUnit returns the power unit
func (s *Simulator) PowerUnit(ch int) (string, error) {
	s.Lock()
	defer s.Unlock()
	if err := s.guard(ch); err != nil {
		return "", err
	}
	return s.unit[ch].String(), nil
}

// SetPowerAutoRange stores the auto-range flag
func (s *Simulator) SetPowerAutoRange(on bool, ch int) error {
	s.Lock()
	defer s.Unlock()
	if err := s.guard(ch); err != nil {
		return err
	}
	s.autoRange[ch] = on
	return nil
}

// PowerAutoRange returns the auto-range flag
func (s *Simulator) PowerAutoRange(ch int) (bool, error) {
	s.Lock()
	defer s.Unlock()
	if err := s.guard(ch); err != nil {
		return false, err
	}
	return s.autoRange[ch], nil
}

// MeasurePower returns a reading near one milliwatt with a little noise, in
// the configured unit
func (s *Simulator) MeasurePower(ch int) (float64, error) {
	s.Lock()
	defer s.Unlock()
	if err := s.guard(ch); err != nil {
		return 0, err
	}
	watts := 1e-3 * (1 + 0.01*(rand.Float64()*2-1))
	if s.unit[ch] == DBm {
		return 0, nil // 1 mW == 0 dBm, noise below display resolution
	}
	return watts, nil
}

// Close closes the simulated session; further calls fail with
// ErrInvalidHandle like the real driver binding
func (s *Simulator) Close() error {
	s.Lock()
	defer s.Unlock()
	if s.closed {
		return ErrInvalidHandle
	}
	s.closed = true
	return nil
}

// Raw pretends to be a raw SCPI interface, answering only *IDN?
func (s *Simulator) Raw(cmd string) (string, error) {
	s.Lock()
	closed := s.closed
	s.Unlock()
	if closed {
		return "", ErrInvalidHandle
	}
	if cmd == "*IDN?" {
		return s.Identification()
	}
	return "", nil
}

// Discover returns a single simulated descriptor so that discovery-dependent
// code paths can be exercised without hardware
func (s *Simulator) Discover(mask string) ([]DeviceDescriptor, error) {
	return []DeviceDescriptor{{
		Resource:     "SIM::0x1313::0x807A::M00000000::INSTR",
		Model:        "PM103-SIM",
		Serial:       "M00000000",
		Manufacturer: "Thorlabs",
		Available:    true,
	}}, nil
}
