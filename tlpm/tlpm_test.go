package tlpm

import (
	"errors"
	"testing"
)

func TestLoadLibraryMissingPath(t *testing.T) {
	_, err := LoadLibrary("/nonexistent/path/libTLPMX.so")
	if err == nil {
		t.Fatal("expected an error loading a nonexistent library")
	}
	if !errors.Is(err, ErrLibraryNotFound) {
		t.Errorf("expected ErrLibraryNotFound, got %v", err)
	}

	// the binding is still unloaded; a retry must fail the same way, not
	// corrupt state
	_, err = LoadLibrary("/nonexistent/path/libTLPMX.so")
	if !errors.Is(err, ErrLibraryNotFound) {
		t.Errorf("retry after failed load: expected ErrLibraryNotFound, got %v", err)
	}
}

func TestOpenWithoutLoadedLibrary(t *testing.T) {
	var lib Library
	_, err := lib.Open("USB0::0x1313::0x8078::P0000000::INSTR", true, true)
	if err != ErrNotLoaded {
		t.Errorf("expected ErrNotLoaded, got %v", err)
	}
}

func TestDiscoverWithoutLoadedLibrary(t *testing.T) {
	var lib Library
	_, err := lib.Discover("255.255.255.0")
	if err != ErrNotLoaded {
		t.Errorf("expected ErrNotLoaded, got %v", err)
	}
}

func TestReleaseWithoutLoadedLibrary(t *testing.T) {
	var lib Library
	if err := lib.Release(); err != ErrNotLoaded {
		t.Errorf("expected ErrNotLoaded, got %v", err)
	}
}

// every operation on a session that was never opened must fail with
// ErrNotOpen before any native call is attempted
func TestSessionOperationsWithoutOpen(t *testing.T) {
	pm := &PowerMeter{}
	ops := map[string]func() error{
		"Close":             pm.Close,
		"Reset":             pm.Reset,
		"ErrorQuery":        pm.ErrorQuery,
		"Identification":    func() error { _, err := pm.Identification(); return err },
		"CalibrationMsg":    func() error { _, err := pm.CalibrationMessage(); return err },
		"SetWavelength":     func() error { return pm.SetWavelength(532, DefaultChannel) },
		"Wavelength":        func() error { _, err := pm.Wavelength(DefaultChannel); return err },
		"SetAverageCount":   func() error { return pm.SetAverageCount(100, DefaultChannel) },
		"AverageCount":      func() error { _, err := pm.AverageCount(DefaultChannel); return err },
		"SetPowerUnit":      func() error { return pm.SetPowerUnit("W", DefaultChannel) },
		"PowerUnit":         func() error { _, err := pm.PowerUnit(DefaultChannel); return err },
		"SetPowerAutoRange": func() error { return pm.SetPowerAutoRange(true, DefaultChannel) },
		"PowerAutoRange":    func() error { _, err := pm.PowerAutoRange(DefaultChannel); return err },
		"MeasurePower":      func() error { _, err := pm.MeasurePower(DefaultChannel); return err },
		"SelfTest":          func() error { _, _, err := pm.SelfTest(); return err },
		"Raw":               func() error { _, err := pm.Raw("*IDN?"); return err },
	}
	for name, op := range ops {
		if err := op(); err != ErrNotOpen {
			t.Errorf("%s without open session: expected ErrNotOpen, got %v", name, err)
		}
	}
}

// a closed session must fail with ErrInvalidHandle, never touch the driver
func TestClosedSessionOperations(t *testing.T) {
	pm := &PowerMeter{closed: true}
	if err := pm.Close(); err != ErrInvalidHandle {
		t.Errorf("double close: expected ErrInvalidHandle, got %v", err)
	}
	if _, err := pm.MeasurePower(DefaultChannel); err != ErrInvalidHandle {
		t.Errorf("read after close: expected ErrInvalidHandle, got %v", err)
	}
	if err := pm.SetWavelength(532, DefaultChannel); err != ErrInvalidHandle {
		t.Errorf("configure after close: expected ErrInvalidHandle, got %v", err)
	}
}

func TestParseUnit(t *testing.T) {
	cases := map[string]Unit{
		"W": Watt, "w": Watt, "watt": Watt, "Watts": Watt,
		"dBm": DBm, "DBM": DBm,
	}
	for in, want := range cases {
		got, err := ParseUnit(in)
		if err != nil {
			t.Errorf("ParseUnit(%q) errored: %v", in, err)
		}
		if got != want {
			t.Errorf("ParseUnit(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseUnit("joules"); err == nil {
		t.Error("expected an error for an unknown unit")
	}
}

func TestDefaultLibrarySingleton(t *testing.T) {
	if Default() != nil {
		t.Skip("another test installed a default library")
	}
	lib := &Library{}
	SetDefault(lib)
	defer SetDefault(nil)
	if Default() != lib {
		t.Error("SetDefault did not install the library")
	}
}
