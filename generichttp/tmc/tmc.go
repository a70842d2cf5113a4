// Package tmc provides an HTTP interface to test and measurement devices
package tmc

import (
	"encoding/json"
	"go/types"
	"net/http"
	"strconv"

	"github.com/opticslab/gopm/generichttp"
	"github.com/opticslab/gopm/tlpm"
)

// PowerMeter describes an interface to an optical power meter.  Methods take
// a sensor channel; single channel instruments use channel 1.
type PowerMeter interface {
	// Identification returns the instrument identity, manufacturer first,
	// comma separated
	Identification() (string, error)

	// CalibrationMessage returns the sensor calibration message
	CalibrationMessage() (string, error)

	// SetWavelength programs the correction wavelength in nanometers
	SetWavelength(float64, int) error

	// Wavelength returns the programmed correction wavelength in nanometers
	Wavelength(int) (float64, error)

	// SetAverageCount programs the number of samples averaged per reading
	SetAverageCount(int, int) error

	// AverageCount returns the programmed averaging count
	AverageCount(int) (int, error)

	// SetPowerUnit selects W or dBm for subsequent readings
	SetPowerUnit(string, int) error

	// PowerUnit returns the unit readings are expressed in
	PowerUnit(int) (string, error)

	// SetPowerAutoRange enables or disables automatic range selection
	SetPowerAutoRange(bool, int) error

	// PowerAutoRange returns true if automatic range selection is enabled
	PowerAutoRange(int) (bool, error)

	// MeasurePower triggers a reading in the configured unit
	MeasurePower(int) (float64, error)
}

// Discoverer can scan for attached or networked instruments
type Discoverer interface {
	Discover(string) ([]tlpm.DeviceDescriptor, error)
}

// SelfTester can run an instrument self test
type SelfTester interface {
	SelfTest() (int, string, error)
}

// WavelengthRanger reports the wavelength band the attached sensor accepts
type WavelengthRanger interface {
	WavelengthRange(int) (float64, float64, error)
}

// channel extracts the sensor channel from the request query, defaulting to 1
func channel(r *http.Request) (int, error) {
	q := r.URL.Query().Get("channel")
	if q == "" {
		return 1, nil
	}
	return strconv.Atoi(q)
}

func getFloatCh(fcn func(int) (float64, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ch, err := channel(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f, err := fcn(ch)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		hp := generichttp.HumanPayload{T: types.Float64, Float: f}
		hp.EncodeAndRespond(w, r)
	}
}

func setFloatCh(fcn func(float64, int) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ch, err := channel(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f := generichttp.FloatT{}
		err = json.NewDecoder(r.Body).Decode(&f)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err = fcn(f.F64, ch); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func getIntCh(fcn func(int) (int, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ch, err := channel(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		i, err := fcn(ch)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		hp := generichttp.HumanPayload{T: types.Int, Int: i}
		hp.EncodeAndRespond(w, r)
	}
}

func setIntCh(fcn func(int, int) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ch, err := channel(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		i := generichttp.IntT{}
		err = json.NewDecoder(r.Body).Decode(&i)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err = fcn(i.Int, ch); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func getStringCh(fcn func(int) (string, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ch, err := channel(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s, err := fcn(ch)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		hp := generichttp.HumanPayload{T: types.String, String: s}
		hp.EncodeAndRespond(w, r)
	}
}

func setStringCh(fcn func(string, int) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ch, err := channel(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s := generichttp.StrT{}
		err = json.NewDecoder(r.Body).Decode(&s)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err = fcn(s.Str, ch); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func getBoolCh(fcn func(int) (bool, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ch, err := channel(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		b, err := fcn(ch)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		hp := generichttp.HumanPayload{T: types.Bool, Bool: b}
		hp.EncodeAndRespond(w, r)
	}
}

func setBoolCh(fcn func(bool, int) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ch, err := channel(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		b := generichttp.BoolT{}
		err = json.NewDecoder(r.Body).Decode(&b)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err = fcn(b.Bool, ch); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// wavelengthRange is the JSON reply shape of the /wavelength/range route
type wavelengthRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// HTTPPowerMeter wraps a PowerMeter in an HTTP route table
type HTTPPowerMeter struct {
	// PM is the wrapped meter
	PM PowerMeter

	routes generichttp.RouteTable
}

// NewHTTPPowerMeter wraps pm, including routes for the optional interfaces
// (discovery, self test, wavelength range) it actually satisfies
func NewHTTPPowerMeter(pm PowerMeter) *HTTPPowerMeter {
	w := &HTTPPowerMeter{PM: pm, routes: generichttp.RouteTable{}}
	rt := w.routes
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/id"}] = generichttp.GetString(pm.Identification)
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/calibration"}] = generichttp.GetString(pm.CalibrationMessage)
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/wavelength"}] = getFloatCh(pm.Wavelength)
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/wavelength"}] = setFloatCh(pm.SetWavelength)
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/average-count"}] = getIntCh(pm.AverageCount)
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/average-count"}] = setIntCh(pm.SetAverageCount)
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/power-unit"}] = getStringCh(pm.PowerUnit)
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/power-unit"}] = setStringCh(pm.SetPowerUnit)
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/auto-range"}] = getBoolCh(pm.PowerAutoRange)
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/auto-range"}] = setBoolCh(pm.SetPowerAutoRange)
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/power"}] = getFloatCh(pm.MeasurePower)
	if ranger, ok := pm.(WavelengthRanger); ok {
		rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/wavelength/range"}] = WavelengthRangeHandler(ranger)
	}
	if st, ok := pm.(SelfTester); ok {
		rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/self-test"}] = SelfTestHandler(st)
	}
	if d, ok := pm.(Discoverer); ok {
		rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/discover"}] = DiscoverHandler(d)
	}
	return w
}

// RT satisfies generichttp.HTTPer
func (h *HTTPPowerMeter) RT() generichttp.RouteTable {
	return h.routes
}

// WavelengthRangeHandler replies with the sensor's accepted wavelength band
// as json {"min": v, "max": v}
func WavelengthRangeHandler(wr WavelengthRanger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ch, err := channel(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		min, max, err := wr.WavelengthRange(ch)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(wavelengthRange{Min: min, Max: max}); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// selfTestResult is the JSON reply shape of the /self-test route
type selfTestResult struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// SelfTestHandler runs the instrument self test and replies with its result
func SelfTestHandler(st SelfTester) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code, msg, err := st.SelfTest()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(selfTestResult{Code: code, Message: msg}); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// DiscoverHandler scans for instruments, bounding the network portion with
// the mask query parameter if present, and replies with the descriptors
func DiscoverHandler(d Discoverer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mask := r.URL.Query().Get("mask")
		descrs, err := d.Discover(mask)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(descrs); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}
