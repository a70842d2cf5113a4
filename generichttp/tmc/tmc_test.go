package tmc_test

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/opticslab/gopm/generichttp"
	"github.com/opticslab/gopm/generichttp/tmc"
	"github.com/opticslab/gopm/tlpm"
	"github.com/opticslab/gopm/util"
)

func simServer(t *testing.T, mw ...func(http.Handler) http.Handler) *httptest.Server {
	t.Helper()
	httper := tmc.NewHTTPPowerMeter(tlpm.NewSimulator())
	r := chi.NewRouter()
	r.Use(mw...)
	httper.RT().Bind(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, into interface{}) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s errored: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s returned %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		t.Fatalf("decoding %s reply: %v", url, err)
	}
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	buf, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("POST %s errored: %v", url, err)
	}
	resp.Body.Close()
	return resp
}

func TestPowerRoute(t *testing.T) {
	srv := simServer(t)
	var f generichttp.FloatT
	getJSON(t, srv.URL+"/power", &f)
	if math.IsNaN(f.F64) || math.IsInf(f.F64, 0) {
		t.Errorf("power = %v, want finite", f.F64)
	}
}

func TestWavelengthRoundTrip(t *testing.T) {
	srv := simServer(t)
	resp := postJSON(t, srv.URL+"/wavelength", generichttp.FloatT{F64: 633})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /wavelength returned %d", resp.StatusCode)
	}
	var f generichttp.FloatT
	getJSON(t, srv.URL+"/wavelength", &f)
	if f.F64 != 633 {
		t.Errorf("wavelength = %v after set, want 633", f.F64)
	}
	// channel 2 keeps its own setting
	getJSON(t, srv.URL+"/wavelength?channel=2", &f)
	if f.F64 != 532 {
		t.Errorf("channel 2 wavelength = %v, want untouched 532", f.F64)
	}
}

func TestBadChannelRejected(t *testing.T) {
	srv := simServer(t)
	resp, err := http.Get(srv.URL + "/power?channel=99")
	if err != nil {
		t.Fatalf("GET errored: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("bad channel returned %d, want 500", resp.StatusCode)
	}
	resp, err = http.Get(srv.URL + "/power?channel=banana")
	if err != nil {
		t.Fatalf("GET errored: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unparseable channel returned %d, want 400", resp.StatusCode)
	}
}

func TestUnitRoundTrip(t *testing.T) {
	srv := simServer(t)
	resp := postJSON(t, srv.URL+"/power-unit", generichttp.StrT{Str: "dBm"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /power-unit returned %d", resp.StatusCode)
	}
	var s generichttp.StrT
	getJSON(t, srv.URL+"/power-unit", &s)
	if s.Str != "dBm" {
		t.Errorf("unit = %q after set, want dBm", s.Str)
	}
}

func TestIdentity(t *testing.T) {
	srv := simServer(t)
	var s generichttp.StrT
	getJSON(t, srv.URL+"/id", &s)
	if !strings.HasPrefix(s.Str, "Thorlabs,") {
		t.Errorf("identity %q should begin with the manufacturer", s.Str)
	}
}

func TestDiscoverRoute(t *testing.T) {
	srv := simServer(t)
	var descrs []tlpm.DeviceDescriptor
	getJSON(t, srv.URL+"/discover", &descrs)
	if len(descrs) != 1 {
		t.Fatalf("discovered %d devices, want 1", len(descrs))
	}
	if descrs[0].Resource == "" {
		t.Error("descriptor missing its resource identifier")
	}
}

func TestLimitMiddlewareBlocks(t *testing.T) {
	limiter := &tmc.LimitMiddleware{Limits: map[int]util.Limiter{1: {Min: 400, Max: 700}}}
	srv := simServer(t, limiter.Check)

	resp := postJSON(t, srv.URL+"/wavelength", generichttp.FloatT{F64: 1000})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("out of limit wavelength returned %d, want 400", resp.StatusCode)
	}
	resp = postJSON(t, srv.URL+"/wavelength", generichttp.FloatT{F64: 633})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("in limit wavelength returned %d, want 200", resp.StatusCode)
	}
	// channel 2 has no limit; the sensor bound still applies downstream
	resp = postJSON(t, srv.URL+"/wavelength?channel=2", generichttp.FloatT{F64: 1050})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("unlimited channel returned %d, want 200", resp.StatusCode)
	}
}
