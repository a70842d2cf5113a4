package tmc

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/ioutil"
	"net/http"
	"strings"

	"github.com/opticslab/gopm/generichttp"
	"github.com/opticslab/gopm/util"
)

var errClamped = errors.New("requested wavelength violates software limits, aborted")

// LimitMiddleware imposes channel-specific wavelength limits on top of
// whatever the sensor itself enforces.  It stops the handler chain with
// StatusBadRequest when a command would violate them.
type LimitMiddleware struct {
	// Limits contains the server imposed wavelength bounds per channel
	Limits map[int]util.Limiter
}

// Check inspects wavelength commands against the channel's limit, if one
// exists, and otherwise flows control to the next handler
func (l *LimitMiddleware) Check(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.Contains(r.URL.Path, "wavelength") {
			next.ServeHTTP(w, r)
			return
		}
		ch, err := channel(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		limiter, ok := l.Limits[ch]
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		// downstream handlers want the body too; read it all and paste it back
		bodyContent, _ := ioutil.ReadAll(r.Body)
		defer r.Body.Close()
		r.Body = ioutil.NopCloser(bytes.NewBuffer(bodyContent))
		f := generichttp.FloatT{}
		if err := json.NewDecoder(bytes.NewReader(bodyContent)).Decode(&f); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if !limiter.Check(f.F64) {
			http.Error(w, errClamped.Error(), http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Inject places a GET /wavelength/limits route on the table of the HTTPer
func (l LimitMiddleware) Inject(h generichttp.HTTPer) {
	h.RT()[generichttp.MethodPath{Method: http.MethodGet, Path: "/wavelength/limits"}] = Limits(l)
}

// Limits returns a handler that replies with the limit for a channel, null
// when there is none
func Limits(l LimitMiddleware) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ch, err := channel(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		lim, ok := l.Limits[ch]
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if !ok {
			err = json.NewEncoder(w).Encode(nil)
		} else {
			err = json.NewEncoder(w).Encode(lim)
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}
