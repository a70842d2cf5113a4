// Package locker provides an HTTP middleware which allows a handler tree to
// be locked, returning 423 (locked)
package locker

import (
	"encoding/json"
	"go/types"
	"net/http"
	"strings"
	"sync"

	"github.com/opticslab/gopm/generichttp"
)

// ManipulableLock is a lock which can be checked as middleware and
// manipulated over HTTP
type ManipulableLock interface {
	// Check is the middleware hook
	Check(http.Handler) http.Handler

	// Locked reports the lock state
	Locked() bool

	// Lock engages the lock
	Lock()

	// Unlock releases the lock
	Unlock()
}

// Inject adds GET and POST /lock routes to an HTTPer which manipulate l
func Inject(other generichttp.HTTPer, l ManipulableLock) {
	rt := other.RT()
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/lock"}] = HTTPGet(l)
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/lock"}] = HTTPSet(l)
}

// Locker behaves like a sync.Mutex without the blocking, and holds a list of
// path substrings the lock does not apply to
type Locker struct {
	mu       sync.Mutex
	isLocked bool

	// DoNotProtect is a list of paths not to apply the lock to
	DoNotProtect []string
}

// New returns a new Locker with DoNotProtect prepopulated with "lock"
func New() *Locker {
	return &Locker{DoNotProtect: []string{"lock"}}
}

// Lock the locker
func (l *Locker) Lock() {
	l.mu.Lock()
	l.isLocked = true
	l.mu.Unlock()
}

// Unlock the locker
func (l *Locker) Unlock() {
	l.mu.Lock()
	l.isLocked = false
	l.mu.Unlock()
}

// Locked returns true if the locker is locked
func (l *Locker) Locked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.isLocked
}

// Check is an HTTP middleware that returns http.StatusLocked if Locked() is
// true, otherwise passes down the line
func (l *Locker) Check(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.Locked() {
			protected := true
			url := r.URL.Path
			for _, str := range l.DoNotProtect {
				if strings.Contains(url, str) {
					protected = false
				}
			}
			if protected {
				w.WriteHeader(http.StatusLocked)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// HTTPSet calls Lock or Unlock based on json:bool on the request body
func HTTPSet(l ManipulableLock) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b := generichttp.BoolT{}
		err := json.NewDecoder(r.Body).Decode(&b)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if b.Bool {
			l.Lock()
		} else {
			l.Unlock()
		}
		w.WriteHeader(http.StatusOK)
	}
}

// HTTPGet returns Locked() over HTTP as JSON
func HTTPGet(l ManipulableLock) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hp := generichttp.HumanPayload{T: types.Bool, Bool: l.Locked()}
		hp.EncodeAndRespond(w, r)
	}
}
