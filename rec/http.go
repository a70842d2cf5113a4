package rec

import (
	"net/http"

	"github.com/opticslab/gopm/generichttp"
)

// HTTPWrapper is an HTTP wrapper around a recorder that allows the root,
// prefix, and enable flag to be changed on the fly.
//
// It does not implement generichttp.HTTPer, offering an Inject method
// allowing it to be injected into another HTTPer.
type HTTPWrapper struct {
	*Recorder
}

// NewHTTPWrapper returns an HTTP wrapper around a recorder
func NewHTTPWrapper(r *Recorder) HTTPWrapper {
	return HTTPWrapper{Recorder: r}
}

// Inject adds recording control routes to the HTTPer
func (h HTTPWrapper) Inject(other generichttp.HTTPer) {
	rt := other.RT()
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/record-root"}] = generichttp.GetString(h.root)
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/record-root"}] = generichttp.SetString(h.setRoot)
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/record-prefix"}] = generichttp.GetString(h.prefix)
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/record-prefix"}] = generichttp.SetString(h.setPrefix)
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/recording"}] = generichttp.GetBool(h.enabled)
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/recording"}] = generichttp.SetBool(h.setEnabled)
}

func (h HTTPWrapper) root() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Root, nil
}

func (h HTTPWrapper) setRoot(s string) error {
	h.mu.Lock()
	h.Root = s
	h.mu.Unlock()
	return nil
}

func (h HTTPWrapper) prefix() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Prefix, nil
}

func (h HTTPWrapper) setPrefix(s string) error {
	h.mu.Lock()
	h.Prefix = s
	h.mu.Unlock()
	return nil
}

func (h HTTPWrapper) enabled() (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Enabled, nil
}

func (h HTTPWrapper) setEnabled(b bool) error {
	h.mu.Lock()
	h.Enabled = b
	h.mu.Unlock()
	return nil
}
