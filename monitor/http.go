package monitor

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/opticslab/gopm/generichttp"
)

// histdata is the JSON reply shape of the /history route
type histdata struct {
	Time  *[]time.Time `json:"timestamp"`
	Power *[]float64   `json:"power"`
}

// latest is the JSON reply shape of the /latest route
type latest struct {
	Time  time.Time `json:"timestamp"`
	Power float64   `json:"power"`
}

// HTTPMonitor wraps a Monitor in an HTTP route table
type HTTPMonitor struct {
	// Mon is the wrapped monitor
	Mon *Monitor

	routes generichttp.RouteTable
}

// NewHTTPMonitor wraps mon
func NewHTTPMonitor(mon *Monitor) *HTTPMonitor {
	h := &HTTPMonitor{Mon: mon, routes: generichttp.RouteTable{}}
	rt := h.routes
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/start"}] = h.Start
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/stop"}] = h.Stop
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/state"}] = generichttp.GetString(func() (string, error) {
		return mon.State().String(), nil
	})
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/latest"}] = h.Latest
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/history"}] = h.History
	return h
}

// RT satisfies generichttp.HTTPer
func (h *HTTPMonitor) RT() generichttp.RouteTable {
	return h.routes
}

// Start begins acquisition, 409 if it is already running
func (h *HTTPMonitor) Start(w http.ResponseWriter, r *http.Request) {
	if err := h.Mon.Start(); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Stop winds acquisition down, 409 if it is not running
func (h *HTTPMonitor) Stop(w http.ResponseWriter, r *http.Request) {
	if err := h.Mon.Stop(); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Latest replies with the most recent reading, 404 before the first sample
func (h *HTTPMonitor) Latest(w http.ResponseWriter, r *http.Request) {
	t, p, err := h.Mon.Latest()
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(latest{Time: t, Power: p}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// History replies with the buffered readings, oldest first
func (h *HTTPMonitor) History(w http.ResponseWriter, r *http.Request) {
	times, power := h.Mon.History()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(histdata{Time: &times, Power: &power}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
