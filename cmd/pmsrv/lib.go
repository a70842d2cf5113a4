package main

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/opticslab/gopm/generichttp"
	"github.com/opticslab/gopm/generichttp/ascii"
	"github.com/opticslab/gopm/generichttp/tmc"
	"github.com/opticslab/gopm/monitor"
	"github.com/opticslab/gopm/rec"
	"github.com/opticslab/gopm/server/middleware/locker"
	"github.com/opticslab/gopm/thorlabs"
	"github.com/opticslab/gopm/tlpm"
	"github.com/opticslab/gopm/util"
)

// Minmax holds a min and max value
type Minmax struct {
	Min float64 `yaml:"Min"`
	Max float64 `yaml:"Max"`
}

// Monitoring holds the background acquisition options for a node
type Monitoring struct {
	// Channel is the sensor channel sampled
	Channel int `yaml:"Channel"`

	// Capacity is the number of readings retained in memory
	Capacity int `yaml:"Capacity"`

	// IntervalMS is the sampling cadence in milliseconds
	IntervalMS int `yaml:"IntervalMS"`
}

// Recording holds the on-disk recording options for a node
type Recording struct {
	Root    string `yaml:"Root"`
	Prefix  string `yaml:"Prefix"`
	Enabled bool   `yaml:"Enabled"`
}

// ObjSetup holds the typical triplet of args for a New<device> call
type ObjSetup struct {
	// Addr holds the network address of the remote device,
	// e.g. 192.168.100.123:5000 for a console's ethernet port
	Addr string `yaml:"Addr"`

	// Resource is a driver resource identifier,
	// e.g. USB0::0x1313::0x807A::M00000000::INSTR
	Resource string `yaml:"Resource"`

	// Endpoint is the final "directory" to put object functionality under,
	// it will be prepended to routes
	Endpoint string `yaml:"Endpoint"`

	// Type is the "type" of the object, e.g. pm103
	Type string `yaml:"Type"`

	// Limits holds server imposed wavelength bounds per channel
	Limits map[string]Minmax `yaml:"Limits"`

	// Monitor, when non-nil, starts a background acquisition loop
	Monitor *Monitoring `yaml:"Monitor"`

	// Record, when non-nil, wires a disk recorder to the monitor
	Record *Recording `yaml:"Record"`
}

// Config is a struct that holds the initialization parameters for various
// HTTP adapted devices.  It is to be populated by a yaml/unmarshal call.
type Config struct {
	// Addr is the address to listen at
	Addr string `yaml:"Addr"`

	// Mock substitutes simulated power meters for every node
	Mock bool `yaml:"Mock"`

	// LibraryPaths are the candidate locations of the vendor driver
	// library, tried in order.  Empty falls back to the system loader
	// defaults.
	LibraryPaths []string `yaml:"LibraryPaths"`

	// Nodes is the list of nodes to set up
	Nodes []ObjSetup `yaml:"Nodes"`
}

// vendorLibrary loads the driver library once and installs it process-wide
func vendorLibrary(c Config) (*tlpm.Library, error) {
	if lib := tlpm.Default(); lib != nil {
		return lib, nil
	}
	lib, err := tlpm.LoadLibrary(c.LibraryPaths...)
	if err != nil {
		return nil, err
	}
	tlpm.SetDefault(lib)
	return lib, nil
}

// limiters converts the yaml limit block to the middleware's shape
func limiters(setup ObjSetup) map[int]util.Limiter {
	out := map[int]util.Limiter{}
	for k, v := range setup.Limits {
		ch, err := strconv.Atoi(k)
		if err != nil {
			log.Fatal("limit key ", k, " is not a channel number")
		}
		out[ch] = util.Limiter{Min: v.Min, Max: v.Max}
	}
	return out
}

// BuildMux uses the configuration to construct a chi mux with populated
// handlers.  The mux serves a special route, /endpoints, which returns the
// full route graph as JSON.
func BuildMux(c Config) chi.Router {
	root := chi.NewRouter()
	root.Use(middleware.Logger)
	supergraph := map[string][]string{}

	for _, node := range c.Nodes {
		var (
			pm  tmc.PowerMeter
			mws []func(http.Handler) http.Handler
		)
		typ := strings.ToLower(node.Type)
		if c.Mock {
			typ = "sim"
		}
		switch typ {
		case "sim":
			pm = tlpm.NewSimulator()

		case "tlpm":
			lib, err := vendorLibrary(c)
			if err != nil {
				log.Fatal("loading vendor driver library: ", err)
			}
			meter, err := lib.Open(node.Resource, true, false)
			if err != nil {
				log.Fatal("opening ", node.Resource, ": ", err)
			}
			pm = meter

		case "pm103":
			pm = thorlabs.NewPM103(node.Addr)

		case "pm103-usb":
			pm = thorlabs.NewPM103USB()

		default:
			log.Fatal("type ", typ, " not understood")
		}

		httper := tmc.NewHTTPPowerMeter(pm)

		lims := limiters(node)
		if len(lims) > 0 {
			limiter := tmc.LimitMiddleware{Limits: lims}
			mws = append(mws, limiter.Check)
			limiter.Inject(httper)
		}

		if rc, ok := pm.(ascii.RawCommunicator); ok {
			ascii.InjectRawComm(httper, rc)
		}

		if node.Monitor != nil {
			interval := time.Duration(node.Monitor.IntervalMS) * time.Millisecond
			if interval <= 0 {
				interval = time.Second
			}
			ch := node.Monitor.Channel
			if ch == 0 {
				ch = tlpm.DefaultChannel
			}
			capacity := node.Monitor.Capacity
			if capacity == 0 {
				capacity = 86400
			}
			mon := monitor.New(pm, ch, capacity, interval)
			if node.Record != nil {
				recorder := &rec.Recorder{
					Root:    node.Record.Root,
					Prefix:  node.Record.Prefix,
					Enabled: node.Record.Enabled,
				}
				mon.Sink = recorder
				rec.NewHTTPWrapper(recorder).Inject(httper)
			}
			hm := monitor.NewHTTPMonitor(mon)
			for mp, handler := range hm.RT() {
				mp.Path = "/monitor" + mp.Path
				httper.RT()[mp] = handler
			}
		}

		// prepare the URL, "bench/pm" => "/bench/pm"
		hndlS := generichttp.SubMuxSanitize(node.Endpoint)

		// add the endpoints to the graph
		supergraph[hndlS] = httper.RT().Endpoints()

		// add a lock interface for this node
		lock := locker.New()
		locker.Inject(httper, lock)

		// bind to the mux
		r := chi.NewRouter()
		r.Use(mws...)
		r.Use(lock.Check)
		httper.RT().Bind(r)
		root.Mount(hndlS, r)
	}
	root.Get("/endpoints", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		err := json.NewEncoder(w).Encode(supergraph)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	return root
}
