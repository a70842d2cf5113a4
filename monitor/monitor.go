/*Package monitor contains the machinery for a background power acquisition
loop.

A Monitor samples one channel of a power meter at a paced interval and stores
up to N readings in ring buffers to return over HTTP.  Readings can also be
fanned out to a Sink, e.g. an on-disk recorder.  The loop is a small state
machine; Start and Stop are only legal from the states they name.
*/
package monitor

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/brandondube/ringo"
	"golang.org/x/time/rate"

	"github.com/opticslab/gopm/generichttp/tmc"
)

// State is the acquisition loop's lifecycle state
type State int

const (
	// Idle means no loop is running
	Idle State = iota

	// Running means the loop is sampling
	Running

	// Stopping means a stop was requested and the loop has not yet wound down
	Stopping
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	}
	return "idle"
}

var (
	// ErrNotIdle is generated by Start when a loop is already running
	ErrNotIdle = errors.New("monitor is not idle, cannot start")

	// ErrNotRunning is generated by Stop when there is no loop to stop
	ErrNotRunning = errors.New("monitor is not running, cannot stop")

	// ErrNoData is generated by Latest before the first sample lands
	ErrNoData = errors.New("monitor has no samples yet")
)

// Sink receives each reading as it is taken
type Sink interface {
	Record(t time.Time, channel int, power float64) error
}

// Monitor samples a power meter channel in the background
type Monitor struct {
	mu sync.Mutex

	pm       tmc.PowerMeter
	channel  int
	interval time.Duration

	state  State
	cancel context.CancelFunc

	power ringo.CircleF64
	times ringo.CircleTime

	haveLast  bool
	lastTime  time.Time
	lastPower float64

	// Sink, when non-nil, receives every reading.  Sink errors are logged,
	// not fatal to the loop.
	Sink Sink
}

// New creates a Monitor for one channel of pm with space for capacity
// readings, sampled every interval
func New(pm tmc.PowerMeter, channel, capacity int, interval time.Duration) *Monitor {
	power := ringo.CircleF64{}
	power.Init(capacity)
	times := ringo.CircleTime{}
	times.Init(capacity)
	return &Monitor{
		pm:       pm,
		channel:  channel,
		interval: interval,
		power:    power,
		times:    times,
	}
}

// State returns the loop's lifecycle state
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Start begins sampling.  It fails with ErrNotIdle unless the loop is idle.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Idle {
		return ErrNotIdle
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.state = Running
	go m.run(ctx)
	return nil
}

// Stop requests the loop wind down.  It fails with ErrNotRunning unless the
// loop is running.  The state passes through Stopping and lands on Idle once
// the loop exits.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Running {
		return ErrNotRunning
	}
	m.state = Stopping
	m.cancel()
	return nil
}

func (m *Monitor) run(ctx context.Context) {
	limiter := rate.NewLimiter(rate.Every(m.interval), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			m.mu.Lock()
			m.state = Idle
			m.mu.Unlock()
			return
		}
		p, err := m.pm.MeasurePower(m.channel)
		if err != nil {
			log.Printf("monitor: reading channel %d: %v", m.channel, err)
			continue
		}
		now := time.Now()
		m.mu.Lock()
		m.times.Append(now)
		m.power.Append(p)
		m.lastTime = now
		m.lastPower = p
		m.haveLast = true
		sink := m.Sink
		m.mu.Unlock()
		if sink != nil {
			if err := sink.Record(now, m.channel, p); err != nil {
				log.Printf("monitor: recording sample: %v", err)
			}
		}
	}
}

// Latest returns the most recent reading and its timestamp
func (m *Monitor) Latest() (time.Time, float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.haveLast {
		return time.Time{}, 0, ErrNoData
	}
	return m.lastTime, m.lastPower, nil
}

// History returns the buffered readings, oldest first
func (m *Monitor) History() ([]time.Time, []float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.times.Contiguous(), m.power.Contiguous()
}
