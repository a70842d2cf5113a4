package comm

import (
	"io"
	"sync"
	"time"
)

// Pool holds up to maxSize connections to one instrument.  Connections are
// created lazily, handed out one holder at a time, and closed after every
// connection has been idle in the pool for the timeout.  It is concurrent
// safe.  Pools must be created with NewPool.
type Pool struct {
	maxSize int
	onLease int
	timeout time.Duration
	idle    []io.ReadWriteCloser
	timer   *time.Timer
	maker   Maker

	reclaiming bool
	mu         sync.Mutex
	free       *sync.Cond
}

// NewPool creates a Pool of up to maxSize connections made by maker, freed
// after they sit unused for timeout
func NewPool(maxSize int, timeout time.Duration, maker Maker) *Pool {
	p := &Pool{
		maxSize: maxSize,
		timeout: timeout,
		timer:   time.NewTimer(timeout),
		maker:   maker,
	}
	p.free = sync.NewCond(&p.mu)
	p.timer.Stop() // nothing to reclaim yet
	return p
}

// Get returns a connection with exclusive use granted to the caller, blocking
// if every connection is already out.  Return it with Put when it still
// works, Destroy when it has gone bad, or ReturnWithError to pick between the
// two.  A connection obtained alongside a non-nil error must not be returned.
func (p *Pool) Get() (io.ReadWriter, error) {
	// stopping the timer can race with the reclaim goroutine; the maker
	// recreates connections either way, so the race only costs a dial
	p.timer.Stop()

	p.mu.Lock()
	for len(p.idle) == 0 && p.onLease == p.maxSize {
		p.free.Wait()
	}
	if n := len(p.idle); n > 0 {
		c := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.onLease++
		p.mu.Unlock()
		return c, nil
	}
	// reserve the slot, then dial outside the lock
	p.onLease++
	p.mu.Unlock()
	c, err := p.maker()
	if err != nil {
		p.mu.Lock()
		p.onLease--
		p.free.Signal()
		p.mu.Unlock()
		return nil, err
	}
	return c, nil
}

// Put restores a connection to the pool for reuse
func (p *Pool) Put(rw io.ReadWriter) {
	rwc := rw.(io.ReadWriteCloser)
	p.mu.Lock()
	p.idle = append(p.idle, rwc)
	p.onLease--
	allIdle := p.onLease == 0
	p.free.Signal()
	p.mu.Unlock()
	if allIdle {
		p.startReclaim()
	}
}

// Destroy closes a connection and forgets it; the freed slot lets the next
// Get dial a fresh one
func (p *Pool) Destroy(rw io.ReadWriter) {
	rwc := rw.(io.ReadWriteCloser)
	rwc.Close()
	p.mu.Lock()
	p.onLease--
	p.free.Signal()
	p.mu.Unlock()
}

// ReturnWithError sends the connection back with Put when err is nil and
// Destroy otherwise.  It tolerates a nil connection, so callers can defer it
// unconditionally.
func (p *Pool) ReturnWithError(rw io.ReadWriter, err error) {
	if rw == nil {
		return
	}
	if err != nil {
		p.Destroy(rw)
		return
	}
	p.Put(rw)
}

// Size returns the number of connections owned by the pool, idle or leased
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle) + p.onLease
}

// Active returns the number of connections currently leased out
func (p *Pool) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.onLease
}

// CloseAll closes every idle connection now.  Leased connections are
// unaffected; destroy them on return.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	for _, c := range p.idle {
		c.Close()
	}
	p.idle = p.idle[:0]
	p.mu.Unlock()
}

// startReclaim arms the idle timer; when it fires, every pooled connection is
// closed
func (p *Pool) startReclaim() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reclaiming {
		return
	}
	p.reclaiming = true
	p.timer.Reset(p.timeout)
	go func() {
		<-p.timer.C
		p.CloseAll()
		p.mu.Lock()
		p.reclaiming = false
		p.mu.Unlock()
	}()
}
