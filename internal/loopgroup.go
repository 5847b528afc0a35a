package internal

import (
	"io"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
)

// eventLoop executes posted tasks one at a time in submission order. Each
// connection is pinned to a single loop, which is what serialises its inbound
// callback delivery: no two callbacks for the same connection ever run
// concurrently.
type eventLoop struct {
	mu      sync.Mutex
	cond    *sync.Cond
	tasks   *queue.Queue
	stopped bool
}

func newEventLoop() *eventLoop {
	l := &eventLoop{tasks: queue.New()}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// post enqueues fn for execution. Posts after stop are dropped.
func (l *eventLoop) post(fn func()) {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.tasks.Add(fn)
	l.mu.Unlock()
	l.cond.Signal()
}

// run drains the task queue until stop is requested. Tasks already queued at
// stop time are still executed.
func (l *eventLoop) run() {
	for {
		l.mu.Lock()
		for l.tasks.Length() == 0 && !l.stopped {
			l.cond.Wait()
		}
		if l.tasks.Length() == 0 {
			l.mu.Unlock()
			return
		}
		fn := l.tasks.Remove().(func())
		l.mu.Unlock()
		fn()
	}
}

func (l *eventLoop) stop() {
	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()
	l.cond.Broadcast()
}

// LoopGroup is the concurrency substrate connections run on: a fixed set of
// event loops plus a registry of live connections. A group is either owned by
// one client, which must shut it down, or shared between several, in which
// case whoever created it owns its lifetime.
type LoopGroup struct {
	loops []*eventLoop
	next  uint32

	loopWG sync.WaitGroup
	connWG sync.WaitGroup

	mu      sync.Mutex
	closers map[int]io.Closer
	nextID  int
	down    bool
}

// NewLoopGroup starts a group of n event loops; n <= 0 means one per CPU.
func NewLoopGroup(n int) *LoopGroup {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	g := &LoopGroup{closers: make(map[int]io.Closer)}
	for i := 0; i < n; i++ {
		l := newEventLoop()
		g.loops = append(g.loops, l)
		g.loopWG.Add(1)
		go func() {
			defer g.loopWG.Done()
			l.run()
		}()
	}
	return g
}

// nextLoop pins a new connection to one of the group's loops, round-robin.
func (g *LoopGroup) nextLoop() *eventLoop {
	i := atomic.AddUint32(&g.next, 1)
	return g.loops[int(i)%len(g.loops)]
}

// register tracks a connection's closer so a group shutdown can unblock its
// transport reads. The returned function removes the entry again.
func (g *LoopGroup) register(c io.Closer) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.down {
		return nil, ErrAlreadyShutdown
	}
	id := g.nextID
	g.nextID++
	g.closers[id] = c
	return func() {
		g.mu.Lock()
		delete(g.closers, id)
		g.mu.Unlock()
	}, nil
}

// spawn runs fn on its own goroutine, tracked so Shutdown can wait for it.
// It reports false without running fn when the group is already down; the
// mutex is what keeps the WaitGroup add ordered before Shutdown's wait.
func (g *LoopGroup) spawn(fn func()) bool {
	g.mu.Lock()
	if g.down {
		g.mu.Unlock()
		return false
	}
	g.connWG.Add(1)
	g.mu.Unlock()
	go func() {
		defer g.connWG.Done()
		fn()
	}()
	return true
}

// Shutdown closes every registered connection, waits for their goroutines to
// finish, then drains and stops the event loops. It blocks until all of that
// has happened. A second call returns ErrAlreadyShutdown.
func (g *LoopGroup) Shutdown() error {
	g.mu.Lock()
	if g.down {
		g.mu.Unlock()
		return ErrAlreadyShutdown
	}
	g.down = true
	closers := make([]io.Closer, 0, len(g.closers))
	for _, c := range g.closers {
		closers = append(closers, c)
	}
	g.mu.Unlock()

	var err error
	for _, c := range closers {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	g.connWG.Wait()
	for _, l := range g.loops {
		l.stop()
	}
	g.loopWG.Wait()
	return err
}
