package signaling

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true }, // LAN-trusted deployment, no browser origin to validate
}

// bindRetryAttempts and bindRetryInterval bound the boot-time listener
// bind retry loop.
const (
	bindRetryAttempts = 30
	bindRetryInterval = 2 * time.Second
)

// Acceptor is the student-side signaling listener: the teacher dials
// in, and each accepted connection becomes a Link delivered on Links().
type Acceptor struct {
	addr       string
	server     *http.Server
	listener   net.Listener
	listenerMu sync.Mutex
	bound      chan struct{}
	boundOnce  sync.Once
	links      chan *Link
}

// NewAcceptor prepares (but does not yet bind) an acceptor listening on
// addr (e.g. ":3017").
func NewAcceptor(addr string) *Acceptor {
	a := &Acceptor{
		addr:  addr,
		links: make(chan *Link, 4),
		bound: make(chan struct{}),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/session", a.handleSession)
	a.server = &http.Server{Handler: mux}
	return a
}

// Links returns the channel newly-accepted Links are delivered on.
func (a *Acceptor) Links() <-chan *Link {
	return a.links
}

func (a *Acceptor) handleSession(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("upgrade failed", "error", err)
		return
	}
	a.links <- wrap(conn)
}

// Serve binds the listener (retrying per the boot-time bind-retry
// policy) and serves until ctx is cancelled.
func (a *Acceptor) Serve(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= bindRetryAttempts; attempt++ {
		ln, err := net.Listen("tcp", a.addr)
		if err == nil {
			a.listenerMu.Lock()
			a.listener = ln
			a.listenerMu.Unlock()
			a.boundOnce.Do(func() { close(a.bound) })
			break
		}
		lastErr = err
		log.Warn("bind failed, retrying", "addr", a.addr, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(bindRetryInterval):
		}
	}
	if a.listener == nil {
		return fmt.Errorf("signaling: could not bind %s after %d attempts: %w", a.addr, bindRetryAttempts, lastErr)
	}

	go func() {
		<-ctx.Done()
		a.server.Shutdown(context.Background())
	}()

	if err := a.server.Serve(a.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr blocks until the listener is bound (or ctx is cancelled first)
// and returns its address, letting a caller that started Serve with an
// OS-assigned port (":0") discover what port it got. Primarily useful
// in tests.
func (a *Acceptor) Addr(ctx context.Context) (net.Addr, error) {
	select {
	case <-a.bound:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	a.listenerMu.Lock()
	defer a.listenerMu.Unlock()
	return a.listener.Addr(), nil
}
