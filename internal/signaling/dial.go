package signaling

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/gorilla/websocket"
)

const (
	dialTimeout    = 10 * time.Second
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
	backoffFactor  = 2.0
	jitterFactor   = 0.3
)

// Dial opens a single connection to a student's signaling acceptor at
// addr ("host:port"). The teacher is the dialing side in this protocol,
// the inverse of a client-to-central-server model.
func Dial(ctx context.Context, addr string) (*Link, error) {
	url := fmt.Sprintf("ws://%s/session", addr)
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("signaling: dial %s: %w", addr, err)
	}
	return wrap(conn), nil
}

// DialWithRetry retries Dial with exponential backoff and jitter until
// it succeeds, ctx is cancelled, or maxAttempts is exhausted (0 means
// unlimited).
func DialWithRetry(ctx context.Context, addr string, maxAttempts int) (*Link, error) {
	backoff := initialBackoff
	var lastErr error

	for attempt := 1; maxAttempts == 0 || attempt <= maxAttempts; attempt++ {
		link, err := Dial(ctx, addr)
		if err == nil {
			return link, nil
		}
		lastErr = err
		log.Warn("dial failed", "addr", addr, "attempt", attempt, "error", err)

		jitter := time.Duration(float64(backoff) * jitterFactor * (rand.Float64()*2 - 1))
		sleep := backoff + jitter
		if sleep < 0 {
			sleep = backoff
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}

		backoff = time.Duration(float64(backoff) * backoffFactor)
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	return nil, fmt.Errorf("signaling: giving up dialing %s: %w", addr, lastErr)
}
