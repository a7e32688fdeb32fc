package firehose

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/widesky/widesky-ingest/internal/metrics"
)

const (
	backoffBase = 5 * time.Second
	backoffCap  = 60 * time.Second

	// keepaliveInterval is the read deadline, refreshed on every
	// received message and pong: a connection that delivers neither
	// within it is treated as wedged and dropped. Pings go out at half
	// that interval so a quiet but healthy connection stays open.
	keepaliveInterval = 10 * time.Second
	pingInterval      = keepaliveInterval / 2
)

// Supervisor owns the single upstream firehose connection and forwards
// each raw binary frame to the processing stage's queue.
type Supervisor struct {
	url     string
	queue   chan<- []byte
	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewSupervisor builds a Supervisor that dials url and pushes frames
// onto queue.
func NewSupervisor(url string, queue chan<- []byte, log *zap.Logger, m *metrics.Metrics) *Supervisor {
	return &Supervisor{url: url, queue: queue, log: log, metrics: m}
}

// Run dials the firehose and reconnects with exponential backoff until
// ctx is cancelled. It only returns once cancellation has been
// observed — all transport failures are handled internally.
func (s *Supervisor) Run(ctx context.Context) {
	attempt := 0
	first := true
	for {
		if ctx.Err() != nil {
			return
		}
		if !first {
			s.metrics.ReconnectCount.Inc()
		}
		first = false

		gotMessage, err := s.connectAndServe(ctx)
		if ctx.Err() != nil {
			return
		}
		if gotMessage {
			attempt = 0
		}
		if err != nil {
			s.log.Warn("firehose connection dropped", zap.Error(err), zap.Int("attempt", attempt))
		}

		wait := backoffDelay(attempt)
		attempt++

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return
		}
	}
}

// backoffDelay computes min(BASE * 2^attempt, CAP) (spec.md §4.1).
func backoffDelay(attempt int) time.Duration {
	wait := backoffBase * time.Duration(uint64(1)<<uint(attempt))
	if wait > backoffCap || wait <= 0 {
		return backoffCap
	}
	return wait
}

// connectAndServe dials once and reads frames until the connection
// fails or ctx is cancelled. gotMessage reports whether at least one
// frame was received, which resets the backoff counter in Run.
func (s *Supervisor) connectAndServe(ctx context.Context) (gotMessage bool, err error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, http.Header{})
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", s.url, err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(keepaliveInterval))
	})
	if err := conn.SetReadDeadline(time.Now().Add(keepaliveInterval)); err != nil {
		return false, fmt.Errorf("set initial read deadline: %w", err)
	}

	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()
	go func() {
		for {
			select {
			case <-pingTicker.C:
				_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			case <-done:
				return
			}
		}
	}()

	for {
		if ctx.Err() != nil {
			return gotMessage, nil
		}

		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return gotMessage, nil
			}
			return gotMessage, fmt.Errorf("read message: %w", err)
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		gotMessage = true
		s.metrics.FramesReceived.Inc()
		_ = conn.SetReadDeadline(time.Now().Add(keepaliveInterval))

		select {
		case s.queue <- data:
			s.metrics.ProcessingQueue.Set(float64(len(s.queue)))
		case <-ctx.Done():
			return gotMessage, nil
		}
	}
}
