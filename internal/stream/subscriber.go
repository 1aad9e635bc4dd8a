package stream

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"

	"cspr_rewarder/internal/models"
)

// Sentinel errors for the terminal transitions
var (
	ErrHeartbeatTimeout = errors.New("heartbeat deadline exceeded")
	ErrStreamClosed     = errors.New("stream closed by remote")
)

type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateTerminated
)

// Handler receives every delegation event directed at the watched validator.
type Handler func(models.DelegationEvent)

// Subscriber owns one websocket connection to the deploy stream. It is
// one-shot: once Run returns the instance is Terminated and a new Subscriber
// must be constructed for another attempt.
type Subscriber struct {
	url        string
	apiKey     string
	deadline   time.Duration
	classifier *Classifier
	handler    Handler

	state     atomic.Int32
	heartbeat *time.Timer
	timedOut  atomic.Bool
}

func NewSubscriber(streamURL, apiKey string, deadline time.Duration, classifier *Classifier, handler Handler) *Subscriber {
	return &Subscriber{
		url:        streamURL,
		apiKey:     apiKey,
		deadline:   deadline,
		classifier: classifier,
		handler:    handler,
	}
}

func (s *Subscriber) State() State {
	return State(s.state.Load())
}

// Run connects and consumes frames until the link dies. Any frame resets the
// heartbeat timer; if the timer fires first the connection is torn down and
// ErrHeartbeatTimeout is returned. A nil return only happens on context
// cancellation (voluntary shutdown).
func (s *Subscriber) Run(ctx context.Context) error {
	log.Println("Connecting to: " + s.url)

	header := http.Header{}
	header.Set("Authorization", s.apiKey)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, header)
	if err != nil {
		s.state.Store(int32(StateTerminated))
		return fmt.Errorf("failed to connect to streaming API: %w", err)
	}
	defer conn.Close()

	s.state.Store(int32(StateOpen))
	log.Println("✅ Connected to Streaming API")

	// The timer fires only if no frame of any kind arrived within the
	// deadline. Closing the connection unblocks the read loop below.
	s.heartbeat = time.AfterFunc(s.deadline, func() {
		s.timedOut.Store(true)
		conn.Close()
	})
	defer s.heartbeat.Stop()

	// Unblock the read loop when the caller shuts down.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-watchDone:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			s.state.Store(int32(StateTerminated))
			if s.timedOut.Load() {
				return ErrHeartbeatTimeout
			}
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return ErrStreamClosed
			}
			return fmt.Errorf("stream transport error: %w", err)
		}
		// The timer stays quiet while the frame is handled: the handler may
		// block on a saturated worker pool, and that must not count against
		// the link's liveness.
		s.heartbeat.Stop()
		s.handleFrame(raw)
		s.heartbeat.Reset(s.deadline)
	}
}

func (s *Subscriber) handleFrame(raw []byte) {
	if string(raw) == "Ping" {
		return
	}

	frame, err := DecodeFrame(raw)
	if err != nil {
		log.Printf("Error parsing message: %v", err)
		return
	}

	if event, ok := s.classifier.Classify(frame); ok {
		log.Println("User delegated to my validator node")
		s.handler(event)
	}
}

// Listen runs subscribers until one terminates for good. With attempts == 0 a
// single termination is final (fail-fast, the supervisor restarts the process).
// With attempts > 0 the link is re-established with exponential backoff,
// preserving the per-connection frame classification and dispatch contracts.
func Listen(ctx context.Context, streamURL, apiKey string, deadline time.Duration, attempts int, classifier *Classifier, handler Handler) error {
	run := func() (struct{}, error) {
		sub := NewSubscriber(streamURL, apiKey, deadline, classifier, handler)
		return struct{}{}, sub.Run(ctx)
	}

	if attempts == 0 {
		_, err := run()
		return err
	}

	_, err := backoff.Retry(ctx, run,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(attempts)),
	)
	return err
}
