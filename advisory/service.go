// Package advisory produces optional free-text commentary on readings from
// an external language model. It runs beside the ingestion path and never
// blocks or fails it.
package advisory

import (
	"context"
	"sync"
	"time"

	"github.com/praisemwanza53/genset-monitoring/alerting"
	"github.com/praisemwanza53/genset-monitoring/logger"
	"github.com/praisemwanza53/genset-monitoring/models"
)

// Client generates commentary for a reading
type Client interface {
	Advise(ctx context.Context, r models.SensorReading, alerts []alerting.Alert) (string, error)
}

// Advice is the most recent commentary produced
type Advice struct {
	ReadingTimestamp string    `json:"reading_timestamp"`
	Text             string    `json:"text"`
	GeneratedAt      time.Time `json:"generated_at"`
}

type job struct {
	reading models.SensorReading
	alerts  []alerting.Alert
}

// Service feeds readings to a Client from a single worker goroutine
type Service struct {
	client  Client
	timeout time.Duration
	queue   chan job

	mu     sync.RWMutex
	latest *Advice
}

// NewService returns a service using client. A nil client yields a
// disabled service whose Submit is a no-op.
func NewService(client Client, timeout time.Duration) *Service {
	return &Service{
		client:  client,
		timeout: timeout,
		queue:   make(chan job, 1),
	}
}

// Enabled reports whether a client is configured
func (s *Service) Enabled() bool {
	return s != nil && s.client != nil
}

// Submit queues r for commentary. It drops the request when the worker is
// already busy with a pending reading.
func (s *Service) Submit(r models.SensorReading, alerts []alerting.Alert) bool {
	if !s.Enabled() {
		return false
	}
	select {
	case s.queue <- job{reading: r, alerts: alerts}:
		return true
	default:
		logger.Debugf("advisory busy, skipping reading %s\n", r.Timestamp)
		return false
	}
}

// Run processes queued readings until ctx is done
func (s *Service) Run(ctx context.Context) {
	if !s.Enabled() {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			s.advise(ctx, j)
		}
	}
}

func (s *Service) advise(ctx context.Context, j job) {
	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	text, err := s.client.Advise(callCtx, j.reading, j.alerts)
	if err != nil {
		logger.Warnf("advisory for reading %s failed: %v\n", j.reading.Timestamp, err)
		return
	}

	s.mu.Lock()
	s.latest = &Advice{
		ReadingTimestamp: j.reading.Timestamp,
		Text:             text,
		GeneratedAt:      time.Now().UTC(),
	}
	s.mu.Unlock()
}

// Latest returns the most recent advice, if any
func (s *Service) Latest() (Advice, bool) {
	if s == nil {
		return Advice{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return Advice{}, false
	}
	return *s.latest, true
}
