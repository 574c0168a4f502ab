package email

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// NoopSender logs sends but does not deliver them. Used when no Resend API
// key is configured.
type NoopSender struct{}

// NewNoopSender creates a new NoopSender.
func NewNoopSender() *NoopSender {
	return &NoopSender{}
}

// Send logs the email but does not deliver it.
func (s *NoopSender) Send(_ context.Context, req SendRequest) (SendResult, error) {
	if err := req.Validate(); err != nil {
		return SendResult{}, err
	}
	slog.Info("noop_email_send", "recipients", len(req.To), "subject", req.Subject)
	return SendResult{MessageID: "noop-" + uuid.NewString(), SentAt: time.Now()}, nil
}

// RecordingSender keeps every request in memory. Used by tests.
type RecordingSender struct {
	mu   sync.Mutex
	sent []SendRequest
	Err  error
}

// Send records req, or returns Err when set.
func (s *RecordingSender) Send(_ context.Context, req SendRequest) (SendResult, error) {
	if s.Err != nil {
		return SendResult{}, s.Err
	}
	if err := req.Validate(); err != nil {
		return SendResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, req)
	return SendResult{MessageID: uuid.NewString(), SentAt: time.Now()}, nil
}

// Sent returns a copy of the recorded requests.
func (s *RecordingSender) Sent() []SendRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SendRequest(nil), s.sent...)
}
