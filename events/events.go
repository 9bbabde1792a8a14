// Package events defines the fire-and-forget notification boundary between
// the auth core and its collaborators. Pre events run synchronously and can
// abort the operation; post events flow through a buffered dispatcher and
// failures are logged, never rolled back.
package events

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Type names one notification.
type Type string

const (
	PreSignUp             Type = "PreSignUp"
	PostSignUp            Type = "PostSignUp"
	PostSignIn            Type = "PostSignIn"
	PreSetAuthAttributes  Type = "PreSetAuthAttributes"
	PostSetAuthAttributes Type = "PostSetAuthAttributes"
	SignOut               Type = "SignOut"
	DeleteUser            Type = "DeleteUser"
	ConfirmationRequested Type = "ConfirmationRequested"
	// MFACheck is the envelope type handed to Sink.MFARequired probes.
	MFACheck Type = "MFACheck"
)

// Event is the canonical notification payload.
type Event struct {
	Timestamp   time.Time         `json:"timestamp"`
	Type        Type              `json:"type"`
	UserID      string            `json:"user_id,omitempty"`
	ProjectID   string            `json:"project_id,omitempty"`
	ClientID    string            `json:"client_id,omitempty"`
	DeviceAgent string            `json:"device_agent,omitempty"`
	Success     bool              `json:"success"`
	Error       string            `json:"error,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Sink receives notifications. Notify errors abort the operation only for
// pre events; MFARequired lets a collaborator require MFA for a user by
// returning true.
type Sink interface {
	Notify(ctx context.Context, event Event) error
	MFARequired(ctx context.Context, event Event) (bool, error)
}

// NoOpSink discards all events and never requires MFA.
type NoOpSink struct{}

func (NoOpSink) Notify(context.Context, Event) error { return nil }

func (NoOpSink) MFARequired(context.Context, Event) (bool, error) { return false, nil }

// ChannelSink writes events into a buffered channel.
type ChannelSink struct {
	events chan Event
}

// NewChannelSink creates a ChannelSink with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan Event, buffer)}
}

func (s *ChannelSink) Notify(ctx context.Context, event Event) error {
	select {
	case s.events <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ChannelSink) MFARequired(context.Context, Event) (bool, error) { return false, nil }

// Events exposes the receiving side of the channel.
func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewJSONWriterSink creates a JSONWriterSink that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{writer: w}
}

func (s *JSONWriterSink) Notify(_ context.Context, event Event) error {
	if s == nil || s.writer == nil {
		return nil
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.writer.Write(data); err != nil {
		return err
	}
	_, err = s.writer.Write([]byte("\n"))
	return err
}

func (s *JSONWriterSink) MFARequired(context.Context, Event) (bool, error) { return false, nil }
