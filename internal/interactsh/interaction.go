package interactsh

import (
	"context"
	"encoding/json"
	"time"
)

// Interaction is one out-of-band hit recorded by the provider.
type Interaction struct {
	Protocol      string    `json:"protocol"`
	UniqueID      string    `json:"unique-id"`
	FullID        string    `json:"full-id"`
	QType         string    `json:"q-type,omitempty"`
	RawRequest    string    `json:"raw-request,omitempty"`
	RawResponse   string    `json:"raw-response,omitempty"`
	SMTPFrom      string    `json:"smtp-from,omitempty"`
	RemoteAddress string    `json:"remote-address"`
	Timestamp     time.Time `json:"timestamp"`

	// Raw is the decrypted record exactly as the provider sent it.
	Raw json.RawMessage `json:"-"`
}

// Registration describes an active registration.
type Registration struct {
	// CorrelationID identifies the registration at the provider.
	CorrelationID string

	// Server is the base URL of the provider that accepted the registration.
	Server string

	// Domain is the callback domain handed out to payloads.
	Domain string

	// SecretKey authenticates poll and deregister calls.
	SecretKey string

	// CreatedAt is when the registration succeeded.
	CreatedAt time.Time
}

// Sink receives interactions from Poll.
type Sink interface {
	// HandleInteraction is called once per interaction, synchronously within
	// Poll. An error is logged and does not stop the poll.
	HandleInteraction(ctx context.Context, reg Registration, interaction Interaction) error
}

// SinkFunc adapts an ordinary function to the Sink interface.
type SinkFunc func(ctx context.Context, reg Registration, interaction Interaction) error

// HandleInteraction calls f.
func (f SinkFunc) HandleInteraction(ctx context.Context, reg Registration, interaction Interaction) error {
	return f(ctx, reg, interaction)
}

// discardSink is used when Register is given a nil Sink.
var discardSink = SinkFunc(func(context.Context, Registration, Interaction) error { return nil })
