package helpers

import (
	"context"
	"fmt"

	"github.com/nao1215/reconweb/internal/database"
	"github.com/nao1215/reconweb/internal/interactsh"
)

// RecordInteractions returns a Sink that stores every interaction in the
// index and then passes it on to next. next may be nil. Without an index
// the returned sink only forwards.
func (h *Helpers) RecordInteractions(next interactsh.Sink) interactsh.Sink {
	return interactsh.SinkFunc(func(ctx context.Context, reg interactsh.Registration, interaction interactsh.Interaction) error {
		if h.index != nil {
			if _, err := h.index.InsertInteraction(ctx, NewInteractionRecord(reg, interaction)); err != nil {
				return fmt.Errorf("failed to record interaction: %w", err)
			}
		}
		if next == nil {
			return nil
		}
		return next.HandleInteraction(ctx, reg, interaction)
	})
}

// NewInteractionRecord converts a polled interaction into its stored form.
func NewInteractionRecord(reg interactsh.Registration, interaction interactsh.Interaction) *database.InteractionRecord {
	return &database.InteractionRecord{
		CorrelationID: reg.CorrelationID,
		Server:        reg.Server,
		Protocol:      interaction.Protocol,
		UniqueID:      interaction.UniqueID,
		FullID:        interaction.FullID,
		RemoteAddress: interaction.RemoteAddress,
		Timestamp:     interaction.Timestamp,
		Raw:           string(interaction.Raw),
	}
}
