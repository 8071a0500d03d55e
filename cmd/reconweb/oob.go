package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/reconweb/internal/database"
	"github.com/nao1215/reconweb/internal/helpers"
	"github.com/nao1215/reconweb/internal/interactsh"
)

// deregisterTimeout bounds the final deregistration after the poll loop ends.
const deregisterTimeout = 10 * time.Second

// NewOOBCmd creates the oob command.
func NewOOBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "oob",
		Short: "Capture out-of-band interactions with interactsh",
		Long: `OOB registers with an interactsh provider, prints a unique callback
domain and polls for DNS, HTTP and SMTP interactions on it until interrupted.

Every interaction is printed and stored in the local index, so it can be
listed later with --history. The registration is removed on exit.

Providers come from the configuration file (interactsh.servers) and default
to the public oast.* instances.

Examples:
  # Listen until Ctrl+C
  reconweb oob

  # Listen for five minutes, polling every 10 seconds
  reconweb oob --duration 5m --interval 10s

  # Show interactions recorded earlier
  reconweb oob --history`,
		Args: cobra.NoArgs,
		RunE: runOOBCmd,
	}

	cmd.Flags().Duration("interval", 0, "Poll interval (default: interactsh.poll_interval or 5s)")
	cmd.Flags().Duration("duration", 0, "Stop after this long (0 = until interrupted)")
	cmd.Flags().Bool("history", false, "List recorded interactions and exit")
	cmd.Flags().String("id", "", "With --history, only list interactions of this correlation ID")

	return cmd
}

func runOOBCmd(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	flags := cmd.Flags()
	interval, err := flags.GetDuration("interval")
	if err != nil {
		return err
	}
	duration, err := flags.GetDuration("duration")
	if err != nil {
		return err
	}
	history, err := flags.GetBool("history")
	if err != nil {
		return err
	}
	correlationID, err := flags.GetString("id")
	if err != nil {
		return err
	}

	s, err := openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	if history {
		records, err := s.helpers.Interactions(ctx, correlationID)
		if err != nil {
			return err
		}
		_, err = s.writer.WriteInteractions(records)
		return err
	}

	if interval <= 0 {
		interval = s.cfg.PollInterval
	}

	printer := interactsh.SinkFunc(func(_ context.Context, reg interactsh.Registration, interaction interactsh.Interaction) error {
		record := helpers.NewInteractionRecord(reg, interaction)
		_, err := s.writer.WriteInteractions([]database.InteractionRecord{*record})
		return err
	})

	client := s.helpers.NewInteractionClient()
	domain, err := client.Register(ctx, s.helpers.RecordInteractions(printer))
	if err != nil {
		return err
	}
	defer func() {
		dctx, dcancel := context.WithTimeout(context.WithoutCancel(ctx), deregisterTimeout)
		defer dcancel()
		if err := client.Deregister(dctx); err != nil {
			s.logger.Warn("failed to deregister", "error", err)
		}
	}()

	reg, _ := client.Registration()
	fmt.Fprintf(cmd.ErrOrStderr(), "Callback domain: %s\n", domain)
	fmt.Fprintf(cmd.ErrOrStderr(), "Provider: %s (correlation id %s), polling every %s\n", reg.Server, reg.CorrelationID, interval)

	if duration > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, duration)
		defer stop()
	}

	return pollLoop(ctx, client, interval, s)
}

// pollLoop polls on every tick until ctx ends, then polls once more so
// interactions that arrived during the last interval are not lost.
func pollLoop(ctx context.Context, client *interactsh.Client, interval time.Duration, s *session) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			fctx, fcancel := context.WithTimeout(context.WithoutCancel(ctx), deregisterTimeout)
			_, err := client.Poll(fctx)
			fcancel()
			if err != nil {
				s.logger.Warn("final poll failed", "error", err)
			}
			return nil
		case <-ticker.C:
			if _, err := client.Poll(ctx); err != nil {
				if errors.Is(err, interactsh.ErrState) {
					return err
				}
				if ctx.Err() == nil {
					s.logger.Warn("poll failed", "error", err)
				}
			}
		}
	}
}
