package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	ledger "lifeline/internal/ledger/service"
	request "lifeline/internal/request/service"
	"lifeline/pkg/requestcontext"
)

// sweeper expires out-of-date units and lapsed reservation holds.
type sweeper struct {
	ledger   *ledger.Service
	requests *request.Service
	logger   *slog.Logger
}

func newSweeper(a *app) *sweeper {
	return &sweeper{ledger: a.ledger, requests: a.requests, logger: a.logger}
}

// RunOnce performs one pass at now. Stale requests go first so their units are
// back in stock before the unit sweep decides what has expired.
func (s *sweeper) RunOnce(ctx context.Context, now time.Time) (requests int, units int, err error) {
	ctx = requestcontext.WithTime(ctx, now)
	requests, err = s.requests.ExpireStaleReservations(ctx, now)
	if err != nil {
		return requests, 0, err
	}
	units, err = s.ledger.SweepExpired(ctx, now)
	return requests, units, err
}

// Run sweeps every interval until ctx is cancelled. Failed passes are logged
// and retried on the next tick.
func (s *sweeper) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if _, _, err := s.RunOnce(ctx, now); err != nil {
				s.logger.WarnContext(ctx, "expiry sweep failed", "error", err)
			}
		}
	}
}

func sweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one expiry sweep and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := buildApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.close()

			requests, units, err := newSweeper(a).RunOnce(ctx, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rejected %d stale requests, expired %d units\n", requests, units)
			return nil
		},
	}
}
