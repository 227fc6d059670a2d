package postgres

import (
	"context"
	"log/slog"
	"time"
)

type expiredDeleter interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// Sweeper periodically removes expired verification records.
type Sweeper struct {
	store    expiredDeleter
	interval time.Duration
	log      *slog.Logger
}

func NewSweeper(store expiredDeleter, interval time.Duration, log *slog.Logger) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{store: store, interval: interval, log: log}
}

// Run blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("starting verification sweeper", slog.Duration("interval", s.interval))
	s.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("stopping verification sweeper")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.store.DeleteExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Error("sweep expired verifications failed", slog.String("error", err.Error()))
		}
		return
	}
	if n > 0 {
		s.log.Debug("swept expired verifications", slog.Int64("count", n))
	}
}
