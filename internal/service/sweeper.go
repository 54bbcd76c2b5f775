package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Rrens/finance-chat/internal/domain"
)

const (
	defaultSessionIdle    = 30 * time.Minute
	defaultSessionArchive = 90 * 24 * time.Hour
	defaultSweepInterval  = 5 * time.Minute
)

// SessionSweeper moves inactive sessions to IDLE and old idle ones to ARCHIVED
type SessionSweeper struct {
	sessionRepo  domain.SessionRepository
	idleAfter    time.Duration
	archiveAfter time.Duration
	interval     time.Duration
	now          func() time.Time
}

// NewSessionSweeper creates a new session sweeper
func NewSessionSweeper(sessionRepo domain.SessionRepository, idleAfter, archiveAfter, interval time.Duration) *SessionSweeper {
	if idleAfter <= 0 {
		idleAfter = defaultSessionIdle
	}
	if archiveAfter <= 0 {
		archiveAfter = defaultSessionArchive
	}
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &SessionSweeper{
		sessionRepo:  sessionRepo,
		idleAfter:    idleAfter,
		archiveAfter: archiveAfter,
		interval:     interval,
		now:          time.Now,
	}
}

// Sweep runs one pass and returns how many sessions changed state
func (s *SessionSweeper) Sweep(ctx context.Context) (idled, archived int64, err error) {
	now := s.now()

	idled, err = s.sessionRepo.MarkIdle(ctx, now.Add(-s.idleAfter))
	if err != nil {
		return 0, 0, err
	}

	archived, err = s.sessionRepo.Archive(ctx, now.Add(-s.archiveAfter))
	if err != nil {
		return idled, 0, err
	}

	return idled, archived, nil
}

// Run sweeps every interval until ctx is cancelled
func (s *SessionSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			idled, archived, err := s.Sweep(ctx)
			if err != nil {
				log.Error().Err(err).Msg("session sweep failed")
				continue
			}
			if idled > 0 || archived > 0 {
				log.Info().Int64("idled", idled).Int64("archived", archived).Msg("session sweep")
			}
		}
	}
}
