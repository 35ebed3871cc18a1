package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/sahara/internal/logger"
	"github.com/spigell/sahara/internal/metrics"
)

const DefaultWriteTimeout = 5 * time.Second

type Options struct {
	RecentLimit  int
	WriteTimeout time.Duration
	Now          func() time.Time
}

// Recorder normalizes and persists sessions. Persistence failures never reach
// the matching path: RecordAsync only logs them.
type Recorder struct {
	store        Store
	logger       *zap.Logger
	metrics      *metrics.Metrics
	recentLimit  int
	writeTimeout time.Duration
	now          func() time.Time
}

func NewRecorder(store Store, log *zap.Logger, m *metrics.Metrics, opts Options) (*Recorder, error) {
	if store == nil {
		return nil, errors.New("session store is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = DefaultRecentLimit
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Recorder{
		store:        store,
		logger:       log,
		metrics:      m,
		recentLimit:  opts.RecentLimit,
		writeTimeout: opts.WriteTimeout,
		now:          opts.Now,
	}, nil
}

// Record normalizes r and writes it. The stored record is returned.
func (rec *Recorder) Record(ctx context.Context, r Record) (Record, error) {
	normalized, err := Normalize(r, rec.now())
	if err != nil {
		rec.metrics.SessionWrite(err)
		return Record{}, err
	}

	err = rec.store.Save(ctx, normalized)
	rec.metrics.SessionWrite(err)
	if err != nil {
		return Record{}, err
	}

	rec.logger.Debug("session saved",
		append(logger.SessionFields(normalized.SessionID, normalized.UserID),
			zap.Int("benefit_count", normalized.BenefitCount),
			zap.String("search_type", string(normalized.SearchType)),
		)...,
	)
	return normalized, nil
}

// RecordAsync writes r in the background. It returns immediately; the
// returned channel is closed once the write has finished.
func (rec *Recorder) RecordAsync(r Record) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		ctx, cancel := context.WithTimeout(context.Background(), rec.writeTimeout)
		defer cancel()

		if _, err := rec.Record(ctx, r); err != nil {
			rec.logger.Warn("failed to save session",
				append(logger.SessionFields(r.SessionID, r.UserID), zap.Error(err))...,
			)
		}
	}()
	return done
}

// Recent returns the newest sessions of a user. A non-positive limit selects the default.
func (rec *Recorder) Recent(ctx context.Context, userID string, limit int) ([]Record, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidRecord)
	}
	if limit <= 0 {
		limit = rec.recentLimit
	}
	return rec.store.Recent(ctx, userID, limit)
}

func (rec *Recorder) Get(ctx context.Context, sessionID string) (Record, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return Record{}, ErrNotFound
	}
	return rec.store.Get(ctx, sessionID)
}

// Track stores a benefit interaction.
func (rec *Recorder) Track(ctx context.Context, i Interaction) (Interaction, error) {
	i.SessionID = strings.TrimSpace(i.SessionID)
	i.UserID = strings.TrimSpace(i.UserID)
	i.BenefitID = strings.TrimSpace(i.BenefitID)
	i.Action = strings.ToLower(strings.TrimSpace(i.Action))

	switch {
	case i.SessionID == "":
		return Interaction{}, fmt.Errorf("%w: session id is required", ErrInvalidRecord)
	case i.UserID == "":
		return Interaction{}, fmt.Errorf("%w: user id is required", ErrInvalidRecord)
	case i.BenefitID == "":
		return Interaction{}, fmt.Errorf("%w: benefit id is required", ErrInvalidRecord)
	case i.Action == "":
		return Interaction{}, fmt.Errorf("%w: action is required", ErrInvalidRecord)
	}
	if i.Timestamp.IsZero() {
		i.Timestamp = rec.now()
	}
	i.Timestamp = i.Timestamp.UTC()

	if err := rec.store.SaveInteraction(ctx, i); err != nil {
		return Interaction{}, err
	}
	return i, nil
}

func (rec *Recorder) Interactions(ctx context.Context, sessionID string) ([]Interaction, error) {
	return rec.store.Interactions(ctx, strings.TrimSpace(sessionID))
}

func (rec *Recorder) Close() error {
	return rec.store.Close()
}
