package session

import (
	"context"
	"errors"
)

const DefaultRecentLimit = 5

var ErrNotFound = errors.New("session not found")

// Store persists normalized records. Save replaces an earlier record with the
// same session id. Recent returns a user's records newest first.
type Store interface {
	Save(ctx context.Context, r Record) error
	Get(ctx context.Context, sessionID string) (Record, error)
	Recent(ctx context.Context, userID string, limit int) ([]Record, error)
	SaveInteraction(ctx context.Context, i Interaction) error
	Interactions(ctx context.Context, sessionID string) ([]Interaction, error)
	Close() error
}
