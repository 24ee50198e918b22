package store

import (
	"context"

	"github.com/me/rangerd/pkg/model"
)

// Store defines the persistence layer for retired ranging sessions.
type Store interface {
	CreateSession(ctx context.Context, sess *model.Session) error
	GetSession(ctx context.Context, id string) (*model.Session, error)
	ListSessions(ctx context.Context, opts model.ListOptions) ([]*model.Session, int, error)
	PruneSessions(ctx context.Context, keep int) (int64, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
