package repository

import (
	"context"
	"encoding/json"
	"errors"

	"crowdwatch/internal/model"
)

// ErrDuplicate is returned when a unique column (the user email) is reused.
var ErrDuplicate = errors.New("duplicate record")

// UserRepository defines the interface for user account operations.
// Lookups return (nil, nil) when no row matches.
type UserRepository interface {
	// Create operations
	Create(ctx context.Context, user *model.User) error

	// Read operations
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
	Count(ctx context.Context) (int64, error)

	// Update operations
	UpdateRole(ctx context.Context, email string, role model.Role) (bool, error)
	UpdatePassword(ctx context.Context, id uint, hash string) error

	// Delete operations
	DeleteByEmail(ctx context.Context, email string) (bool, error)
}

// SnapshotStore keeps the counts of the last processed image and video.
type SnapshotStore interface {
	Save(mode model.ReportMode, counts model.Counts) error
	Load(mode model.ReportMode) (model.Counts, error)
}

// SafeZoneStore keeps the opaque zone list drawn on the dashboard.
type SafeZoneStore interface {
	Save(zones []json.RawMessage) error
	Load() ([]json.RawMessage, error)
}
