// Package storage defines persistence contracts for preview snapshots.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates no snapshot exists for the requested root.
var ErrNotFound = errors.New("record not found")

// Snapshot stores the last known page of one preview root container: the
// container content plus the head state patches migrated into the page.
type Snapshot struct {
	RootID    string
	Markup    string
	Head      string
	Title     string
	BaseURI   string
	Sequence  int64
	UpdatedAt time.Time
}

// SnapshotStore persists preview snapshots keyed by root id.
type SnapshotStore interface {
	PutSnapshot(ctx context.Context, snapshot Snapshot) error
	GetSnapshot(ctx context.Context, rootID string) (Snapshot, error)
}
