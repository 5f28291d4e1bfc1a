// Package store persists world snapshots. The engine is stateless per
// call; the scheduler saves the full snapshot after every turn and the
// daemon loads it on start. Two backends: SQLite for a single-node file,
// Redis for shared deployments.
package store

import (
	"context"
	"errors"

	"github.com/talgya/deus-ex/internal/world"
)

// ErrNoSave means no snapshot has been persisted yet; callers seed a
// fresh world.
var ErrNoSave = errors.New("no saved world")

// saveKey is the single save slot; a store holds one world.
const saveKey = "current_save"

// Store reads and writes the single world snapshot.
type Store interface {
	Load(ctx context.Context) (*world.Snapshot, error)
	Save(ctx context.Context, snap *world.Snapshot) error
	Clear(ctx context.Context) error
	Close() error
}
