package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/radsched/radsched/pkg/model"
)

// SnapshotRecord is one owner's persisted state snapshot. The snapshot
// itself is stored as a single JSONB document: its shape (locations,
// rows, clinicians, weekly template, solver settings...) is defined and
// versioned by pkg/model.AppState, not by the SQL schema, so the store
// never needs a migration when a new snapshot field is added.
type SnapshotRecord struct {
	OwnerID   string
	State     model.AppState
	UpdatedAt time.Time
}

// SnapshotRepositoryInterface is the contract the state handler depends
// on; an in-memory implementation backs deployments with no configured
// database.
type SnapshotRepositoryInterface interface {
	Get(ctx context.Context, ownerID string) (*SnapshotRecord, error)
	Put(ctx context.Context, ownerID string, state model.AppState) error
}

// SnapshotRepository is the Postgres-backed SnapshotRepositoryInterface.
type SnapshotRepository struct {
	db DB
}

// NewSnapshotRepository builds a Postgres-backed snapshot repository.
func NewSnapshotRepository(db DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Get loads ownerID's snapshot, or (nil, nil) if none has been saved yet.
func (r *SnapshotRepository) Get(ctx context.Context, ownerID string) (*SnapshotRecord, error) {
	query := `SELECT owner_id, state, updated_at FROM state_snapshots WHERE owner_id = $1`

	row := r.db.QueryRowContext(ctx, query, ownerID)
	rec := &SnapshotRecord{}
	var stateJSON []byte

	err := row.Scan(&rec.OwnerID, &stateJSON, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan state snapshot: %w", err)
	}

	if err := json.Unmarshal(stateJSON, &rec.State); err != nil {
		return nil, fmt.Errorf("unmarshal state snapshot: %w", err)
	}
	return rec, nil
}

// Put upserts ownerID's snapshot.
func (r *SnapshotRepository) Put(ctx context.Context, ownerID string, state model.AppState) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state snapshot: %w", err)
	}

	query := `
		INSERT INTO state_snapshots (owner_id, state, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (owner_id) DO UPDATE SET state = $2, updated_at = $3
	`
	_, err = r.db.ExecContext(ctx, query, ownerID, stateJSON, time.Now())
	if err != nil {
		return fmt.Errorf("upsert state snapshot: %w", err)
	}
	return nil
}

// InMemorySnapshotRepository is the SnapshotRepositoryInterface used when
// no database is configured (see SPEC_FULL.md's Component K: the store is
// transport-layer convenience, not a core dependency).
type InMemorySnapshotRepository struct {
	mu      sync.RWMutex
	byOwner map[string]*SnapshotRecord
}

// NewInMemorySnapshotRepository builds an empty in-process snapshot holder.
func NewInMemorySnapshotRepository() *InMemorySnapshotRepository {
	return &InMemorySnapshotRepository{byOwner: make(map[string]*SnapshotRecord)}
}

// Get returns the last snapshot Put for ownerID, or (nil, nil).
func (r *InMemorySnapshotRepository) Get(ctx context.Context, ownerID string) (*SnapshotRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.byOwner[ownerID]
	if !ok {
		return nil, nil
	}
	return rec, nil
}

// Put replaces ownerID's snapshot.
func (r *InMemorySnapshotRepository) Put(ctx context.Context, ownerID string, state model.AppState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byOwner[ownerID] = &SnapshotRecord{OwnerID: ownerID, State: state, UpdatedAt: time.Now()}
	return nil
}
