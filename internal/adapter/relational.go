package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vitaliisemenov/syncengine/internal/domain"
)

// Relational is the one domain.Adapter implementation this module actually
// persists to: the relational store's task row, per spec.md §6. Every other
// target system's adapter (tracker, VCS, agent) is an in-memory double;
// this is the single in-scope row operation.
type Relational struct {
	pool *pgxpool.Pool
}

// NewRelational wraps an already-established pgxpool.Pool.
func NewRelational(pool *pgxpool.Pool) *Relational {
	return &Relational{pool: pool}
}

func (r *Relational) System() domain.System { return domain.SystemRelational }

// Apply performs `UPDATE tasks SET status=$1, updated_at=now(), metadata=$2
// WHERE id=$3`, surfacing a missing row as domain.ErrEntityNotFound wrapped
// in a domain.Error with Kind=dispatch, Transient=false (a nonexistent row
// will never start existing on retry).
func (r *Relational) Apply(ctx context.Context, update *domain.StatusUpdate) (*domain.ApplyResult, error) {
	metadataJSON, err := json.Marshal(update.Metadata)
	if err != nil {
		return nil, domain.NewDispatchError(err, false)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE tasks SET status=$1, updated_at=now(), metadata=$2 WHERE id=$3`,
		update.Status, metadataJSON, update.EntityID,
	)
	if err != nil {
		return nil, domain.NewDispatchError(err, isTransient(err))
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.NewDispatchError(domain.ErrEntityNotFound, false)
	}

	return &domain.ApplyResult{
		System:    domain.SystemRelational,
		EntityID:  update.EntityID,
		Status:    update.Status,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

func (r *Relational) HealthCheck(ctx context.Context) (*domain.Health, error) {
	if err := r.pool.Ping(ctx); err != nil {
		return &domain.Health{Status: domain.HealthUnhealthy, Detail: err.Error()}, nil
	}
	return &domain.Health{Status: domain.HealthHealthy}, nil
}

// isTransient classifies a pgx/driver error as retryable. Connection-level
// failures (pool exhaustion, closed connections, context deadline) are
// transient; everything else is treated as a permanent failure so the
// queue doesn't keep retrying a malformed statement.
func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if errors.Is(err, pgx.ErrTxClosed) {
		return true
	}
	return false
}
