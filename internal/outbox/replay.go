package outbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Replayer moves dead-lettered events back into the outbox so the dispatcher retries them.
type Replayer struct {
	pool *pgxpool.Pool
}

// NewReplayer constructs a Replayer.
func NewReplayer(pool *pgxpool.Pool) *Replayer {
	return &Replayer{pool: pool}
}

// Pending returns the number of dead-lettered events not yet replayed.
func (r *Replayer) Pending(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq WHERE replayed_at IS NULL`).Scan(&count)
	if err == nil {
		dlqBacklogGauge.Set(float64(count))
	}
	return count, err
}

// Replay requeues up to batchSize entries and reports how many were moved.
func (r *Replayer) Replay(ctx context.Context, batchSize int) (int, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	const query = `SELECT id, event_id, aggregate_type, aggregate_id, event_type, topic, partition_key, payload
        FROM outbox_dlq
        WHERE replayed_at IS NULL
        ORDER BY id
        LIMIT $1
        FOR UPDATE SKIP LOCKED`

	rows, err := tx.Query(ctx, query, batchSize)
	if err != nil {
		return 0, err
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (dlqEntry, error) {
		var e dlqEntry
		err := row.Scan(&e.ID, &e.EventID, &e.AggregateType, &e.AggregateID, &e.EventType, &e.Topic, &e.PartitionKey, &e.Payload)
		return e, err
	})
	if err != nil {
		return 0, err
	}

	var errs []error
	moved := 0
	for _, e := range entries {
		if _, ok := Catalog[e.EventType]; !ok {
			errs = append(errs, fmt.Errorf("dlq entry %d: unknown event_type %s", e.ID, e.EventType))
			continue
		}
		if err := requeue(ctx, tx, e); err != nil {
			return 0, fmt.Errorf("requeue dlq entry %d: %w", e.ID, err)
		}
		moved++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	requeuedCounter.Add(float64(moved))
	return moved, errors.Join(errs...)
}

func requeue(ctx context.Context, tx pgx.Tx, e dlqEntry) error {
	// dedupe_key must differ from the original event's so the insert is not swallowed.
	dedupeKey := fmt.Sprintf("replay:%d:%s", e.ID, e.EventType)
	if _, err := tx.Exec(ctx,
		`INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, partition_key, payload, dedupe_key)
         VALUES ($1,$2,$3,$4,$5,$6,$7)
         ON CONFLICT (dedupe_key) DO NOTHING`,
		e.AggregateType, e.AggregateID, e.EventType, e.Topic, e.PartitionKey, e.Payload, dedupeKey,
	); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `UPDATE outbox_dlq SET replayed_at = NOW() WHERE id = $1`, e.ID)
	return err
}

type dlqEntry struct {
	ID            int64
	EventID       int64
	AggregateType string
	AggregateID   string
	EventType     string
	Topic         string
	PartitionKey  string
	Payload       []byte
}
