package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/TANANUNKUB/clip-booking-core/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SnapshotRepository хранит срезы состояния потока бронирования.
// Одна запись на ключ; срез переживает перезапуск процесса и
// используется для восстановления прерванного потока
type SnapshotRepository struct {
	pool *pgxpool.Pool
}

func NewSnapshotRepository(pool *pgxpool.Pool) *SnapshotRepository {
	return &SnapshotRepository{pool: pool}
}

// Get читает срез по ключу. Возвращает nil, nil если записи нет
func (r *SnapshotRepository) Get(ctx context.Context, key string) (*model.Snapshot, error) {
	query := `
		SELECT payload
		FROM flow_snapshots
		WHERE storage_key = $1
	`

	var payload []byte
	err := r.pool.QueryRow(ctx, query, key).Scan(&payload)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}

	var snapshot model.Snapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	return &snapshot, nil
}

// Set записывает срез по ключу, затирая предыдущий
func (r *SnapshotRepository) Set(ctx context.Context, key string, snapshot *model.Snapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	query := `
		INSERT INTO flow_snapshots (storage_key, payload, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (storage_key)
		DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()
	`

	if _, err := r.pool.Exec(ctx, query, key, payload); err != nil {
		return fmt.Errorf("set snapshot: %w", err)
	}

	return nil
}

// Delete удаляет срез (используется при выходе из аккаунта)
func (r *SnapshotRepository) Delete(ctx context.Context, key string) error {
	query := `DELETE FROM flow_snapshots WHERE storage_key = $1`

	if _, err := r.pool.Exec(ctx, query, key); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}

	return nil
}
