package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Memory struct {
	ID        uuid.UUID
	LeadID    uuid.UUID
	Key       string
	Value     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UpsertMemory writes one fact under its key; a repeated key replaces the
// value so memory never accumulates stale duplicates.
func (r *Repository) UpsertMemory(ctx context.Context, leadID uuid.UUID, key, value string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO lead_memories (lead_id, key, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (lead_id, key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = now()
	`, leadID, key, value)
	return err
}

func (r *Repository) ListMemories(ctx context.Context, leadID uuid.UUID) ([]Memory, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, key, value, created_at, updated_at
		FROM lead_memories
		WHERE lead_id = $1
		ORDER BY key ASC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	memories := make([]Memory, 0)
	for rows.Next() {
		var mem Memory
		if err := rows.Scan(&mem.ID, &mem.LeadID, &mem.Key, &mem.Value, &mem.CreatedAt, &mem.UpdatedAt); err != nil {
			return nil, err
		}
		memories = append(memories, mem)
	}
	return memories, rows.Err()
}
