package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Handoff struct {
	ID        uuid.UUID
	LeadID    uuid.UUID
	Requester string
	Reason    string
	CreatedAt time.Time
}

func (r *Repository) CreateHandoff(ctx context.Context, leadID uuid.UUID, requester, reason string) (Handoff, error) {
	var h Handoff
	err := r.pool.QueryRow(ctx, `
		INSERT INTO handoffs (lead_id, requester, reason)
		VALUES ($1, $2, $3)
		RETURNING id, lead_id, requester, reason, created_at
	`, leadID, requester, reason).Scan(&h.ID, &h.LeadID, &h.Requester, &h.Reason, &h.CreatedAt)
	return h, err
}

func (r *Repository) ListHandoffs(ctx context.Context, leadID uuid.UUID) ([]Handoff, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, requester, reason, created_at
		FROM handoffs
		WHERE lead_id = $1
		ORDER BY created_at DESC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	handoffs := make([]Handoff, 0)
	for rows.Next() {
		var h Handoff
		if err := rows.Scan(&h.ID, &h.LeadID, &h.Requester, &h.Reason, &h.CreatedAt); err != nil {
			return nil, err
		}
		handoffs = append(handoffs, h)
	}
	return handoffs, rows.Err()
}
