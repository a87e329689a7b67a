package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound         = errors.New("lead not found")
	ErrDuplicateMessage = errors.New("message already recorded")
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type Lead struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	Phone          string
	Name           *string
	ProviderName   *string
	AvatarURL      *string
	Email          *string
	City           *string
	Stage          string
	Owner          string
	Score          int
	Summary        *string
	LastActivityAt time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

const leadColumns = `id, tenant_id, phone, name, provider_name, avatar_url, email, city,
		stage, owner, score, summary, last_activity_at, created_at, updated_at`

func scanLead(row pgx.Row) (Lead, error) {
	var lead Lead
	err := row.Scan(
		&lead.ID, &lead.TenantID, &lead.Phone, &lead.Name, &lead.ProviderName,
		&lead.AvatarURL, &lead.Email, &lead.City, &lead.Stage, &lead.Owner,
		&lead.Score, &lead.Summary, &lead.LastActivityAt, &lead.CreatedAt, &lead.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

type UpsertLeadParams struct {
	TenantID     uuid.UUID
	Phone        string
	ProviderName *string
}

// UpsertByPhone finds or creates the lead for a canonical phone. The
// provider display name refreshes on every call and is adopted as the
// working name while no name is known. The second return value reports
// whether the lead was created by this call; the xmax = 0 check is true
// only for freshly inserted rows.
func (r *Repository) UpsertByPhone(ctx context.Context, params UpsertLeadParams) (Lead, bool, error) {
	var lead Lead
	var created bool
	err := r.pool.QueryRow(ctx, `
		INSERT INTO leads (tenant_id, phone, provider_name, name)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (tenant_id, phone) DO UPDATE SET
			provider_name = COALESCE(EXCLUDED.provider_name, leads.provider_name),
			name = COALESCE(leads.name, EXCLUDED.provider_name),
			last_activity_at = now(),
			updated_at = now()
		RETURNING `+leadColumns+`, (xmax = 0)
	`, params.TenantID, params.Phone, params.ProviderName).Scan(
		&lead.ID, &lead.TenantID, &lead.Phone, &lead.Name, &lead.ProviderName,
		&lead.AvatarURL, &lead.Email, &lead.City, &lead.Stage, &lead.Owner,
		&lead.Score, &lead.Summary, &lead.LastActivityAt, &lead.CreatedAt, &lead.UpdatedAt,
		&created,
	)
	if err != nil {
		return Lead{}, false, err
	}
	return lead, created, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE id = $1
	`, id)
	return scanLead(row)
}

type UpdateProfileParams struct {
	Name      *string
	Email     *string
	City      *string
	AvatarURL *string
}

// UpdateProfile fills in profile fields the lead does not have yet. Name,
// email and city are never overwritten once known; the avatar may refresh.
func (r *Repository) UpdateProfile(ctx context.Context, leadID uuid.UUID, params UpdateProfileParams) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET
			name = COALESCE(leads.name, $2),
			email = COALESCE(leads.email, $3),
			city = COALESCE(leads.city, $4),
			avatar_url = COALESCE($5, leads.avatar_url),
			updated_at = now()
		WHERE id = $1
	`, leadID, params.Name, params.Email, params.City, params.AvatarURL)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) UpdateStage(ctx context.Context, leadID uuid.UUID, stage string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET stage = $2, updated_at = now()
		WHERE id = $1
	`, leadID, stage)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) UpdateOwner(ctx context.Context, leadID uuid.UUID, owner string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET owner = $2, updated_at = now()
		WHERE id = $1
	`, leadID, owner)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) UpdateScore(ctx context.Context, leadID uuid.UUID, score int) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET score = $2, updated_at = now()
		WHERE id = $1
	`, leadID, score)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) UpdateSummary(ctx context.Context, leadID uuid.UUID, summary string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET summary = $2, updated_at = now()
		WHERE id = $1
	`, leadID, summary)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
