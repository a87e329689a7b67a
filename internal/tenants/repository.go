// Package tenants resolves webhook instance tags to tenants and tracks
// contacts the bot must never message.
package tenants

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("tenant not found")

type Tenant struct {
	ID          uuid.UUID
	Name        string
	InstanceTag string
	CreatedAt   time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) GetByInstanceTag(ctx context.Context, tag string) (Tenant, error) {
	var t Tenant
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, instance_tag, created_at
		FROM tenants
		WHERE instance_tag = $1
	`, tag).Scan(&t.ID, &t.Name, &t.InstanceTag, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Tenant{}, ErrNotFound
	}
	return t, err
}

// EnsureTenant creates the tenant for an instance tag if it does not exist.
// Single-tenant deployments call this at startup with the default tag.
func (r *Repository) EnsureTenant(ctx context.Context, name, tag string) (Tenant, error) {
	var t Tenant
	err := r.pool.QueryRow(ctx, `
		INSERT INTO tenants (name, instance_tag)
		VALUES ($1, $2)
		ON CONFLICT (instance_tag) DO UPDATE SET name = tenants.name
		RETURNING id, name, instance_tag, created_at
	`, name, tag).Scan(&t.ID, &t.Name, &t.InstanceTag, &t.CreatedAt)
	return t, err
}

// IsExcluded reports whether the phone is on the tenant's do-not-contact
// list.
func (r *Repository) IsExcluded(ctx context.Context, tenantID uuid.UUID, phone string) (bool, error) {
	var excluded bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM excluded_contacts
			WHERE tenant_id = $1 AND phone = $2
		)
	`, tenantID, phone).Scan(&excluded)
	return excluded, err
}

func (r *Repository) Exclude(ctx context.Context, tenantID uuid.UUID, phone, reason string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO excluded_contacts (tenant_id, phone, reason)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id, phone) DO NOTHING
	`, tenantID, phone, reason)
	return err
}
