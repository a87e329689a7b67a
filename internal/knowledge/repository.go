// Package knowledge is the read-only store of plan facts the bot answers
// from. Entries are curated rows, ranked by priority; lookup is keyword
// matching against title and content.
package knowledge

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Entry struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Category  string
	Title     string
	Content   string
	Priority  int
	CreatedAt time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const entryColumns = `id, tenant_id, category, title, content, priority, created_at`

// Search returns entries whose title or content matches any significant word
// of the query, highest priority first.
func (r *Repository) Search(ctx context.Context, tenantID uuid.UUID, query string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 8
	}

	words := significantWords(query)
	if len(words) == 0 {
		return []Entry{}, nil
	}

	patterns := make([]string, 0, len(words))
	for _, word := range words {
		patterns = append(patterns, "%"+word+"%")
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM knowledge_entries
		WHERE tenant_id = $1
		  AND (title ILIKE ANY($2) OR content ILIKE ANY($2))
		ORDER BY priority DESC, created_at ASC
		LIMIT $3
	`, tenantID, patterns, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEntries(rows)
}

// TopRanked returns the highest-priority entries regardless of query.
func (r *Repository) TopRanked(ctx context.Context, tenantID uuid.UUID, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 8
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM knowledge_entries
		WHERE tenant_id = $1
		ORDER BY priority DESC, created_at ASC
		LIMIT $2
	`, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEntries(rows)
}

// All returns every entry for the tenant, used for the first-contact full
// knowledge listing.
func (r *Repository) All(ctx context.Context, tenantID uuid.UUID) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM knowledge_entries
		WHERE tenant_id = $1
		ORDER BY category ASC, priority DESC
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEntries(rows)
}

type pgxRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanEntries(rows pgxRows) ([]Entry, error) {
	entries := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.TenantID, &e.Category, &e.Title, &e.Content, &e.Priority, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

var noiseWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "is": {}, "are": {}, "do": {}, "does": {},
	"what": {}, "how": {}, "much": {}, "can": {}, "i": {}, "you": {}, "my": {},
	"to": {}, "of": {}, "for": {}, "in": {}, "it": {}, "and": {}, "or": {},
}

func significantWords(query string) []string {
	var words []string
	for _, word := range strings.Fields(strings.ToLower(query)) {
		word = strings.Trim(word, ".,!?;:\"'")
		if len(word) < 3 {
			continue
		}
		if _, noise := noiseWords[word]; noise {
			continue
		}
		words = append(words, word)
	}
	return words
}
