package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/healthlog/platform/internal/shared/errors"
	"github.com/healthlog/platform/internal/tracker"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps one row per user with a JSONB column per
// document section. Saves only touch the selected columns, which is
// what makes partial writes merge instead of overwrite.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed document store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Load reads the full document for a uid.
func (s *PostgresStore) Load(ctx context.Context, uid string) (*tracker.UserDocument, error) {
	query := `
		SELECT hospitals, ambulance, medical_records, symptom_tracking,
			awards, user_profile, visit_history
		FROM tracker.user_documents
		WHERE uid = $1`

	var (
		hospitals, ambulance, records []byte
		symptoms, awards              []byte
		profile, history              []byte
	)
	err := s.pool.QueryRow(ctx, query, uid).Scan(
		&hospitals, &ambulance, &records, &symptoms, &awards, &profile, &history,
	)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("user document", uid)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load user document")
	}

	doc := &tracker.UserDocument{}
	for _, col := range []struct {
		name string
		raw  []byte
		dst  any
	}{
		{"hospitals", hospitals, &doc.Hospitals},
		{"ambulance", ambulance, &doc.Ambulance},
		{"medical_records", records, &doc.MedicalRecords},
		{"symptom_tracking", symptoms, &doc.SymptomTracking},
		{"awards", awards, &doc.Awards},
		{"user_profile", profile, &doc.Profile},
		{"visit_history", history, &doc.VisitHistory},
	} {
		if len(col.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(col.raw, col.dst); err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("failed to decode %s", col.name))
		}
	}

	return doc, nil
}

// Save upserts the selected sections. Unselected columns keep their
// stored value on conflict.
func (s *PostgresStore) Save(ctx context.Context, uid string, p Partial) error {
	if p.IsEmpty() {
		return nil
	}

	cols := []string{"uid", "updated_at"}
	args := []any{uid, time.Now().UTC()}

	appendCol := func(name string, v any) error {
		raw, err := json.Marshal(v)
		if err != nil {
			return errors.Wrap(err, fmt.Sprintf("failed to encode %s", name))
		}
		cols = append(cols, name)
		args = append(args, raw)
		return nil
	}

	sections := []struct {
		name     string
		selected bool
		value    func() any
	}{
		{"hospitals", p.Hospitals != nil, func() any { return *p.Hospitals }},
		{"ambulance", p.Ambulance != nil, func() any { return *p.Ambulance }},
		{"medical_records", p.MedicalRecords != nil, func() any { return *p.MedicalRecords }},
		{"symptom_tracking", p.SymptomTracking != nil, func() any { return *p.SymptomTracking }},
		{"awards", p.Awards != nil, func() any { return *p.Awards }},
		{"user_profile", p.Profile != nil, func() any { return *p.Profile }},
		{"visit_history", p.VisitHistory != nil, func() any { return *p.VisitHistory }},
	}
	for _, sec := range sections {
		if !sec.selected {
			continue
		}
		if err := appendCol(sec.name, sec.value()); err != nil {
			return err
		}
	}

	placeholders := make([]string, len(cols))
	updates := make([]string, 0, len(cols)-1)
	for i, col := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		if col != "uid" {
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
		}
	}

	query := fmt.Sprintf(`
		INSERT INTO tracker.user_documents (%s)
		VALUES (%s)
		ON CONFLICT (uid) DO UPDATE SET %s`,
		strings.Join(cols, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(updates, ", "),
	)

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return errors.Wrap(err, "failed to save user document")
	}
	return nil
}

// Delete removes a user's document entirely.
func (s *PostgresStore) Delete(ctx context.Context, uid string) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM tracker.user_documents WHERE uid = $1`, uid)
	if err != nil {
		return errors.Wrap(err, "failed to delete user document")
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("user document", uid)
	}
	return nil
}

// List returns summaries for the admin surface, most recently updated
// first.
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]UserSummary, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tracker.user_documents`).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count user documents")
	}

	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT uid, created_at, updated_at,
			jsonb_array_length(awards),
			jsonb_array_length(medical_records)
		FROM tracker.user_documents
		ORDER BY updated_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := s.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list user documents")
	}
	defer rows.Close()

	var users []UserSummary
	for rows.Next() {
		var u UserSummary
		if err := rows.Scan(&u.UID, &u.CreatedAt, &u.UpdatedAt, &u.Awards, &u.Records); err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan user summary")
		}
		users = append(users, u)
	}

	return users, total, nil
}
