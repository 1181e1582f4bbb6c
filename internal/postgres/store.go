// Package postgres implements core.RecordStore on PostgreSQL through the pgx
// database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/Lllllllleong/documentingest/internal/core"
	"github.com/Lllllllleong/documentingest/internal/models"
)

//go:embed scripts/schema.sql
var schemaSQL string

var validPrefix = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

var _ core.RecordStore = (*Store)(nil)

type Store struct {
	db *sql.DB
	q  queries
}

// queries holds the statements rendered for one table prefix.
type queries struct {
	schema, getDoc, putDoc, updateStatus          string
	putSection, listSections, deleteSectionsAfter string
	appendChange, listChanges                     string
}

func renderQueries(prefix string) queries {
	docs, secs, hist := prefix+"documents", prefix+"sections", prefix+"status_changes"
	return queries{
		schema: fmt.Sprintf(schemaSQL, prefix),
		getDoc: fmt.Sprintf(`SELECT document_key, container, object_key, format, size_bytes, uploaded_at, uploaded_by,
			status, error_details, section_count, content_hash, attempt_id, attempts, created_at, updated_at
			FROM %s WHERE document_key = $1`, docs),
		putDoc: fmt.Sprintf(`INSERT INTO %s (document_key, container, object_key, format, size_bytes, uploaded_at, uploaded_by,
			status, error_details, section_count, content_hash, attempt_id, attempts, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			ON CONFLICT (document_key) DO UPDATE SET
				container = EXCLUDED.container, object_key = EXCLUDED.object_key, format = EXCLUDED.format,
				size_bytes = EXCLUDED.size_bytes, uploaded_at = EXCLUDED.uploaded_at, uploaded_by = EXCLUDED.uploaded_by,
				status = EXCLUDED.status, error_details = EXCLUDED.error_details, section_count = EXCLUDED.section_count,
				content_hash = EXCLUDED.content_hash, attempt_id = EXCLUDED.attempt_id, attempts = EXCLUDED.attempts,
				created_at = EXCLUDED.created_at, updated_at = EXCLUDED.updated_at`, docs),
		updateStatus: fmt.Sprintf(`UPDATE %s SET status = $2, error_details = $3, section_count = $4, updated_at = $5
			WHERE document_key = $1`, docs),
		putSection: fmt.Sprintf(`INSERT INTO %s (document_key, section_index, section_id, heading, content, metadata)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (document_key, section_index) DO UPDATE SET
				section_id = EXCLUDED.section_id, heading = EXCLUDED.heading,
				content = EXCLUDED.content, metadata = EXCLUDED.metadata`, secs),
		listSections: fmt.Sprintf(`SELECT document_key, section_index, section_id, heading, content, metadata
			FROM %s WHERE document_key = $1 ORDER BY section_index`, secs),
		deleteSectionsAfter: fmt.Sprintf(`DELETE FROM %s WHERE document_key = $1 AND section_index > $2`, secs),
		appendChange: fmt.Sprintf(`INSERT INTO %s (document_key, from_status, to_status, attempt_id, details, at)
			VALUES ($1, $2, $3, $4, $5, $6)`, hist),
		listChanges: fmt.Sprintf(`SELECT document_key, from_status, to_status, attempt_id, details, at
			FROM %s WHERE document_key = $1 ORDER BY id`, hist),
	}
}

// Open connects to databaseURL and creates the tables for prefix if missing.
func Open(ctx context.Context, databaseURL, prefix string) (*Store, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}
	if prefix != "" && !validPrefix.MatchString(prefix) {
		return nil, fmt.Errorf("invalid table prefix %q", prefix)
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Store{db: db, q: renderQueries(prefix)}
	if err := s.bootstrap(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) bootstrap(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.q.schema); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("exec schema: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) GetDocument(ctx context.Context, documentKey string) (*models.Document, error) {
	var (
		doc        models.Document
		uploadedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, s.q.getDoc, documentKey).Scan(
		&doc.DocumentKey, &doc.Container, &doc.ObjectKey, &doc.Format, &doc.SizeBytes, &uploadedAt, &doc.UploadedBy,
		&doc.Status, &doc.ErrorDetails, &doc.SectionCount, &doc.ContentHash, &doc.AttemptID, &doc.Attempts,
		&doc.CreatedAt, &doc.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	doc.UploadedAt = uploadedAt.Time
	return &doc, nil
}

func (s *Store) PutDocument(ctx context.Context, doc *models.Document) error {
	uploadedAt := sql.NullTime{Time: doc.UploadedAt, Valid: !doc.UploadedAt.IsZero()}
	_, err := s.db.ExecContext(ctx, s.q.putDoc,
		doc.DocumentKey, doc.Container, doc.ObjectKey, doc.Format, doc.SizeBytes, uploadedAt, doc.UploadedBy,
		doc.Status, doc.ErrorDetails, doc.SectionCount, doc.ContentHash, doc.AttemptID, doc.Attempts,
		doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("put document: %w", err)
	}
	return nil
}

func (s *Store) UpdateDocumentStatus(ctx context.Context, documentKey string, u models.StatusUpdate) error {
	res, err := s.db.ExecContext(ctx, s.q.updateStatus, documentKey, u.Status, u.ErrorDetails, u.SectionCount, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) PutSection(ctx context.Context, sec *models.Section) error {
	meta, err := json.Marshal(sec.Metadata)
	if err != nil {
		return fmt.Errorf("marshal section metadata: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, s.q.putSection,
		sec.DocumentKey, sec.SectionIndex, sec.SectionID, sec.Heading, sec.Content, meta,
	); err != nil {
		return fmt.Errorf("put section %d: %w", sec.SectionIndex, err)
	}
	return nil
}

func (s *Store) ListSections(ctx context.Context, documentKey string) ([]models.Section, error) {
	rows, err := s.db.QueryContext(ctx, s.q.listSections, documentKey)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	defer rows.Close()

	sections := []models.Section{}
	for rows.Next() {
		var (
			sec  models.Section
			meta []byte
		)
		if err := rows.Scan(&sec.DocumentKey, &sec.SectionIndex, &sec.SectionID, &sec.Heading, &sec.Content, &meta); err != nil {
			return nil, fmt.Errorf("scan section: %w", err)
		}
		if err := json.Unmarshal(meta, &sec.Metadata); err != nil {
			return nil, fmt.Errorf("decode section metadata: %w", err)
		}
		sections = append(sections, sec)
	}
	return sections, rows.Err()
}

func (s *Store) DeleteSectionsAfter(ctx context.Context, documentKey string, n int) error {
	if _, err := s.db.ExecContext(ctx, s.q.deleteSectionsAfter, documentKey, n); err != nil {
		return fmt.Errorf("delete sections: %w", err)
	}
	return nil
}

func (s *Store) AppendStatusChange(ctx context.Context, c *models.StatusChange) error {
	if _, err := s.db.ExecContext(ctx, s.q.appendChange, c.DocumentKey, c.From, c.To, c.AttemptID, c.Details, c.At); err != nil {
		return fmt.Errorf("append status change: %w", err)
	}
	return nil
}

func (s *Store) ListStatusChanges(ctx context.Context, documentKey string) ([]models.StatusChange, error) {
	rows, err := s.db.QueryContext(ctx, s.q.listChanges, documentKey)
	if err != nil {
		return nil, fmt.Errorf("list status changes: %w", err)
	}
	defer rows.Close()

	changes := []models.StatusChange{}
	for rows.Next() {
		var c models.StatusChange
		if err := rows.Scan(&c.DocumentKey, &c.From, &c.To, &c.AttemptID, &c.Details, &c.At); err != nil {
			return nil, fmt.Errorf("scan status change: %w", err)
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}
