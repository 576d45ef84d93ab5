// Package documents manages permit document metadata and blob content.
// Metadata lives in Postgres; content lives in object storage under a
// content-addressed key.
package documents

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/permitdesk/permitdesk/pkg/apperrors"
	"github.com/permitdesk/permitdesk/pkg/observability"
)

// Document is permit file metadata. Content is fetched separately by
// blob key.
type Document struct {
	ID          int64     `json:"id"`
	PermitID    int64     `json:"permit_id"`
	UploaderID  int64     `json:"uploader_id"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type,omitempty"`
	SizeBytes   int64     `json:"size_bytes"`
	BlobKey     string    `json:"-"`
	IsPhoto     bool      `json:"is_photo"`
	CreatedAt   time.Time `json:"created_at"`
}

// BlobStore is the object storage contract the service depends on
type BlobStore interface {
	Put(ctx context.Context, permitID int64, content io.Reader, contentType string) (key string, size int64, err error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Service provides document persistence. Permission checks happen in the
// facade.
type Service struct {
	db     *sql.DB
	blobs  BlobStore
	logger *observability.Logger
}

// NewService creates a new document service
func NewService(db *sql.DB, blobs BlobStore, logger *observability.Logger) *Service {
	return &Service{
		db:     db,
		blobs:  blobs,
		logger: logger,
	}
}

const documentColumns = `
	id, permit_id, uploader_id, file_name, content_type, size_bytes, blob_key, is_photo, created_at`

// Upload stores the content blob first, then the metadata row. A metadata
// failure leaves an orphaned blob, which is harmless; the row is the
// source of truth.
func (s *Service) Upload(ctx context.Context, permitID, uploaderID int64, fileName, contentType string, isPhoto bool, content io.Reader) (*Document, error) {
	if fileName == "" {
		return nil, apperrors.Validation("file_name", "file_name is required")
	}

	key, size, err := s.blobs.Put(ctx, permitID, content, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to store document content: %w", err)
	}

	doc := &Document{
		PermitID:    permitID,
		UploaderID:  uploaderID,
		FileName:    fileName,
		ContentType: contentType,
		SizeBytes:   size,
		BlobKey:     key,
		IsPhoto:     isPhoto,
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO documents (permit_id, uploader_id, file_name, content_type, size_bytes, blob_key, is_photo)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		permitID, uploaderID, fileName, contentType, size, key, isPhoto,
	).Scan(&doc.ID, &doc.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}

	return doc, nil
}

// Get retrieves document metadata scoped to its permit
func (s *Service) Get(ctx context.Context, permitID, documentID int64) (*Document, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM documents
		WHERE id = $1 AND permit_id = $2`, documentColumns)

	doc := &Document{}
	var contentType sql.NullString
	err := s.db.QueryRowContext(ctx, query, documentID, permitID).Scan(
		&doc.ID, &doc.PermitID, &doc.UploaderID, &doc.FileName,
		&contentType, &doc.SizeBytes, &doc.BlobKey, &doc.IsPhoto, &doc.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("document")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	doc.ContentType = contentType.String
	return doc, nil
}

// List returns a permit's documents, newest first
func (s *Service) List(ctx context.Context, permitID int64) ([]*Document, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM documents
		WHERE permit_id = $1
		ORDER BY created_at DESC, id DESC`, documentColumns)

	rows, err := s.db.QueryContext(ctx, query, permitID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	docs := make([]*Document, 0)
	for rows.Next() {
		doc := &Document{}
		var contentType sql.NullString
		if err := rows.Scan(
			&doc.ID, &doc.PermitID, &doc.UploaderID, &doc.FileName,
			&contentType, &doc.SizeBytes, &doc.BlobKey, &doc.IsPhoto, &doc.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		doc.ContentType = contentType.String
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}

	return docs, nil
}

// Open returns the metadata and a reader over the content. The caller
// closes the reader.
func (s *Service) Open(ctx context.Context, permitID, documentID int64) (*Document, io.ReadCloser, error) {
	doc, err := s.Get(ctx, permitID, documentID)
	if err != nil {
		return nil, nil, err
	}

	content, err := s.blobs.Get(ctx, doc.BlobKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open document content: %w", err)
	}

	return doc, content, nil
}

// Delete removes the metadata row, then the blob best-effort. A stale
// blob after a failed delete is garbage, not corruption.
func (s *Service) Delete(ctx context.Context, permitID, documentID int64) (*Document, error) {
	doc, err := s.Get(ctx, permitID, documentID)
	if err != nil {
		return nil, err
	}

	result, err := s.db.ExecContext(ctx,
		"DELETE FROM documents WHERE id = $1 AND permit_id = $2",
		documentID, permitID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete document: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, apperrors.NotFound("document")
	}

	if err := s.blobs.Delete(ctx, doc.BlobKey); err != nil {
		s.logger.WithError(err).
			WithField("blob_key", doc.BlobKey).
			Warn("failed to delete document blob, leaving orphan")
	}

	return doc, nil
}

// Count counts a permit's documents, used for entitlement checks
func (s *Service) Count(ctx context.Context, permitID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM documents WHERE permit_id = $1", permitID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

// StorageUsed sums a permit's stored bytes, used for entitlement checks
func (s *Service) StorageUsed(ctx context.Context, permitID int64) (int64, error) {
	var used int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(size_bytes), 0) FROM documents WHERE permit_id = $1", permitID,
	).Scan(&used)
	if err != nil {
		return 0, fmt.Errorf("failed to sum document sizes: %w", err)
	}
	return used, nil
}
