package documents

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/permitdesk/permitdesk/pkg/apperrors"
	"github.com/permitdesk/permitdesk/pkg/observability"
)

type fakeBlobStore struct {
	objects map[string][]byte
	putErr  error
	deleted []string
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: make(map[string][]byte)}
}

func (f *fakeBlobStore) Put(ctx context.Context, permitID int64, content io.Reader, contentType string) (string, int64, error) {
	if f.putErr != nil {
		return "", 0, f.putErr
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return "", 0, err
	}
	key := fmt.Sprintf("permits/%d/blob-%d", permitID, len(f.objects))
	f.objects[key] = data
	return key, int64(len(data)), nil
}

func (f *fakeBlobStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("blob not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeBlobStore) Delete(ctx context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	delete(f.objects, key)
	return nil
}

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock, *fakeBlobStore) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	blobs := newFakeBlobStore()
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	return NewService(db, blobs, logger), mock, blobs
}

func documentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "permit_id", "uploader_id", "file_name", "content_type",
		"size_bytes", "blob_key", "is_photo", "created_at",
	})
}

func TestUpload_StoresBlobThenRow(t *testing.T) {
	service, mock, blobs := newTestService(t)

	mock.ExpectQuery("INSERT INTO documents").
		WithArgs(int64(1), int64(7), "site-plan.pdf", "application/pdf",
			int64(9), "permits/1/blob-0", false).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).
			AddRow(int64(3), time.Now()))

	doc, err := service.Upload(context.Background(), 1, 7,
		"site-plan.pdf", "application/pdf", false, strings.NewReader("plan data"))
	require.NoError(t, err)

	assert.Equal(t, int64(3), doc.ID)
	assert.Equal(t, int64(9), doc.SizeBytes)
	assert.Len(t, blobs.objects, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpload_RequiresFileName(t *testing.T) {
	service, _, blobs := newTestService(t)

	_, err := service.Upload(context.Background(), 1, 7, "", "", false, strings.NewReader("x"))
	assert.True(t, apperrors.IsValidation(err))
	assert.Empty(t, blobs.objects, "blob must not be stored when validation fails")
}

func TestUpload_BlobFailure(t *testing.T) {
	service, _, blobs := newTestService(t)
	blobs.putErr = fmt.Errorf("bucket unavailable")

	_, err := service.Upload(context.Background(), 1, 7, "a.jpg", "image/jpeg", true, strings.NewReader("x"))
	assert.ErrorContains(t, err, "failed to store document content")
}

func TestGet_NotFound(t *testing.T) {
	service, mock, _ := newTestService(t)

	mock.ExpectQuery("FROM documents").
		WithArgs(int64(404), int64(1)).
		WillReturnRows(documentRows())

	_, err := service.Get(context.Background(), 1, 404)
	assert.True(t, apperrors.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpen_ReturnsContent(t *testing.T) {
	service, mock, blobs := newTestService(t)
	blobs.objects["permits/1/k"] = []byte("photo bytes")

	mock.ExpectQuery("FROM documents").
		WithArgs(int64(5), int64(1)).
		WillReturnRows(documentRows().
			AddRow(int64(5), int64(1), int64(7), "roof.jpg", "image/jpeg",
				int64(11), "permits/1/k", true, time.Now()))

	doc, content, err := service.Open(context.Background(), 1, 5)
	require.NoError(t, err)
	defer content.Close()

	data, err := io.ReadAll(content)
	require.NoError(t, err)
	assert.Equal(t, "photo bytes", string(data))
	assert.True(t, doc.IsPhoto)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_RemovesRowAndBlob(t *testing.T) {
	service, mock, blobs := newTestService(t)
	blobs.objects["permits/1/k"] = []byte("x")

	mock.ExpectQuery("FROM documents").
		WithArgs(int64(5), int64(1)).
		WillReturnRows(documentRows().
			AddRow(int64(5), int64(1), int64(7), "roof.jpg", "image/jpeg",
				int64(1), "permits/1/k", true, time.Now()))
	mock.ExpectExec("DELETE FROM documents").
		WithArgs(int64(5), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	doc, err := service.Delete(context.Background(), 1, 5)
	require.NoError(t, err)

	assert.Equal(t, int64(5), doc.ID)
	assert.Equal(t, []string{"permits/1/k"}, blobs.deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestList_NewestFirst(t *testing.T) {
	service, mock, _ := newTestService(t)

	mock.ExpectQuery("ORDER BY created_at DESC, id DESC").
		WithArgs(int64(1)).
		WillReturnRows(documentRows().
			AddRow(int64(6), int64(1), int64(7), "b.pdf", nil, int64(1), "k2", false, time.Now()).
			AddRow(int64(5), int64(1), int64(7), "a.pdf", nil, int64(1), "k1", false, time.Now()))

	docs, err := service.List(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, int64(6), docs[0].ID)
	assert.Empty(t, docs[0].ContentType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorageUsed_SumsBytes(t *testing.T) {
	service, mock, _ := newTestService(t)

	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(size_bytes\\), 0\\) FROM documents").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(int64(2048)))

	used, err := service.StorageUsed(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2048), used)
	assert.NoError(t, mock.ExpectationsWereMet())
}
