package docs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/api"
)

type fakeUser struct {
	id    string
	valid bool
}

func (u fakeUser) UserID() string { return u.id }
func (u fakeUser) Valid() bool    { return u.valid }

// fakeDocsBackend simulates the upload/ingest pipeline and tracks how many
// chains run at once
type fakeDocsBackend struct {
	mu            sync.Mutex
	files         []api.FileEntry
	listErr       error
	presignErr    error
	uploadErr     error
	processErr    error
	deleteErr     error
	processed     []string
	deleted       []string
	concurrent    int
	maxConcurrent int
}

func (f *fakeDocsBackend) ListFiles(ctx context.Context, userID string) ([]api.FileEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]api.FileEntry, len(f.files))
	copy(out, f.files)
	return out, nil
}

func (f *fakeDocsBackend) RequestUpload(ctx context.Context, key, fileType string, expiresIn int) (api.UploadTarget, error) {
	f.mu.Lock()
	f.concurrent++
	if f.concurrent > f.maxConcurrent {
		f.maxConcurrent = f.concurrent
	}
	err := f.presignErr
	f.mu.Unlock()

	if err != nil {
		f.chainDone()
		return api.UploadTarget{}, err
	}
	return api.UploadTarget{URL: "https://storage.example/" + key, Key: key}, nil
}

func (f *fakeDocsBackend) UploadFile(ctx context.Context, uploadURL, contentType string, body io.Reader, size int64) error {
	time.Sleep(20 * time.Millisecond) // keep chains overlapping
	f.mu.Lock()
	err := f.uploadErr
	f.mu.Unlock()
	if err != nil {
		f.chainDone()
		return err
	}
	return nil
}

func (f *fakeDocsBackend) ProcessPDF(ctx context.Context, key, collectionName string) error {
	defer f.chainDone()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.processErr != nil {
		return f.processErr
	}
	f.processed = append(f.processed, key)
	f.files = append(f.files, api.FileEntry{Key: key, FileName: filepath.Base(key)})
	return nil
}

func (f *fakeDocsBackend) DeleteFile(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, key)
	kept := f.files[:0]
	for _, file := range f.files {
		if file.Key != key {
			kept = append(kept, file)
		}
	}
	f.files = kept
	return nil
}

func (f *fakeDocsBackend) chainDone() {
	f.mu.Lock()
	f.concurrent--
	f.mu.Unlock()
}

func defaultOptions() Options {
	return Options{
		MaxWorkers:     3,
		MaxFileSize:    50 * 1024 * 1024,
		MaxBatchSize:   100,
		CollectionName: "document_embeddings",
		ExpirySeconds:  3000,
	}
}

func writeTempPDF(t *testing.T, name string, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0644))
	return path
}

func TestUploadBatchMixedValidity(t *testing.T) {
	backend := &fakeDocsBackend{}
	opts := defaultOptions()
	opts.MaxFileSize = 1024
	manager := NewManager(backend, fakeUser{id: "u1", valid: true}, opts, nil)
	ctx := context.Background()

	valid := writeTempPDF(t, "f1.pdf", 100)
	oversized := writeTempPDF(t, "f2.pdf", 4096)

	result, err := manager.UploadBatch(ctx, []string{valid, oversized}, nil)
	require.NoError(t, err)

	require.Len(t, result.Successful, 1)
	assert.Equal(t, "f1.pdf", result.Successful[0].FileName)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "f2.pdf", result.Failed[0].FileName)
	assert.Equal(t, "validate", result.Failed[0].Step)
	assert.True(t, api.IsValidation(result.Failed[0].Err))

	// The valid file reached the backend; the rejected one never did
	require.NoError(t, manager.List(ctx))
	documents := manager.Documents()
	require.Len(t, documents, 1)
	assert.Equal(t, "f1.pdf", documents[0].FileName)
}

func TestUploadBatchRejectsNonPDF(t *testing.T) {
	backend := &fakeDocsBackend{}
	manager := NewManager(backend, fakeUser{id: "u1", valid: true}, defaultOptions(), nil)

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0644))

	result, err := manager.UploadBatch(context.Background(), []string{path}, nil)
	require.NoError(t, err)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "validate", result.Failed[0].Step)
	assert.Empty(t, backend.processed)
}

func TestUploadFailureRecordsStep(t *testing.T) {
	backend := &fakeDocsBackend{processErr: &api.ServerError{StatusCode: 200, Message: "extraction failed"}}
	manager := NewManager(backend, fakeUser{id: "u1", valid: true}, defaultOptions(), nil)

	path := writeTempPDF(t, "doc.pdf", 100)
	result, err := manager.UploadBatch(context.Background(), []string{path}, nil)
	require.NoError(t, err)

	require.Len(t, result.Failed, 1)
	assert.Equal(t, "process", result.Failed[0].Step)
	assert.Empty(t, result.Successful)
	// No document reaches done without the full chain completing
	assert.Empty(t, backend.processed)
}

func TestUploadBatchBoundedConcurrency(t *testing.T) {
	backend := &fakeDocsBackend{}
	opts := defaultOptions()
	opts.MaxWorkers = 2
	manager := NewManager(backend, fakeUser{id: "u1", valid: true}, opts, nil)

	paths := make([]string, 6)
	for i := range paths {
		paths[i] = writeTempPDF(t, "doc.pdf", 10)
	}

	result, err := manager.UploadBatch(context.Background(), paths, nil)
	require.NoError(t, err)
	assert.Len(t, result.Successful, 6)
	assert.LessOrEqual(t, backend.maxConcurrent, 2)
}

func TestUploadBatchTooManyFiles(t *testing.T) {
	backend := &fakeDocsBackend{}
	opts := defaultOptions()
	opts.MaxBatchSize = 2
	manager := NewManager(backend, fakeUser{id: "u1", valid: true}, opts, nil)

	_, err := manager.UploadBatch(context.Background(), []string{"a.pdf", "b.pdf", "c.pdf"}, nil)
	assert.True(t, api.IsValidation(err))
}

func TestUploadProgressReachesTotal(t *testing.T) {
	backend := &fakeDocsBackend{}
	manager := NewManager(backend, fakeUser{id: "u1", valid: true}, defaultOptions(), nil)

	paths := []string{
		writeTempPDF(t, "a.pdf", 10),
		writeTempPDF(t, "b.pdf", 10),
	}

	var mu sync.Mutex
	var last Progress
	_, err := manager.UploadBatch(context.Background(), paths, func(p Progress) {
		mu.Lock()
		last = p
		mu.Unlock()
	})
	require.NoError(t, err)
	assert.Equal(t, 2, last.Completed)
	assert.Equal(t, 2, last.Total)
}

func TestListRequiresSession(t *testing.T) {
	manager := NewManager(&fakeDocsBackend{}, fakeUser{valid: false}, defaultOptions(), nil)
	err := manager.List(context.Background())
	assert.True(t, api.IsAuth(err))
}

func TestDeleteFailureRevertsFlag(t *testing.T) {
	backend := &fakeDocsBackend{
		files:     []api.FileEntry{{Key: "documents/x.pdf", FileName: "x.pdf"}},
		deleteErr: &api.ServerError{StatusCode: 500, Message: "storage unavailable"},
	}
	manager := NewManager(backend, fakeUser{id: "u1", valid: true}, defaultOptions(), nil)
	ctx := context.Background()
	require.NoError(t, manager.List(ctx))

	err := manager.Delete(ctx, "documents/x.pdf")
	require.True(t, api.IsServer(err))

	// The document is still listed and no longer marked as deleting
	documents := manager.Documents()
	require.Len(t, documents, 1)
	assert.Equal(t, "documents/x.pdf", documents[0].Key)
	assert.False(t, documents[0].IsDeleting)
}

func TestDeleteRemovesAndReconciles(t *testing.T) {
	backend := &fakeDocsBackend{
		files: []api.FileEntry{
			{Key: "documents/x.pdf", FileName: "x.pdf"},
			{Key: "documents/y.pdf", FileName: "y.pdf"},
		},
	}
	manager := NewManager(backend, fakeUser{id: "u1", valid: true}, defaultOptions(), nil)
	ctx := context.Background()
	require.NoError(t, manager.List(ctx))

	require.NoError(t, manager.Delete(ctx, "documents/x.pdf"))

	documents := manager.Documents()
	require.Len(t, documents, 1)
	assert.Equal(t, "documents/y.pdf", documents[0].Key)
	assert.Equal(t, []string{"documents/x.pdf"}, backend.deleted)
}

func TestDeleteUnknownKey(t *testing.T) {
	manager := NewManager(&fakeDocsBackend{}, fakeUser{id: "u1", valid: true}, defaultOptions(), nil)
	err := manager.Delete(context.Background(), "documents/ghost.pdf")
	assert.True(t, api.IsValidation(err))
}
