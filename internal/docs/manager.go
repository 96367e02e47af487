package docs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"docchat/internal/api"
)

const pdfContentType = "application/pdf"

// Backend is the slice of the API client the manager depends on
type Backend interface {
	ListFiles(ctx context.Context, userID string) ([]api.FileEntry, error)
	RequestUpload(ctx context.Context, key, fileType string, expiresIn int) (api.UploadTarget, error)
	UploadFile(ctx context.Context, uploadURL, contentType string, body io.Reader, size int64) error
	ProcessPDF(ctx context.Context, key, collectionName string) error
	DeleteFile(ctx context.Context, key string) error
}

// UserSource identifies the signed-in user
type UserSource interface {
	UserID() string
	Valid() bool
}

// Options bounds the upload pipeline
type Options struct {
	MaxWorkers     int
	MaxFileSize    int64
	MaxBatchSize   int
	CollectionName string
	ExpirySeconds  int
}

// Manager lists, batch-uploads, and deletes the user's documents. Upload
// chains run on a bounded worker pool; each file's own steps are sequential.
type Manager struct {
	backend Backend
	users   UserSource
	opts    Options
	log     *zap.Logger

	mu   sync.Mutex
	docs []Document
}

// NewManager creates a document manager
func NewManager(backend Backend, users UserSource, opts Options, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MaxWorkers < 1 {
		opts.MaxWorkers = 1
	}
	return &Manager{
		backend: backend,
		users:   users,
		opts:    opts,
		log:     log,
	}
}

// List refreshes the in-memory document list from the backend
func (m *Manager) List(ctx context.Context) error {
	if !m.users.Valid() {
		return &api.AuthError{Message: "sign in to list documents"}
	}

	entries, err := m.backend.ListFiles(ctx, m.users.UserID())
	if err != nil {
		return err
	}

	docs := make([]Document, 0, len(entries))
	for _, e := range entries {
		docs = append(docs, Document{Key: e.Key, FileName: e.FileName})
	}

	m.mu.Lock()
	m.docs = docs
	m.mu.Unlock()
	return nil
}

// Documents returns a copy of the current list
func (m *Manager) Documents() []Document {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Document, len(m.docs))
	copy(out, m.docs)
	return out
}

// UploadBatch pushes the given files through the upload/ingest pipeline.
// Invalid files fail individually without aborting the rest; accepted files
// run queued -> uploading -> processing -> done|failed on a bounded worker
// pool. onProgress, when non-nil, is called once per state change.
func (m *Manager) UploadBatch(ctx context.Context, paths []string, onProgress func(Progress)) (BatchResult, error) {
	result := BatchResult{Total: len(paths)}

	if len(paths) == 0 {
		return result, nil
	}
	if len(paths) > m.opts.MaxBatchSize {
		return result, &api.ValidationError{
			Reason: fmt.Sprintf("too many files: %d exceeds the %d per-batch limit", len(paths), m.opts.MaxBatchSize),
		}
	}
	if !m.users.Valid() {
		return result, &api.AuthError{Message: "sign in to upload documents"}
	}

	jobs := make(chan string, len(paths))
	results := make(chan FileResult, len(paths))

	numWorkers := m.opts.MaxWorkers
	if len(paths) < numWorkers {
		numWorkers = len(paths)
	}

	var progressMu sync.Mutex
	completed := 0
	report := func(name string, state UploadState, err error) {
		if onProgress == nil {
			return
		}
		progressMu.Lock()
		defer progressMu.Unlock()
		if state == UploadDone || state == UploadFailed {
			completed++
		}
		onProgress(Progress{
			Completed: completed,
			Total:     len(paths),
			Current:   name,
			State:     state,
			Err:       err,
		})
	}

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				results <- m.uploadOne(ctx, path, report)
			}
		}()
	}

	for _, path := range paths {
		report(filepath.Base(path), UploadQueued, nil)
		jobs <- path
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	for r := range results {
		if r.Err != nil {
			result.Failed = append(result.Failed, r)
		} else {
			result.Successful = append(result.Successful, r)
		}
	}

	m.log.Info("upload batch finished",
		zap.Int("total", result.Total),
		zap.Int("succeeded", len(result.Successful)),
		zap.Int("failed", len(result.Failed)))
	return result, nil
}

// uploadOne runs the full pipeline for a single file. A failure at any step
// aborts only this file's chain; the step name is recorded in the result.
func (m *Manager) uploadOne(ctx context.Context, path string, report func(string, UploadState, error)) FileResult {
	name := filepath.Base(path)

	fail := func(step string, err error) FileResult {
		report(name, UploadFailed, err)
		m.log.Warn("upload failed",
			zap.String("file", name),
			zap.String("step", step),
			zap.Error(err))
		return FileResult{FileName: name, Step: step, Err: err}
	}

	info, err := os.Stat(path)
	if err != nil {
		return fail("validate", &api.ValidationError{Item: name, Reason: "file not found"})
	}
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		return fail("validate", &api.ValidationError{Item: name, Reason: "only PDF files allowed"})
	}
	if info.Size() > m.opts.MaxFileSize {
		return fail("validate", &api.ValidationError{
			Item:   name,
			Reason: fmt.Sprintf("file exceeds %dMB limit", m.opts.MaxFileSize/(1024*1024)),
		})
	}

	report(name, UploadUploading, nil)

	key := "documents/" + name
	target, err := m.backend.RequestUpload(ctx, key, pdfContentType, m.opts.ExpirySeconds)
	if err != nil {
		return fail("presign", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return fail("transfer", &api.ValidationError{Item: name, Reason: "cannot open file"})
	}
	err = m.backend.UploadFile(ctx, target.URL, pdfContentType, f, info.Size())
	f.Close()
	if err != nil {
		return fail("transfer", err)
	}

	report(name, UploadProcessing, nil)

	if err := m.backend.ProcessPDF(ctx, target.Key, m.opts.CollectionName); err != nil {
		return fail("process", err)
	}

	report(name, UploadDone, nil)
	return FileResult{FileName: name, Key: target.Key}
}

// Delete removes one document. The entry is optimistically marked while the
// request is in flight; on failure the mark is reverted and the document
// stays in the list. Confirmation is the caller's responsibility.
func (m *Manager) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	idx := -1
	for i := range m.docs {
		if m.docs[i].Key == key {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return &api.ValidationError{Item: key, Reason: "unknown document"}
	}
	m.docs[idx].IsDeleting = true
	m.mu.Unlock()

	if err := m.backend.DeleteFile(ctx, key); err != nil {
		m.mu.Lock()
		for i := range m.docs {
			if m.docs[i].Key == key {
				m.docs[i].IsDeleting = false
			}
		}
		m.mu.Unlock()
		return err
	}

	// Remove locally first so the entry never lingers, then reconcile with
	// the backend's view
	m.mu.Lock()
	kept := m.docs[:0]
	for _, d := range m.docs {
		if d.Key != key {
			kept = append(kept, d)
		}
	}
	m.docs = kept
	m.mu.Unlock()

	if err := m.List(ctx); err != nil {
		m.log.Warn("list refresh after delete failed", zap.Error(err))
	}
	return nil
}
