package documents

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"
)

// FileAdapter stores documents of one type as JSON field maps on disk.
// Meant for development and tests; production deployments register
// adapters over the real document tables.
type FileAdapter struct {
	docType string
	root    string
	mu      sync.Mutex
}

// NewFileAdapter creates a file-backed adapter for docType rooted at the
// given directory.
func NewFileAdapter(docType, root string) *FileAdapter {
	return &FileAdapter{docType: docType, root: root}
}

func (fa *FileAdapter) DocumentType() string {
	return fa.docType
}

func (fa *FileAdapter) documentPath(docID string) string {
	return filepath.Clean(path.Join(fa.root, fa.docType, docID+".json"))
}

func (fa *FileAdapter) load(docID string) (Fields, error) {
	body, err := os.ReadFile(fa.documentPath(docID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s %s: %w", fa.docType, docID, ErrDocumentNotFound)
		}

		return nil, fmt.Errorf("failed to read %s %s: %w", fa.docType, docID, err)
	}

	var fields Fields

	err = json.Unmarshal(body, &fields)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s %s: %w", fa.docType, docID, err)
	}

	return fields, nil
}

func (fa *FileAdapter) store(docID string, fields Fields) error {
	err := os.MkdirAll(path.Join(fa.root, fa.docType), 0750)
	if err != nil {
		return fmt.Errorf("failed to create %s directory: %w", fa.docType, err)
	}

	data, err := json.MarshalIndent(fields, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s %s: %w", fa.docType, docID, err)
	}

	return os.WriteFile(fa.documentPath(docID), data, 0600)
}

// Create writes a fresh document. Mostly a test seeding helper.
func (fa *FileAdapter) Create(_ context.Context, docID string, fields Fields) error {
	fa.mu.Lock()
	defer fa.mu.Unlock()

	return fa.store(docID, fields)
}

func (fa *FileAdapter) GetStatus(_ context.Context, docID string) (string, error) {
	fa.mu.Lock()
	defer fa.mu.Unlock()

	fields, err := fa.load(docID)
	if err != nil {
		return "", err
	}

	status, _ := fields["status"].(string)

	return status, nil
}

func (fa *FileAdapter) GetFields(_ context.Context, docID string) (Fields, error) {
	fa.mu.Lock()
	defer fa.mu.Unlock()

	return fa.load(docID)
}

func (fa *FileAdapter) UpdateFields(_ context.Context, docID string, fields Fields) error {
	fa.mu.Lock()
	defer fa.mu.Unlock()

	current, err := fa.load(docID)
	if err != nil {
		return err
	}

	for key, value := range fields {
		if value == nil {
			delete(current, key)

			continue
		}

		current[key] = value
	}

	return fa.store(docID, current)
}

func (fa *FileAdapter) CompareAndSwapStatus(_ context.Context, docID, expectedStatus, targetStatus string) error {
	fa.mu.Lock()
	defer fa.mu.Unlock()

	current, err := fa.load(docID)
	if err != nil {
		return err
	}

	status, _ := current["status"].(string)
	if status != expectedStatus {
		return fmt.Errorf("%s %s is %q, expected %q: %w", fa.docType, docID, status, expectedStatus, ErrStaleStatus)
	}

	current["status"] = targetStatus

	return fa.store(docID, current)
}
