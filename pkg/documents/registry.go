package documents

import (
	"context"
	"log/slog"
)

// Registry dispatches Store calls to the Adapter owning each document
// type. Register all adapters during startup; the registry is not safe
// for concurrent mutation afterwards.
type Registry struct {
	logger   *slog.Logger
	adapters map[string]Adapter
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:   logger,
		adapters: make(map[string]Adapter),
	}
}

// Register adds an adapter for its document type, replacing any previous
// registration.
func (r *Registry) Register(adapter Adapter) {
	r.adapters[adapter.DocumentType()] = adapter
}

// Adapter returns the adapter for a document type.
func (r *Registry) Adapter(docType string) (Adapter, error) {
	adapter, ok := r.adapters[docType]
	if !ok {
		return nil, &UnknownDocumentTypeError{DocumentType: docType}
	}

	return adapter, nil
}

// DocumentTypes returns the registered type tags.
func (r *Registry) DocumentTypes() []string {
	types := make([]string, 0, len(r.adapters))
	for docType := range r.adapters {
		types = append(types, docType)
	}

	return types
}

func (r *Registry) GetStatus(ctx context.Context, docType, docID string) (string, error) {
	adapter, err := r.Adapter(docType)
	if err != nil {
		return "", err
	}

	return adapter.GetStatus(ctx, docID)
}

func (r *Registry) GetFields(ctx context.Context, docType, docID string) (Fields, error) {
	adapter, err := r.Adapter(docType)
	if err != nil {
		return nil, err
	}

	return adapter.GetFields(ctx, docID)
}

func (r *Registry) UpdateFields(ctx context.Context, docType, docID string, fields Fields) error {
	adapter, err := r.Adapter(docType)
	if err != nil {
		return err
	}

	return adapter.UpdateFields(ctx, docID, fields)
}

func (r *Registry) CompareAndSwapStatus(ctx context.Context, docType, docID, expectedStatus, targetStatus string) error {
	adapter, err := r.Adapter(docType)
	if err != nil {
		return err
	}

	return adapter.CompareAndSwapStatus(ctx, docID, expectedStatus, targetStatus)
}
