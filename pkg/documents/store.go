// Package documents gives the approval engine a narrow, type-agnostic
// view over the document tables owned by the surrounding services. Each
// document type registers an Adapter at startup; the Registry dispatches
// on the type tag so unknown types fail loudly instead of resolving to a
// missing table at runtime.
package documents

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrDocumentNotFound indicates no document exists with the given
	// type and ID.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrStaleStatus indicates a conditional status write lost a race:
	// the document's status changed between the caller's read and the
	// write.
	ErrStaleStatus = errors.New("document status changed since read")
)

// UnknownDocumentTypeError indicates no adapter is registered for a
// document type.
type UnknownDocumentTypeError struct {
	DocumentType string
}

func (e *UnknownDocumentTypeError) Error() string {
	return fmt.Sprintf("no document adapter registered for type %q", e.DocumentType)
}

// Fields is a type-agnostic key/value update set (status, SLA fields,
// approver metadata).
type Fields map[string]any

// Store is the narrow persistence surface the approval engine needs from
// any document type.
type Store interface {
	GetStatus(ctx context.Context, docType, docID string) (string, error)
	GetFields(ctx context.Context, docType, docID string) (Fields, error)
	UpdateFields(ctx context.Context, docType, docID string, fields Fields) error

	// CompareAndSwapStatus writes targetStatus only if the stored status
	// still equals expectedStatus, failing with ErrStaleStatus otherwise.
	// Transition checks run against a status read moments earlier; this
	// guard keeps two concurrent submissions from both passing validation
	// against the same stale read.
	CompareAndSwapStatus(ctx context.Context, docType, docID, expectedStatus, targetStatus string) error
}

// Adapter is implemented once per document type and registered with the
// Registry at startup.
type Adapter interface {
	DocumentType() string
	GetStatus(ctx context.Context, docID string) (string, error)
	GetFields(ctx context.Context, docID string) (Fields, error)
	UpdateFields(ctx context.Context, docID string, fields Fields) error
	CompareAndSwapStatus(ctx context.Context, docID, expectedStatus, targetStatus string) error
}
