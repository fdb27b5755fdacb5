// Package store persists PRDRequest, PRDDocument, MockupUpload, and codebase
// links, and enforces the request state machine (§4.1).
package store

import (
	"context"

	"github.com/prdforge/prdforge/pkg/schema"
)

// Store is the Request/Document Store port: strongly consistent CRUD plus the
// state-machine transition guarded by AttachDocument.
type Store interface {
	CreateRequest(ctx context.Context, req *schema.PRDRequest) error
	GetRequest(ctx context.Context, id string) (*schema.PRDRequest, error)
	UpdateRequest(ctx context.Context, req *schema.PRDRequest) error
	TransitionRequest(ctx context.Context, id string, to schema.RequestStatus, reason string) (*schema.PRDRequest, error)

	// AttachDocument stores doc and transitions its request to completed in a
	// single atomic write, per §4.1.
	AttachDocument(ctx context.Context, doc *schema.PRDDocument) error

	GetDocument(ctx context.Context, id string) (*schema.PRDDocument, error)
	GetDocumentByRequest(ctx context.Context, requestID string) (*schema.PRDDocument, error)

	CreateMockupUpload(ctx context.Context, m *schema.MockupUpload) error
	GetMockupUpload(ctx context.Context, id string) (*schema.MockupUpload, error)
	ListMockupUploads(ctx context.Context, requestID string) ([]*schema.MockupUpload, error)
	UpdateMockupUpload(ctx context.Context, m *schema.MockupUpload) error

	LinkCodebase(ctx context.Context, requestID, projectID string) error
	ListCodebaseLinks(ctx context.Context, requestID string) ([]string, error)

	Close() error
}
