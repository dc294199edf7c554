package port

import "context"

// Document is a fetched page image and its content hash.
type Document struct {
	Ref         string
	Bytes       []byte
	ContentHash string
	ContentType string
}

// DocumentStore resolves a document reference to its bytes and hash.
// The core never manages storage itself.
type DocumentStore interface {
	Fetch(ctx context.Context, ref string) (*Document, error)
}
