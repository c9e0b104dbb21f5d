// Package proofs stores uploaded payment screenshots on local disk or in S3.
package proofs

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"storefront-service/internal/config"
	"storefront-service/internal/orders"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// URIPrefix addresses every stored proof. The API serves it to admins.
const URIPrefix = "/uploads/"

var ErrNotFound = errors.New("payment proof not found")

// Location is where a stored proof can be read: a file on disk or a short-lived signed URL.
type Location struct {
	Path string
	URL  string
}

// Store saves proofs for the order service and resolves their URIs for download.
type Store interface {
	orders.ProofStore
	Locate(ctx context.Context, uri string) (Location, error)
}

var (
	_ Store = (*LocalStore)(nil)
	_ Store = (*S3Store)(nil)
)

// New picks S3 when a bucket is configured, local disk otherwise.
func New(ctx context.Context, cfg config.ProofConfig) (Store, error) {
	if cfg.S3Bucket != "" {
		return NewS3Store(ctx, S3StoreConfig{
			Bucket:   cfg.S3Bucket,
			Region:   cfg.S3Region,
			Endpoint: cfg.S3Endpoint,
			Prefix:   cfg.S3Prefix,
		})
	}
	return NewLocalStore(cfg.LocalRoot)
}

// objectName gives every proof a unique name with an extension matching its content.
func objectName(p orders.PaymentProof) (name, contentType string) {
	mt := mimetype.Detect(p.Data)
	contentType = p.ContentType
	if contentType == "" {
		contentType = mt.String()
	}
	return uuid.NewString() + mt.Extension(), contentType
}

// nameOf extracts the object name from a proof URI. Names never contain a path separator.
func nameOf(uri string) (string, error) {
	name, ok := strings.CutPrefix(uri, URIPrefix)
	if !ok || name == "" || name == "." || name == ".." || name != path.Base(name) || strings.Contains(name, `\`) {
		return "", fmt.Errorf("%w: %q is not a proof uri", ErrNotFound, uri)
	}
	return name, nil
}
