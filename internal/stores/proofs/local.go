package proofs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"storefront-service/internal/orders"
)

// LocalStore writes proofs into a single directory.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		return nil, errors.New("proof root directory is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving proof root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to ensure proof dir: %w", err)
	}
	return &LocalStore{root: abs}, nil
}

func (s *LocalStore) Save(_ context.Context, p orders.PaymentProof) (string, error) {
	name, _ := objectName(p)
	path := filepath.Join(s.root, name)

	// Write to temp, then rename
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, p.Data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write proof: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("failed to commit proof: %w", err)
	}
	return URIPrefix + name, nil
}

// Delete removes a proof saved by this store. Missing files are not an error.
func (s *LocalStore) Delete(_ context.Context, uri string) error {
	name, err := nameOf(uri)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.root, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove proof: %w", err)
	}
	return nil
}

func (s *LocalStore) Locate(_ context.Context, uri string) (Location, error) {
	name, err := nameOf(uri)
	if err != nil {
		return Location{}, err
	}
	path := filepath.Join(s.root, name)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Location{}, fmt.Errorf("%w: %s", ErrNotFound, uri)
		}
		return Location{}, fmt.Errorf("failed to stat proof: %w", err)
	}
	if !info.Mode().IsRegular() {
		return Location{}, fmt.Errorf("%w: %s", ErrNotFound, uri)
	}
	return Location{Path: path}, nil
}
