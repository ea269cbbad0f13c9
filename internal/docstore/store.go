package docstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"financing_api/internal/errs"
)

// Store keeps uploaded document images (ID photos, selfies, signatures) and
// hands back opaque refs. A ref must stay fetchable for the agent to review.
type Store interface {
	Save(ctx context.Context, kind string, r io.Reader) (string, error)
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
}

type diskStore struct {
	root   string
	logger *zap.Logger
}

func NewDiskStore(root string, logger *zap.Logger) (Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create document store directory: %w", err)
	}
	return &diskStore{root: root, logger: logger}, nil
}

func (s *diskStore) Save(ctx context.Context, kind string, r io.Reader) (string, error) {
	ref := fmt.Sprintf("%s-%s", kind, uuid.New().String())

	f, err := os.Create(filepath.Join(s.root, ref))
	if err != nil {
		s.logger.Error("failed to create document file", zap.Error(err), zap.String("ref", ref))
		return "", fmt.Errorf("failed to create document file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		s.logger.Error("failed to write document file", zap.Error(err), zap.String("ref", ref))
		return "", fmt.Errorf("failed to write document file: %w", err)
	}

	s.logger.Debug("document stored", zap.String("ref", ref), zap.String("kind", kind))
	return ref, nil
}

func (s *diskStore) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	// Refs are opaque tokens, not paths.
	if ref == "" || strings.ContainsAny(ref, "/\\") || strings.Contains(ref, "..") {
		return nil, fmt.Errorf("invalid document ref %q", ref)
	}

	f, err := os.Open(filepath.Join(s.root, ref))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("document %s: %w", ref, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open document %s: %w", ref, err)
	}
	return f, nil
}
