package docstore

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"financing_api/internal/errs"
)

func TestSaveAndOpen(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ref, err := store.Save(context.Background(), "selfie", strings.NewReader("image-bytes"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(ref, "selfie-") {
		t.Errorf("expected ref with 'selfie-' prefix, but got '%s'", ref)
	}

	rc, err := store.Open(context.Background(), ref)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "image-bytes" {
		t.Errorf("expected 'image-bytes', but got '%s'", data)
	}
}

func TestOpenRejectsPathLikeRefs(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, ref := range []string{"", "../etc/passwd", "a/b", `a\b`, "a..b"} {
		if _, err := store.Open(context.Background(), ref); err == nil {
			t.Errorf("expected error for ref '%s', but got nil", ref)
		}
	}
}

func TestOpenMissingRef(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = store.Open(context.Background(), "selfie-does-not-exist")
	if !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("expected ErrNotFound, but got %v", err)
	}
}
