package localfs

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestSaveOpenDeleteRoundTrip(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	if err := storage.Save(ctx, "doc-1_policy.txt", strings.NewReader("policy body")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	file, err := storage.Open(ctx, "doc-1_policy.txt")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	body, _ := io.ReadAll(file)
	_ = file.Close()
	if string(body) != "policy body" {
		t.Fatalf("unexpected body %q", body)
	}

	if err := storage.Delete(ctx, "doc-1_policy.txt"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := storage.Delete(ctx, "doc-1_policy.txt"); err != nil {
		t.Fatalf("second Delete() error = %v", err)
	}
	if _, err := storage.Open(ctx, "doc-1_policy.txt"); err == nil {
		t.Fatalf("expected open of deleted file to fail")
	}
}

func TestRejectsPathTraversal(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := storage.Save(context.Background(), "../escape.txt", strings.NewReader("x")); err == nil {
		t.Fatalf("expected invalid key error")
	}
}
