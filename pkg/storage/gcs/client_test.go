package gcs

import (
	"context"
	"testing"

	pkgstorage "github.com/angelmondragon/vendorflow-backend/pkg/storage"
)

func TestPublicURLEscapesSegments(t *testing.T) {
	t.Parallel()

	client := &Client{defaultBucket: "vf-files", publicBaseURL: "https://cdn.example.com"}
	got := client.PublicURL("uploads/dispatch-proofs/a b/file#1.pdf")
	want := "https://cdn.example.com/vf-files/uploads/dispatch-proofs/a%20b/file%231.pdf"
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestPublicURLDefaultsToStorageHost(t *testing.T) {
	t.Parallel()

	client := &Client{defaultBucket: "vf-files"}
	if got := client.PublicURL("x.pdf"); got != "https://storage.googleapis.com/vf-files/x.pdf" {
		t.Fatalf("unexpected url %s", got)
	}
}

func TestObjectNameAppliesPrefix(t *testing.T) {
	t.Parallel()

	client := &Client{defaultBucket: "vf-files", objectPrefix: "uploads"}
	if got := client.objectName("/invoices/a.pdf"); got != "uploads/invoices/a.pdf" {
		t.Fatalf("unexpected object name %s", got)
	}
	client.objectPrefix = ""
	if got := client.objectName("invoices/a.pdf"); got != "invoices/a.pdf" {
		t.Fatalf("unexpected object name %s", got)
	}
}

func TestUninitializedClientErrors(t *testing.T) {
	t.Parallel()

	var client *Client
	if err := client.Ping(context.Background()); err == nil {
		t.Fatalf("expected ping error")
	}
	if _, err := client.Upload(context.Background(), pkgstorage.Object{Path: "a"}); err == nil {
		t.Fatalf("expected upload error")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close on nil client: %v", err)
	}
}
