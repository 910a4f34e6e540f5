package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/case-intake/internal/core/domain"
	"github.com/kirillkom/case-intake/internal/core/ports"
)

func TestUploadStoresUnderProcessFolderAndPublishes(t *testing.T) {
	processes := newProcessRepoFake()
	storage := newStorageFake()
	queue := &queueFake{}
	uc := NewUploadUseCase(processes, storage, queue, "cases")

	doc, err := uc.Upload(context.Background(), "case-7", "Statement of Claim.pdf", "", strings.NewReader("%PDF"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if doc.StoragePath != "case-7/Statement_of_Claim.pdf" || doc.MimeType != "application/pdf" {
		t.Fatalf("unexpected document %+v", doc)
	}
	if doc.ID != domain.DocumentID(doc.StoragePath) {
		t.Fatalf("document id must derive from storage path")
	}
	if storage.files[doc.StoragePath] != "%PDF" {
		t.Fatalf("expected stored body, got %q", storage.files[doc.StoragePath])
	}
	if len(queue.events) != 1 || queue.events[0] != (ports.ObjectFinalized{Bucket: "cases", Name: doc.StoragePath, ContentType: "application/pdf"}) {
		t.Fatalf("unexpected events %+v", queue.events)
	}
	p, err := processes.GetByID(context.Background(), "case-7")
	if err != nil || p.Status != domain.StatusUploaded {
		t.Fatalf("expected uploaded process, got %+v, %v", p, err)
	}
}

func TestStageMatchesUploadAddressingWithoutPublishing(t *testing.T) {
	processes := newProcessRepoFake()
	storage := newStorageFake()
	queue := &queueFake{}
	uc := NewUploadUseCase(processes, storage, queue, "cases")

	staged, err := uc.Stage(context.Background(), "case-7", "my file.pdf", "", []byte("%PDF"))
	if err != nil {
		t.Fatalf("Stage() error = %v", err)
	}
	uploaded, err := uc.Upload(context.Background(), "case-7", "my file.pdf", "", strings.NewReader("%PDF"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if staged.ID != uploaded.ID || staged.StoragePath != "case-7/my_file.pdf" {
		t.Fatalf("staged %+v and uploaded %+v must share an address", staged, uploaded)
	}
	if string(staged.Data) != "%PDF" || staged.MimeType != "application/pdf" {
		t.Fatalf("unexpected staged document %+v", staged)
	}
	if len(queue.events) != 1 {
		t.Fatalf("Stage must not publish, got %d events", len(queue.events))
	}
	if _, err := uc.Stage(context.Background(), "../x", "a.pdf", "", nil); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestUploadRejectsInvalidProcessID(t *testing.T) {
	uc := NewUploadUseCase(newProcessRepoFake(), newStorageFake(), &queueFake{}, "cases")
	for _, id := range []string{"", " case", "a/b", "..", strings.Repeat("x", 129)} {
		if _, err := uc.Upload(context.Background(), id, "a.pdf", "application/pdf", strings.NewReader("x")); !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("Upload(%q) expected ErrInvalidInput, got %v", id, err)
		}
	}
}

func TestUploadStorageErrorStopsBeforePublish(t *testing.T) {
	storage := newStorageFake()
	storage.saveErr = errors.New("disk full")
	queue := &queueFake{}
	uc := NewUploadUseCase(newProcessRepoFake(), storage, queue, "cases")

	if _, err := uc.Upload(context.Background(), "case-1", "a.pdf", "application/pdf", strings.NewReader("x")); err == nil {
		t.Fatalf("expected error")
	}
	if len(queue.events) != 0 {
		t.Fatalf("no event may be published for an unsaved file")
	}
}

func TestNotifyObjectFinalized(t *testing.T) {
	queue := &queueFake{}
	uc := NewUploadUseCase(newProcessRepoFake(), newStorageFake(), queue, "cases")

	if err := uc.NotifyObjectFinalized(context.Background(), ports.ObjectFinalized{Name: "claim.pdf"}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for flat name, got %v", err)
	}
	if err := uc.NotifyObjectFinalized(context.Background(), ports.ObjectFinalized{Name: "case-1/claim.pdf"}); err != nil {
		t.Fatalf("NotifyObjectFinalized() error = %v", err)
	}
	if len(queue.events) != 1 || queue.events[0].Bucket != "cases" {
		t.Fatalf("unexpected events %+v", queue.events)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := []struct{ in, want string }{
		{"../../etc/passwd", "passwd"},
		{`C:\scans\page 1.tif`, "page_1.tif"},
		{"", "document.bin"},
		{"Приговор.pdf", "________.pdf"},
	}
	for _, tc := range cases {
		if got := sanitizeFilename(tc.in); got != tc.want {
			t.Fatalf("sanitizeFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
