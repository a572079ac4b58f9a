package postgres

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/knoguchi/lexrag/internal/repository"
)

// openTestDB connects to TEST_DATABASE_URL or skips.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := New(ctx, url)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	t.Cleanup(db.Close)
	return db
}

func TestDocumentRepo(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewDocumentRepo(db)

	hash := uuid.NewString()
	doc := &repository.Document{FileName: "case1.txt", Path: "uploads/case1.txt", ContentHash: hash, Status: repository.StatusUploaded}
	if err := repo.Create(ctx, doc); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	t.Cleanup(func() { _ = repo.Delete(context.Background(), doc.ID) })

	got, err := repo.GetByHash(ctx, hash)
	if err != nil {
		t.Fatalf("GetByHash() error = %v", err)
	}
	if got.ID != doc.ID {
		t.Errorf("expected %s, got %s", doc.ID, got.ID)
	}

	doc.Status = repository.StatusIndexed
	doc.ChunkCount = 3
	if err := repo.Update(ctx, doc); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	got, _ = repo.GetByID(ctx, doc.ID)
	if got.Status != repository.StatusIndexed || got.ChunkCount != 3 {
		t.Errorf("update not stored: %+v", got)
	}

	if _, err := repo.GetByID(ctx, uuid.New()); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestQueryLogRepo(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewQueryLogRepo(db)

	entry := &repository.QueryLog{Question: "what was the sentence?", Tool: "legal_context"}
	if err := repo.Create(ctx, entry); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	t.Cleanup(func() {
		_, _ = db.Pool.Exec(context.Background(), `DELETE FROM query_logs WHERE id = $1`, entry.ID)
	})

	entries, total, err := repo.List(ctx, 1, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total < 1 || len(entries) != 1 {
		t.Fatalf("expected at least one entry, got %d/%d", len(entries), total)
	}
}
