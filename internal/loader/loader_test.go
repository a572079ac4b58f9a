package loader

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func writeDOCX(t *testing.T, dir, name, documentXML string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("zip create: %v", err)
	}
	if _, err := w.Write([]byte(documentXML)); err != nil {
		t.Fatalf("zip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return path
}

func TestLoadDir_SortedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "case2.txt", "Second judgment.")
	writeFile(t, dir, "case1.txt", "First judgment.")
	writeFile(t, dir, "notes.md", "ignored")
	writeFile(t, dir, ".hidden.txt", "ignored")
	writeFile(t, dir, "empty.txt", "   \n")
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(dir, "nested"), "case0.txt", "nested")

	docs, err := New(nil).LoadDir(context.Background(), dir)
	if err != nil {
		t.Fatalf("LoadDir() error = %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].FileName != "case1.txt" || docs[1].FileName != "case2.txt" {
		t.Errorf("unexpected order: %s, %s", docs[0].FileName, docs[1].FileName)
	}
	if docs[0].Text != "First judgment." {
		t.Errorf("unexpected text %q", docs[0].Text)
	}
	if docs[0].ContentHash != HashContent("First judgment.") {
		t.Errorf("content hash mismatch")
	}
	if docs[0].ID == "" || docs[0].ID == docs[1].ID {
		t.Errorf("expected distinct document ids")
	}
	if docs[1].Metadata["file_type"] != ".txt" {
		t.Errorf("unexpected metadata %v", docs[1].Metadata)
	}
}

func TestLoadDir_Empty(t *testing.T) {
	_, err := New(nil).LoadDir(context.Background(), t.TempDir())
	if !errors.Is(err, ErrNoDocuments) {
		t.Fatalf("expected ErrNoDocuments, got %v", err)
	}
}

func TestLoadDir_Missing(t *testing.T) {
	_, err := New(nil).LoadDir(context.Background(), filepath.Join(t.TempDir(), "nope"))
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestLoadFiles_Unsupported(t *testing.T) {
	dir := t.TempDir()
	ok := writeFile(t, dir, "a.txt", "fine")
	bad := writeFile(t, dir, "b.csv", "x,y")

	_, err := New(nil).LoadFiles(context.Background(), []string{ok, bad})
	if !errors.Is(err, ErrUnsupportedFileType) {
		t.Fatalf("expected ErrUnsupportedFileType, got %v", err)
	}
}

func TestLoadFiles_DOCX(t *testing.T) {
	dir := t.TempDir()
	path := writeDOCX(t, dir, "order.DOCX", `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>IN THE SUPREME COURT</w:t></w:r></w:p>
<w:p><w:r><w:t>Appeal</w:t></w:r><w:r><w:tab/><w:t xml:space="preserve">dismissed.</w:t></w:r></w:p>
</w:body>
</w:document>`)

	docs, err := New(nil).LoadFiles(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("LoadFiles() error = %v", err)
	}
	want := "IN THE SUPREME COURT\nAppeal\tdismissed."
	if len(docs) != 1 || docs[0].Text != want {
		t.Fatalf("got %+v, want text %q", docs, want)
	}
}

func TestLoadFiles_BrokenDOCX(t *testing.T) {
	path := writeFile(t, t.TempDir(), "broken.docx", "not a zip")
	if _, err := New(nil).LoadFiles(context.Background(), []string{path}); err == nil {
		t.Fatal("expected error for broken docx")
	}
}

func TestLoadFiles_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	path := writeFile(t, t.TempDir(), "a.txt", "x")
	if _, err := New(nil).LoadFiles(ctx, []string{path}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSupported(t *testing.T) {
	for name, want := range map[string]bool{
		"a.txt":  true,
		"a.PDF":  true,
		"a.docx": true,
		"a.doc":  false,
		"a":      false,
	} {
		if got := Supported(name); got != want {
			t.Errorf("Supported(%q) = %v, want %v", name, got, want)
		}
	}
}
