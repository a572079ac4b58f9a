package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/knoguchi/lexrag/internal/auth"
	"github.com/knoguchi/lexrag/internal/index"
	"github.com/knoguchi/lexrag/internal/llm"
	"github.com/knoguchi/lexrag/internal/loader"
	"github.com/knoguchi/lexrag/internal/memory"
	"github.com/knoguchi/lexrag/internal/pipeline"
	"github.com/knoguchi/lexrag/internal/repository"
	"github.com/knoguchi/lexrag/internal/router"
)

const (
	unsupportedFileMessage = "Unsupported file type. Please upload .txt, .pdf, or .docx files."
	multipartMemory        = 32 << 20
	defaultListLimit       = 50
)

// Pipeline is the queryable state the API drives.
type Pipeline interface {
	Build(ctx context.Context, inputDir string, inputFiles []string) error
	Ready() bool
	ChunkCounts() map[string]int
	Query(ctx context.Context, query string) (*router.Result, error)
	QueryStream(ctx context.Context, query string) (*router.Selection, []index.NodeWithScore, <-chan llm.StreamChunk, error)
}

// APIConfig holds the API settings.
type APIConfig struct {
	UploadDir        string
	DefaultCorpusDir string
	MaxUploadBytes   int64
	// IsSupported filters upload names; defaults to loader.Supported.
	IsSupported func(name string) bool
	// Auth guards every route except the health checks. Nil disables it.
	Auth *auth.Authenticator
}

// API serves uploads and questions against a Pipeline.
type API struct {
	cfg      APIConfig
	pipeline Pipeline
	docs     repository.DocumentRepository
	queries  repository.QueryLogRepository
	sessions *memory.Store
	logger   *slog.Logger

	uploaded    atomic.Bool
	bootstrapMu sync.Mutex
}

// NewAPI creates the API. Nil repositories and sessions fall back to
// in-memory implementations.
func NewAPI(cfg APIConfig, p Pipeline, docs repository.DocumentRepository, queries repository.QueryLogRepository, sessions *memory.Store, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.IsSupported == nil {
		cfg.IsSupported = loader.Supported
	}
	if docs == nil {
		docs = repository.NewMemoryDocumentRepo()
	}
	if queries == nil {
		queries = repository.NewMemoryQueryLogRepo(1000)
	}
	if sessions == nil {
		sessions = memory.NewStore(0, 0)
	}
	return &API{
		cfg:      cfg,
		pipeline: p,
		docs:     docs,
		queries:  queries,
		sessions: sessions,
		logger:   logger.With("component", "api"),
	}
}

// Routes registers the API on r.
func (a *API) Routes(r chi.Router) {
	r.Get("/healthz", a.handleHealth)
	r.Get("/readyz", a.handleReady)

	r.Group(func(r chi.Router) {
		if a.cfg.Auth != nil {
			r.Use(a.cfg.Auth.Middleware)
		}
		r.Post("/upload-files", a.handleUpload)
		r.Post("/query", a.handleQuery)
		r.Post("/query/stream", a.handleQueryStream)
		r.Get("/documents", a.handleListDocuments)
		r.Get("/queries", a.handleListQueries)
	})
}

// PrepareUploadDir empties dir, creating it when missing. Uploads do not
// survive a restart.
func PrepareUploadDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clearing upload dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating upload dir: %w", err)
	}
	return nil
}

type uploadResponse struct {
	Message   string   `json:"message"`
	FilePaths []string `json:"file_paths"`
}

func (a *API) handleUpload(w http.ResponseWriter, r *http.Request) {
	if a.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, a.cfg.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Upload exceeds the size limit")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "No files provided")
		return
	}
	for _, fh := range files {
		if !a.cfg.IsSupported(fh.Filename) {
			writeError(w, http.StatusBadRequest, unsupportedFileMessage)
			return
		}
		if name := filepath.Base(fh.Filename); name == "." || name == ".." || name == string(filepath.Separator) {
			writeError(w, http.StatusBadRequest, "Invalid file name")
			return
		}
	}

	ctx := r.Context()
	var (
		paths []string
		docs  []*repository.Document
	)
	for _, fh := range files {
		saved, err := a.saveUpload(fh)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Error uploading files: "+err.Error())
			return
		}
		paths = append(paths, saved.Path)
		if doc := a.recordUpload(ctx, saved); doc != nil {
			docs = append(docs, doc)
		}
	}

	if err := a.pipeline.Build(ctx, a.cfg.UploadDir, paths); err != nil {
		a.logger.Error("rebuild after upload failed", "files", len(paths), "error", err)
		a.markDocuments(ctx, docs, repository.StatusFailed, err.Error(), nil)
		writeError(w, http.StatusInternalServerError, "Error uploading files: "+err.Error())
		return
	}
	a.uploaded.Store(true)
	a.markDocuments(ctx, docs, repository.StatusIndexed, "", a.pipeline.ChunkCounts())

	writeJSON(w, http.StatusOK, uploadResponse{Message: "Files uploaded successfully", FilePaths: paths})
}

type savedFile struct {
	Name string
	Path string
	Hash string
	Size int64
}

func (a *API) saveUpload(fh *multipart.FileHeader) (*savedFile, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	name := filepath.Base(fh.Filename)
	path := filepath.Join(a.cfg.UploadDir, name)
	dst, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(dst, h), src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("saving %s: %w", name, err)
	}
	return &savedFile{Name: name, Path: path, Hash: hex.EncodeToString(h.Sum(nil)), Size: n}, nil
}

// recordUpload stores the upload record. Repository failures are logged and
// do not fail the upload.
func (a *API) recordUpload(ctx context.Context, f *savedFile) *repository.Document {
	if existing, err := a.docs.GetByHash(ctx, f.Hash); err == nil {
		if existing.Path == f.Path {
			existing.Status = repository.StatusUploaded
			existing.ErrorMessage = ""
			existing.SizeBytes = f.Size
			return existing
		}
		a.logger.Info("duplicate upload", "file", f.Name, "duplicate_of", existing.FileName)
	} else if !errors.Is(err, repository.ErrNotFound) {
		a.logger.Warn("document lookup failed", "file", f.Name, "error", err)
	}

	doc := &repository.Document{
		FileName:    f.Name,
		Path:        f.Path,
		ContentHash: f.Hash,
		SizeBytes:   f.Size,
		Status:      repository.StatusUploaded,
	}
	if err := a.docs.Create(ctx, doc); err != nil {
		a.logger.Warn("failed to record upload", "file", f.Name, "error", err)
		return nil
	}
	return doc
}

func (a *API) markDocuments(ctx context.Context, docs []*repository.Document, status, errMsg string, chunks map[string]int) {
	ctx = context.WithoutCancel(ctx)
	for _, doc := range docs {
		doc.Status = status
		doc.ErrorMessage = errMsg
		if chunks != nil {
			doc.ChunkCount = chunks[doc.Path]
		}
		if err := a.docs.Update(ctx, doc); err != nil {
			a.logger.Warn("failed to update document record", "file", doc.FileName, "error", err)
		}
	}
}

type queryRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id,omitempty"`
}

type sourceResponse struct {
	FileName string  `json:"file_name"`
	Score    float32 `json:"score"`
	Text     string  `json:"text"`
}

type queryResponse struct {
	Response string           `json:"response"`
	Tool     string           `json:"tool"`
	Reason   string           `json:"reason,omitempty"`
	Sources  []sourceResponse `json:"sources"`
}

func (a *API) handleQuery(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeQuery(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	if err := a.ensureReady(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Error during query: "+err.Error())
		return
	}

	start := time.Now()
	res, err := a.pipeline.Query(ctx, a.sessions.Contextualize(req.SessionID, req.Question))
	entry := &repository.QueryLog{SessionID: req.SessionID, Question: req.Question, Latency: time.Since(start)}
	if err != nil {
		entry.Error = err.Error()
		a.logQuery(ctx, entry)
		if errors.Is(err, pipeline.ErrNotReady) {
			writeError(w, http.StatusServiceUnavailable, "Error during query: "+err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Error during query: "+err.Error())
		return
	}
	entry.Tool = res.Tool
	a.logQuery(ctx, entry)
	a.sessions.RecordTurn(req.SessionID, req.Question, res.Answer)

	writeJSON(w, http.StatusOK, queryResponse{
		Response: res.Answer,
		Tool:     res.Tool,
		Reason:   res.Reason,
		Sources:  toSources(res.Sources),
	})
}

type selectionEvent struct {
	Tool    string           `json:"tool"`
	Reason  string           `json:"reason,omitempty"`
	Sources []sourceResponse `json:"sources"`
}

// handleQueryStream answers as server-sent events: one "selection" event,
// "token" events, then "done" or "error".
func (a *API) handleQueryStream(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeQuery(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}
	ctx := r.Context()
	if err := a.ensureReady(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Error during query: "+err.Error())
		return
	}

	start := time.Now()
	entry := &repository.QueryLog{SessionID: req.SessionID, Question: req.Question}
	sel, sources, chunks, err := a.pipeline.QueryStream(ctx, a.sessions.Contextualize(req.SessionID, req.Question))
	if err != nil {
		entry.Error, entry.Latency = err.Error(), time.Since(start)
		a.logQuery(ctx, entry)
		writeError(w, http.StatusInternalServerError, "Error during query: "+err.Error())
		return
	}
	entry.Tool = sel.Tool.Name

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeEvent(w, flusher, "selection", selectionEvent{Tool: sel.Tool.Name, Reason: sel.Reason, Sources: toSources(sources)})

	var answer strings.Builder
	for chunk := range chunks {
		if chunk.Error != nil {
			entry.Error = chunk.Error.Error()
			writeEvent(w, flusher, "error", map[string]string{"detail": "Error during query: " + chunk.Error.Error()})
			break
		}
		if chunk.Token != "" {
			answer.WriteString(chunk.Token)
			writeEvent(w, flusher, "token", map[string]string{"token": chunk.Token})
		}
	}
	entry.Latency = time.Since(start)
	a.logQuery(ctx, entry)

	if entry.Error == "" {
		a.sessions.RecordTurn(req.SessionID, req.Question, answer.String())
		writeEvent(w, flusher, "done", map[string]string{"tool": sel.Tool.Name})
	}
}

// ensureReady builds the default corpus when nothing has been uploaded yet.
func (a *API) ensureReady(ctx context.Context) error {
	if a.uploaded.Load() || a.pipeline.Ready() {
		return nil
	}
	a.bootstrapMu.Lock()
	defer a.bootstrapMu.Unlock()
	if a.uploaded.Load() || a.pipeline.Ready() {
		return nil
	}
	a.logger.Info("no files uploaded, loading default documents", "dir", a.cfg.DefaultCorpusDir)
	return a.pipeline.Build(ctx, a.cfg.DefaultCorpusDir, nil)
}

func (a *API) logQuery(ctx context.Context, entry *repository.QueryLog) {
	if err := a.queries.Create(context.WithoutCancel(ctx), entry); err != nil {
		a.logger.Warn("failed to record query", "error", err)
	}
}

type documentResponse struct {
	ID           string    `json:"id"`
	FileName     string    `json:"file_name"`
	Path         string    `json:"path"`
	ContentHash  string    `json:"content_hash"`
	SizeBytes    int64     `json:"size_bytes"`
	ChunkCount   int       `json:"chunk_count"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (a *API) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pagination(w, r)
	if !ok {
		return
	}
	docs, total, err := a.docs.List(r.Context(), r.URL.Query().Get("status"), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error listing documents: "+err.Error())
		return
	}
	out := make([]documentResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, documentResponse{
			ID:           d.ID.String(),
			FileName:     d.FileName,
			Path:         d.Path,
			ContentHash:  d.ContentHash,
			SizeBytes:    d.SizeBytes,
			ChunkCount:   d.ChunkCount,
			Status:       d.Status,
			ErrorMessage: d.ErrorMessage,
			CreatedAt:    d.CreatedAt,
			UpdatedAt:    d.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": out, "total": total})
}

type queryLogResponse struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id,omitempty"`
	Question  string    `json:"question"`
	Tool      string    `json:"tool,omitempty"`
	LatencyMS int64     `json:"latency_ms"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (a *API) handleListQueries(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pagination(w, r)
	if !ok {
		return
	}
	entries, total, err := a.queries.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error listing queries: "+err.Error())
		return
	}
	out := make([]queryLogResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, queryLogResponse{
			ID:        e.ID.String(),
			SessionID: e.SessionID,
			Question:  e.Question,
			Tool:      e.Tool,
			LatencyMS: e.Latency.Milliseconds(),
			Error:     e.Error,
			CreatedAt: e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"queries": out, "total": total})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleReady reports ready once an index is built or the default corpus
// can be built on the first query.
func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	if a.pipeline.Ready() || hasSupportedFiles(a.cfg.DefaultCorpusDir, a.cfg.IsSupported) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
}

func hasSupportedFiles(dir string, supported func(string) bool) bool {
	if dir == "" {
		return false
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !e.IsDir() && !strings.HasPrefix(e.Name(), ".") && supported(e.Name()) {
			return true
		}
	}
	return false
}

func decodeQuery(w http.ResponseWriter, r *http.Request) (*queryRequest, bool) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return nil, false
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "Question is required")
		return nil, false
	}
	return &req, true
}

func pagination(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	limit, offset = defaultListLimit, 0
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return 0, 0, false
		}
		limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return 0, 0, false
		}
		offset = n
	}
	return limit, offset, true
}

func toSources(nodes []index.NodeWithScore) []sourceResponse {
	out := make([]sourceResponse, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, sourceResponse{
			FileName: n.Node.Metadata[index.MetaFileName],
			Score:    n.Score,
			Text:     n.Node.Text,
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError uses the {"detail": ...} shape clients of the API expect.
func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeEvent(w io.Writer, f http.Flusher, event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	f.Flush()
}
