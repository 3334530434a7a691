// Package api exposes the HTTP surface: COA uploads, the record list and the
// live change feed.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/takshit12/headycoasaas/internal/auth"
	"github.com/takshit12/headycoasaas/internal/config"
	"github.com/takshit12/headycoasaas/internal/model"
	"github.com/takshit12/headycoasaas/internal/pdfutil"
	"github.com/takshit12/headycoasaas/internal/queue"
	"github.com/takshit12/headycoasaas/internal/s3storage"
	"github.com/takshit12/headycoasaas/internal/signing"
)

// Repo is the slice of the repository the HTTP handlers need.
type Repo interface {
	Create(ctx context.Context, rec *model.LabResult) error
	ListByUser(ctx context.Context, userID string, limit int) ([]model.LabResult, error)
	MarkError(ctx context.Context, id int64, details string) (*model.LabResult, error)
}

// ObjectStore persists uploaded PDF bytes.
type ObjectStore interface {
	Upload(ctx context.Context, objectKey string, data []byte) error
}

// Dispatcher triggers the background worker. Dispatch succeeding only means
// the job was handed off, not that processing finished.
type Dispatcher interface {
	Dispatch(ctx context.Context, payload queue.ProcessPayload) error
}

// Publisher announces row changes on the live feed.
type Publisher interface {
	Inserted(ctx context.Context, rec *model.LabResult)
	Updated(ctx context.Context, rec *model.LabResult)
}

// FeedSource delivers an owner's change events until cancelled.
type FeedSource interface {
	Subscribe(ctx context.Context, userID string) (<-chan model.Event, func())
}

// UploadResult is the wire shape returned by the upload endpoint.
type UploadResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// Server exposes HTTP endpoints for uploads and the live feed.
type Server struct {
	cfg      *config.Config
	repo     Repo
	store    ObjectStore
	dispatch Dispatcher
	events   Publisher
	feed     FeedSource
	verifier *auth.Verifier
	signer   *signing.Signer
	server   *http.Server
	once     sync.Once
}

// New constructs a Server.
func New(cfg *config.Config, repo Repo, store ObjectStore, dispatch Dispatcher, events Publisher, feed FeedSource) *Server {
	return &Server{
		cfg:      cfg,
		repo:     repo,
		store:    store,
		dispatch: dispatch,
		events:   events,
		feed:     feed,
		verifier: auth.NewVerifier(cfg.JWTSecret),
		signer:   signing.NewSigner(cfg.JWTSecret),
	}
}

// Handler builds the route table wrapped in the shared middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/lab-results", s.verifier.Middleware(http.HandlerFunc(s.handleLabResults)))
	mux.Handle("/lab-results/feed-token", s.verifier.Middleware(http.HandlerFunc(s.handleFeedToken)))
	mux.HandleFunc("/lab-results/events", s.handleEvents)
	return corsMiddleware(loggingMiddleware(mux))
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.once.Do(func() {
		s.server = &http.Server{
			Addr:    s.cfg.Address,
			Handler: s.Handler(),
		}
	})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	log.Printf("api listening on %s", s.cfg.Address)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLabResults(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleUpload(w, r)
	case http.MethodGet:
		s.handleList(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleUpload validates the multipart submission in a fixed order, persists
// the blob and the pending row, then dispatches the worker. It never waits on
// processing; callers observe completion through the live feed.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := auth.UserIDFrom(ctx)
	if !ok {
		respondJSON(w, http.StatusUnauthorized, UploadResult{Success: false, Error: "User not authenticated."})
		return
	}

	// Leave headroom for multipart framing past the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxFileSize+64*1024)
	if err := r.ParseMultipartForm(s.cfg.MaxFileSize + 64*1024); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondJSON(w, http.StatusRequestEntityTooLarge, UploadResult{Success: false, Error: s.sizeError()})
			return
		}
		respondJSON(w, http.StatusBadRequest, UploadResult{Success: false, Error: "Expecting a multipart form upload."})
		return
	}
	file, header, err := r.FormFile("pdf")
	if err != nil {
		respondJSON(w, http.StatusBadRequest, UploadResult{Success: false, Error: "No file provided."})
		return
	}
	defer file.Close()

	if ct := header.Header.Get("Content-Type"); ct != "application/pdf" {
		respondJSON(w, http.StatusBadRequest, UploadResult{Success: false, Error: "Invalid file type. Only PDF is allowed."})
		return
	}
	if header.Size > s.cfg.MaxFileSize {
		respondJSON(w, http.StatusRequestEntityTooLarge, UploadResult{Success: false, Error: s.sizeError()})
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		log.Printf("read upload for %s: %v", userID, err)
		respondJSON(w, http.StatusBadRequest, UploadResult{Success: false, Error: "Could not read the uploaded file."})
		return
	}
	pageCount, err := pdfutil.PageCount(data)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, UploadResult{Success: false, Error: "Could not process the uploaded file as a valid PDF."})
		return
	}
	if pageCount > s.cfg.MaxPageCount {
		respondJSON(w, http.StatusBadRequest, UploadResult{Success: false,
			Error: fmt.Sprintf("PDF exceeds maximum page count of %d.", s.cfg.MaxPageCount)})
		return
	}

	fileName := header.Filename
	if fileName == "" {
		fileName = "upload.pdf"
	}
	objectKey := s3storage.ObjectKey(userID, fileName, time.Now())
	if err := s.store.Upload(ctx, objectKey, data); err != nil {
		log.Printf("upload to storage for %s: %v", userID, err)
		respondJSON(w, http.StatusInternalServerError, UploadResult{Success: false, Error: "Failed to upload file to storage."})
		return
	}

	rec := &model.LabResult{
		UserID:      userID,
		FileName:    fileName,
		StoragePath: objectKey,
		PageCount:   pageCount,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		// The blob written above is orphaned here; see the cleanup note in
		// DESIGN.md.
		log.Printf("insert lab result for %s: %v", userID, err)
		respondJSON(w, http.StatusInternalServerError, UploadResult{Success: false, Error: "Failed to save file metadata to database."})
		return
	}
	s.events.Inserted(ctx, rec)

	payload := queue.ProcessPayload{PDFStoragePath: objectKey, LabResultID: rec.ID}
	if err := s.dispatch.Dispatch(ctx, payload); err != nil {
		// Nothing will ever process the row, so it must not stay pending.
		log.Printf("dispatch worker for record %d: %v", rec.ID, err)
		if updated, markErr := s.repo.MarkError(ctx, rec.ID, "Failed to invoke processing function."); markErr != nil {
			log.Printf("mark error for record %d: %v", rec.ID, markErr)
		} else {
			s.events.Updated(ctx, updated)
		}
		respondJSON(w, http.StatusInternalServerError, UploadResult{Success: false, Error: "Failed to start the lab result processing."})
		return
	}

	respondJSON(w, http.StatusAccepted, UploadResult{Success: true, Message: "PDF uploaded successfully. Processing started."})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	records, err := s.repo.ListByUser(r.Context(), userID, s.cfg.ListLimit)
	if err != nil {
		log.Printf("list lab results for %s: %v", userID, err)
		http.Error(w, "failed to list lab results", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, records)
}

// handleFeedToken issues a short-lived signed token the browser can place in
// the live feed query string, since EventSource cannot set headers.
func (s *Server) handleFeedToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := auth.UserIDFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	sig, expires := s.signer.Issue(userID, s.cfg.FeedTokenTTL)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"userId":    userID,
		"expires":   expires,
		"signature": sig,
	})
}

// handleEvents streams the owner's change events as server-sent events until
// the client goes away. The subscription is torn down on disconnect.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	userID := q.Get("user")
	if userID == "" || !s.signer.Validate(userID, q.Get("expires"), q.Get("signature")) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch, cancel := s.feed.Subscribe(r.Context(), userID)
	defer cancel()

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case ev, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				log.Printf("encode feed event for %s: %v", userID, err)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func (s *Server) sizeError() string {
	return fmt.Sprintf("File size exceeds %dMB limit.", s.cfg.MaxFileSize>>20)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := uuid.NewString()[:8]
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r)
		if !strings.HasSuffix(r.URL.Path, "/events") {
			log.Printf("[%s] %s %s (%s)", reqID, r.Method, r.URL.Path, time.Since(start))
		}
	})
}
