package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"qmflow/internal/config"
	"qmflow/internal/ingest"
	"qmflow/internal/models"
	"qmflow/internal/pagestore"
	"qmflow/internal/processing"
	"qmflow/internal/providers"
	"qmflow/internal/storage"
	"qmflow/internal/util"
	"qmflow/internal/workflow"
	"qmflow/internal/workflows"

	enumspb "go.temporal.io/api/enums/v1"
	tclient "go.temporal.io/sdk/client"
)

type DocumentStore interface {
	CreateDocument(ctx context.Context, d models.Document) error
	GetDocument(ctx context.Context, documentID string) (models.Document, error)
	ListDocuments(ctx context.Context) ([]models.Document, error)
}

type AuditStore interface {
	History(ctx context.Context, documentID string) ([]models.WorkflowStatusChange, error)
}

type UserStore interface {
	GetUser(ctx context.Context, userID string) (models.User, error)
}

type Server struct {
	cfg         config.Config
	store       DocumentStore
	audit       AuditStore
	users       UserStore
	engine      *workflow.Engine
	coordinator *processing.Coordinator
	registrar   *ingest.Registrar
	gate        workflow.Gate
	temporal    tclient.Client
}

// NewServer wires the full service. With QMFLOW_STORE=memory everything runs
// in-process (no Postgres, no Temporal) and batches execute synchronously.
func NewServer(cfg config.Config) *Server {
	invoker, err := providers.New(cfg.AIProvider)
	if err != nil {
		panic(err)
	}
	files := pagestore.NewFileStore(cfg.DataRoot)
	invokeTimeout := time.Duration(cfg.InvokeTimeoutSecs) * time.Second
	pacing := time.Duration(cfg.PagePacingMS) * time.Millisecond

	if cfg.Store == "memory" {
		mem := storage.NewMemory()
		seedMemory(mem)
		return &Server{
			cfg:         cfg,
			store:       mem,
			audit:       mem,
			users:       mem,
			engine:      workflow.NewEngine(mem),
			coordinator: processing.NewCoordinator(mem, mem, files, invoker, mem, invokeTimeout, pacing),
			registrar:   ingest.NewRegistrar(mem, files),
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		panic(err)
	}
	if err := storage.Migrate(ctx, db); err != nil {
		panic(err)
	}
	tc, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		panic(err)
	}
	docRepo := storage.NewDocumentRepo(db)
	return &Server{
		cfg:         cfg,
		store:       docRepo,
		audit:       storage.NewAuditRepo(db),
		users:       storage.NewUserRepo(db),
		engine:      workflow.NewEngine(docRepo),
		coordinator: processing.NewCoordinator(docRepo, storage.NewPromptRepo(db), files, invoker, storage.NewAICallRepo(db), invokeTimeout, pacing),
		registrar:   ingest.NewRegistrar(docRepo, files),
		temporal:    tc,
	}
}

// seedMemory gives the demo store a usable permission ladder and one prompt
// template per common document type.
func seedMemory(mem *storage.Memory) {
	ctx := context.Background()
	_ = mem.UpsertUser(ctx, models.User{UserID: "editor", DisplayName: "Demo Editor", PermissionLevel: workflow.LevelEditor})
	_ = mem.UpsertUser(ctx, models.User{UserID: "reviewer", DisplayName: "Demo Reviewer", PermissionLevel: workflow.LevelReviewer})
	_ = mem.UpsertUser(ctx, models.User{UserID: "approver", DisplayName: "Demo Approver", PermissionLevel: workflow.LevelApprover})
	for _, docType := range []string{"sop", "wi", "form"} {
		_ = mem.UpsertTemplate(ctx, models.PromptTemplate{
			TemplateID:     "tpl-" + docType,
			DocumentTypeID: docType,
			PromptText:     "Extract title, section headers and referenced chapter numbers from this quality-management page. Respond with JSON.",
			ModelID:        "mock-model",
			Temperature:    0.1,
			MaxTokens:      2048,
			TopP:           1,
			Active:         true,
			CreatedAt:      time.Now().UTC(),
		})
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/documents", s.handleDocuments)
	mux.HandleFunc("/documents/", s.handleDocumentScoped)
	return withCORS(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// documentView adds the advisory processing predicate to the wire shape.
type documentView struct {
	models.Document
	AllPagesProcessed bool `json:"all_pages_processed"`
}

func viewOf(d models.Document) documentView {
	return documentView{Document: d, AllPagesProcessed: d.AllPagesProcessed()}
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		docs, err := s.store.ListDocuments(r.Context())
		if err != nil {
			writeErr(w, err)
			return
		}
		statusFilter := strings.TrimSpace(r.URL.Query().Get("status"))
		out := make([]documentView, 0, len(docs))
		for _, d := range docs {
			if statusFilter != "" && string(d.WorkflowStatus) != statusFilter {
				continue
			}
			out = append(out, viewOf(d))
		}
		writeJSON(w, http.StatusOK, map[string]any{"documents": out})
	case http.MethodPost:
		s.handleUpload(w, r)
	default:
		writeErr(w, errMethodNotAllowed)
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(128 << 20); err != nil {
		writeErr(w, fmt.Errorf("malformed multipart upload: %w", util.ErrValidation))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeErr(w, fmt.Errorf("a PDF file is required: %w", util.ErrValidation))
		return
	}
	defer file.Close()
	if !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
		writeErr(w, fmt.Errorf("only PDF uploads are supported: %w", util.ErrValidation))
		return
	}

	tmp, err := os.CreateTemp("", "upload-*.pdf")
	if err != nil {
		writeErr(w, fmt.Errorf("create temp upload: %w", err))
		return
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, file); err != nil {
		_ = tmp.Close()
		writeErr(w, fmt.Errorf("write upload: %w", err))
		return
	}
	if err := tmp.Close(); err != nil {
		writeErr(w, err)
		return
	}
	// Keep the caller-facing name; the temp name is an implementation detail.
	namedPath := util.SafeJoin(os.TempDir(), header.Filename)
	if err := os.Rename(tmp.Name(), namedPath); err != nil {
		writeErr(w, fmt.Errorf("stage upload: %w", err))
		return
	}
	defer os.Remove(namedPath)

	method, _ := models.ParseProcessingMethod(r.FormValue("processing_method"))
	meta := ingest.Meta{
		DocumentTypeID:   strings.TrimSpace(r.FormValue("document_type_id")),
		QMChapter:        strings.TrimSpace(r.FormValue("qm_chapter")),
		Version:          r.FormValue("version"),
		ProcessingMethod: method,
	}
	if groups := strings.TrimSpace(r.FormValue("interest_groups")); groups != "" {
		for _, g := range strings.Split(groups, ",") {
			if g = strings.TrimSpace(g); g != "" {
				meta.InterestGroupIDs = append(meta.InterestGroupIDs, g)
			}
		}
	}

	doc, err := s.registrar.Register(r.Context(), namedPath, meta)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"document": viewOf(doc)})
}

func (s *Server) handleDocumentScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/documents/"), "/"), "/")
	if len(parts) < 1 || parts[0] == "" {
		writeErr(w, util.ErrNotFound)
		return
	}
	documentID := parts[0]

	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			writeErr(w, errMethodNotAllowed)
			return
		}
		doc, err := s.store.GetDocument(r.Context(), documentID)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"document": viewOf(doc)})

	case len(parts) == 2 && parts[1] == "history":
		if r.Method != http.MethodGet {
			writeErr(w, errMethodNotAllowed)
			return
		}
		s.handleHistory(w, r, documentID)

	case len(parts) == 2 && parts[1] == "transition":
		if r.Method != http.MethodPost {
			writeErr(w, errMethodNotAllowed)
			return
		}
		s.handleTransition(w, r, documentID)

	case len(parts) == 2 && parts[1] == "process":
		if r.Method != http.MethodPost {
			writeErr(w, errMethodNotAllowed)
			return
		}
		s.handleProcessAll(w, r, documentID)

	case len(parts) == 2 && parts[1] == "progress":
		if r.Method != http.MethodGet {
			writeErr(w, errMethodNotAllowed)
			return
		}
		s.handleProgress(w, r, documentID)

	case len(parts) == 4 && parts[1] == "pages" && parts[3] == "process":
		if r.Method != http.MethodPost {
			writeErr(w, errMethodNotAllowed)
			return
		}
		pageNumber, err := strconv.Atoi(parts[2])
		if err != nil || pageNumber < 1 {
			writeErr(w, fmt.Errorf("page number must be a positive integer: %w", util.ErrValidation))
			return
		}
		s.handleProcessPage(w, r, documentID, pageNumber)

	default:
		writeErr(w, util.ErrNotFound)
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request, documentID string) {
	if _, err := s.store.GetDocument(r.Context(), documentID); err != nil {
		writeErr(w, err)
		return
	}
	history, err := s.audit.History(r.Context(), documentID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"document_id": documentID,
		"history":     history,
		"current":     models.StatusFromHistory(history),
	})
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request, documentID string) {
	caller, err := s.resolveCaller(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	var req struct {
		TargetStatus string `json:"target_status"`
		Comment      string `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, fmt.Errorf("malformed JSON body: %w", util.ErrValidation))
		return
	}
	doc, entry, err := s.engine.Transition(r.Context(), documentID, models.WorkflowStatus(req.TargetStatus), caller, req.Comment)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"document":    viewOf(doc),
		"audit_entry": entry,
	})
}

func (s *Server) handleProcessPage(w http.ResponseWriter, r *http.Request, documentID string, pageNumber int) {
	caller, err := s.resolveCaller(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	force := r.URL.Query().Get("force") == "true"
	action := workflow.ActionProcessPage
	if force {
		action = workflow.ActionForceReprocess
	}
	if !s.gate.Allows(caller.PermissionLevel, action) {
		writeErr(w, fmt.Errorf("level %d may not %s: %w", caller.PermissionLevel, action, util.ErrPermissionDenied))
		return
	}

	res, err := s.coordinator.ProcessPage(r.Context(), documentID, pageNumber, force)
	if err != nil {
		if errors.Is(err, util.ErrProcessingFailed) {
			// The failed result is persisted; the caller gets both the error
			// and the recorded outcome.
			writeJSON(w, http.StatusBadGateway, map[string]any{
				"error":  apiErrorBody(err),
				"result": res,
			})
			return
		}
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": res})
}

func (s *Server) handleProcessAll(w http.ResponseWriter, r *http.Request, documentID string) {
	caller, err := s.resolveCaller(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	if !s.gate.Allows(caller.PermissionLevel, workflow.ActionProcessPage) {
		writeErr(w, fmt.Errorf("level %d may not process pages: %w", caller.PermissionLevel, util.ErrPermissionDenied))
		return
	}
	if _, err := s.store.GetDocument(r.Context(), documentID); err != nil {
		writeErr(w, err)
		return
	}

	if s.temporal == nil {
		outcomes, err := s.coordinator.ProcessAllPages(r.Context(), documentID)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"pages": outcomes})
		return
	}

	we, err := s.temporal.ExecuteWorkflow(r.Context(), tclient.StartWorkflowOptions{
		ID:                                       "process-" + documentID,
		TaskQueue:                                s.cfg.TemporalTaskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, workflows.DocumentProcessWorkflow, workflows.DocumentProcessInput{
		DocumentID:    documentID,
		PacingSeconds: s.cfg.PagePacingMS / 1000,
	})
	if err != nil {
		writeErr(w, fmt.Errorf("processing already running: %w: %v", util.ErrInvalidTransition, err))
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"workflow_id": we.GetID(), "run_id": we.GetRunID()})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request, documentID string) {
	if s.temporal != nil {
		resp, err := s.temporal.QueryWorkflow(r.Context(), "process-"+documentID, "", workflows.QueryGetProcessProgress)
		if err == nil {
			var prog workflows.DocumentProcessProgress
			if err := resp.Get(&prog); err == nil {
				writeJSON(w, http.StatusOK, prog)
				return
			}
		}
	}
	// No live workflow to query; derive progress from the persisted results.
	doc, err := s.store.GetDocument(r.Context(), documentID)
	if err != nil {
		writeErr(w, err)
		return
	}
	prog := workflows.DocumentProcessProgress{
		DocumentID: documentID,
		Total:      len(doc.Pages),
		PerPage:    map[int]string{},
	}
	for _, p := range doc.Pages {
		if p.Result == nil {
			continue
		}
		prog.PerPage[p.PageNumber] = string(p.Result.Status)
		prog.Done++
		if p.Result.Status == models.ResultFailed {
			prog.Failed++
		}
	}
	writeJSON(w, http.StatusOK, prog)
}

// resolveCaller is the permission oracle lookup: X-User-ID names the caller,
// the user store supplies display name and level.
func (s *Server) resolveCaller(r *http.Request) (models.User, error) {
	userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
	if userID == "" {
		return models.User{}, fmt.Errorf("X-User-ID header is required: %w", util.ErrValidation)
	}
	u, err := s.users.GetUser(r.Context(), userID)
	if errors.Is(err, util.ErrNotFound) {
		return models.User{}, fmt.Errorf("unknown user %q: %w", userID, util.ErrPermissionDenied)
	}
	if err != nil {
		return models.User{}, err
	}
	return u, nil
}

var errMethodNotAllowed = errors.New("method not allowed")

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// apiErrorBody maps an internal error onto a caller-safe coded message. Every
// precondition failure names what failed; only unexpected errors collapse to
// a generic message.
func apiErrorBody(err error) apiError {
	switch {
	case errors.Is(err, util.ErrValidation):
		return apiError{Code: "QF-API-4001", Message: err.Error()}
	case errors.Is(err, util.ErrPermissionDenied):
		return apiError{Code: "QF-API-4003", Message: err.Error()}
	case errors.Is(err, util.ErrNotFound):
		return apiError{Code: "QF-API-4004", Message: err.Error()}
	case errors.Is(err, util.ErrInvalidTransition):
		return apiError{Code: "QF-API-4009", Message: err.Error()}
	case errors.Is(err, util.ErrConfiguration):
		return apiError{Code: "QF-API-4022", Message: "No active prompt template is configured for this document type."}
	case errors.Is(err, util.ErrProcessingFailed):
		return apiError{Code: "QF-API-5020", Message: err.Error()}
	case errors.Is(err, errMethodNotAllowed):
		return apiError{Code: "QF-API-4005", Message: "This endpoint does not support the requested method."}
	default:
		return apiError{Code: "QF-API-5000", Message: "Internal server error. Please retry or check service logs."}
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, util.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, util.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, util.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, util.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, util.ErrConfiguration):
		return http.StatusUnprocessableEntity
	case errors.Is(err, util.ErrProcessingFailed):
		return http.StatusBadGateway
	case errors.Is(err, errMethodNotAllowed):
		return http.StatusMethodNotAllowed
	default:
		return http.StatusInternalServerError
	}
}

func writeErr(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]any{"error": apiErrorBody(err)})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-User-ID")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
