package models

import (
	"encoding/json"
	"strings"
	"time"
)

// WorkflowStatus is a document's stage in the review lifecycle.
type WorkflowStatus string

const (
	StatusDraft    WorkflowStatus = "draft"
	StatusReviewed WorkflowStatus = "reviewed"
	StatusApproved WorkflowStatus = "approved"
	StatusRejected WorkflowStatus = "rejected"
)

// transitions is the full edge set of the review lifecycle. Approved and
// rejected are terminal.
var transitions = map[WorkflowStatus][]WorkflowStatus{
	StatusDraft:    {StatusReviewed, StatusRejected},
	StatusReviewed: {StatusApproved, StatusRejected},
	StatusApproved: {},
	StatusRejected: {},
}

func ParseWorkflowStatus(s string) (WorkflowStatus, bool) {
	st := WorkflowStatus(strings.ToLower(strings.TrimSpace(s)))
	_, ok := transitions[st]
	return st, ok
}

// CanTransition reports whether from -> to is an edge in the lifecycle graph.
func CanTransition(from, to WorkflowStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s WorkflowStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

type ProcessingMethod string

const (
	MethodOCR    ProcessingMethod = "ocr"
	MethodVision ProcessingMethod = "vision"
)

func ParseProcessingMethod(s string) (ProcessingMethod, bool) {
	switch ProcessingMethod(strings.ToLower(strings.TrimSpace(s))) {
	case MethodOCR:
		return MethodOCR, true
	case MethodVision:
		return MethodVision, true
	}
	return "", false
}

type ResultStatus string

const (
	ResultSuccess ResultStatus = "success"
	ResultPartial ResultStatus = "partial"
	ResultFailed  ResultStatus = "failed"
)

// AIProcessingResult is the persisted outcome of one model invocation against
// one page. Exactly one result exists per processed page; re-processing
// replaces it in place.
type AIProcessingResult struct {
	Status           ResultStatus    `json:"status"`
	ModelUsed        string          `json:"ai_model_used"`
	TokensSent       int             `json:"tokens_sent"`
	TokensReceived   int             `json:"tokens_received"`
	ProcessingTimeMS int64           `json:"processing_time_ms"`
	RawResponse      string          `json:"raw_response,omitempty"`
	ParsedJSON       json.RawMessage `json:"parsed_json,omitempty"`
	ErrorMessage     string          `json:"error_message,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// The constructors keep the field combinations closed: parsed_json is set
// only on success, error_message only on failure.

func SuccessResult(model, raw string, parsed json.RawMessage, sent, received int, latencyMS int64) AIProcessingResult {
	return AIProcessingResult{
		Status:           ResultSuccess,
		ModelUsed:        model,
		TokensSent:       sent,
		TokensReceived:   received,
		ProcessingTimeMS: latencyMS,
		RawResponse:      raw,
		ParsedJSON:       parsed,
		CreatedAt:        time.Now().UTC(),
	}
}

func PartialResult(model, raw string, sent, received int, latencyMS int64) AIProcessingResult {
	return AIProcessingResult{
		Status:           ResultPartial,
		ModelUsed:        model,
		TokensSent:       sent,
		TokensReceived:   received,
		ProcessingTimeMS: latencyMS,
		RawResponse:      raw,
		CreatedAt:        time.Now().UTC(),
	}
}

func FailedResult(model, errMsg string, sent, received int, latencyMS int64) AIProcessingResult {
	return AIProcessingResult{
		Status:           ResultFailed,
		ModelUsed:        model,
		TokensSent:       sent,
		TokensReceived:   received,
		ProcessingTimeMS: latencyMS,
		ErrorMessage:     errMsg,
		CreatedAt:        time.Now().UTC(),
	}
}

// Page is one unit of a document. PageNumber is 1-based and dense within a
// document; Result is nil until the page has been processed.
type Page struct {
	PageNumber       int                 `json:"page_number"`
	PreviewImagePath string              `json:"preview_image_path,omitempty"`
	Result           *AIProcessingResult `json:"ai_processing_result,omitempty"`
}

type Document struct {
	DocumentID       string           `json:"document_id"`
	OriginalFilename string           `json:"original_filename"`
	DocumentTypeID   string           `json:"document_type_id"`
	QMChapter        string           `json:"qm_chapter,omitempty"`
	Version          string           `json:"version"`
	FileSizeBytes    int64            `json:"file_size_bytes"`
	ProcessingMethod ProcessingMethod `json:"processing_method"`
	WorkflowStatus   WorkflowStatus   `json:"workflow_status"`
	Pages            []Page           `json:"pages,omitempty"`
	InterestGroupIDs []string         `json:"interest_group_ids,omitempty"`
	UploadedAt       time.Time        `json:"uploaded_at"`
}

// AllPagesProcessed reports whether every page carries a successful result.
// Advisory only: the workflow engine does not gate transitions on it.
func (d Document) AllPagesProcessed() bool {
	if len(d.Pages) == 0 {
		return false
	}
	for _, p := range d.Pages {
		if p.Result == nil || p.Result.Status != ResultSuccess {
			return false
		}
	}
	return true
}

func (d Document) PageByNumber(n int) (Page, bool) {
	for _, p := range d.Pages {
		if p.PageNumber == n {
			return p, true
		}
	}
	return Page{}, false
}

// WorkflowStatusChange is one append-only audit entry. FromStatus is empty
// only for the first entry of a document's life.
type WorkflowStatusChange struct {
	EntryID         string         `json:"entry_id"`
	DocumentID      string         `json:"document_id"`
	FromStatus      WorkflowStatus `json:"from_status,omitempty"`
	ToStatus        WorkflowStatus `json:"to_status"`
	ChangedByUserID string         `json:"changed_by_user_id"`
	ChangedByName   string         `json:"changed_by_name,omitempty"`
	Reason          string         `json:"reason"`
	Comment         string         `json:"comment"`
	CreatedAt       time.Time      `json:"created_at"`
}

// StatusFromHistory derives the current status from an oldest-first audit
// history: the last entry's to_status, or draft for an empty history.
func StatusFromHistory(entries []WorkflowStatusChange) WorkflowStatus {
	if len(entries) == 0 {
		return StatusDraft
	}
	return entries[len(entries)-1].ToStatus
}

type User struct {
	UserID          string `json:"user_id"`
	DisplayName     string `json:"display_name"`
	PermissionLevel int    `json:"permission_level"`
}

// PromptTemplate is the active prompt configuration for a document type.
type PromptTemplate struct {
	TemplateID     string    `json:"template_id"`
	DocumentTypeID string    `json:"document_type_id"`
	PromptText     string    `json:"prompt_text"`
	ModelID        string    `json:"model_id"`
	Temperature    float64   `json:"temperature"`
	MaxTokens      int       `json:"max_tokens"`
	TopP           float64   `json:"top_p"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
}

// NormalizeVersion guarantees the "v" prefix on document versions, so "1.2"
// and "v1.2" store identically.
func NormalizeVersion(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "v1"
	}
	if !strings.HasPrefix(strings.ToLower(v), "v") {
		return "v" + v
	}
	return "v" + v[1:]
}
