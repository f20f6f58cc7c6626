package processing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"qmflow/internal/models"
	"qmflow/internal/providers"
	"qmflow/internal/storage"
	"qmflow/internal/util"

	"github.com/google/uuid"
)

type Store interface {
	GetDocument(ctx context.Context, documentID string) (models.Document, error)
	SavePageResult(ctx context.Context, documentID string, pageNumber int, res models.AIProcessingResult) error
}

type PromptStore interface {
	ActiveTemplate(ctx context.Context, documentTypeID string) (models.PromptTemplate, error)
}

type PageSource interface {
	PageImage(documentID string, pageNumber int) ([]byte, error)
	PageText(documentID, filename string, pageNumber int) (string, error)
}

type CallLog interface {
	Insert(ctx context.Context, rec storage.AICallRecord) error
}

// Coordinator drives single-page and all-pages AI processing. Every
// invocation outcome, failures included, is persisted on the page and logged
// to the call log.
type Coordinator struct {
	store         Store
	prompts       PromptStore
	pages         PageSource
	invoker       providers.Invoker
	calls         CallLog
	invokeTimeout time.Duration
	pacing        time.Duration
}

func NewCoordinator(store Store, prompts PromptStore, pages PageSource, invoker providers.Invoker, calls CallLog, invokeTimeout, pacing time.Duration) *Coordinator {
	if invokeTimeout <= 0 {
		invokeTimeout = 2 * time.Minute
	}
	return &Coordinator{
		store:         store,
		prompts:       prompts,
		pages:         pages,
		invoker:       invoker,
		calls:         calls,
		invokeTimeout: invokeTimeout,
		pacing:        pacing,
	}
}

// ProcessPage runs the model against one page and replaces the page's result
// in place. Without force, a prior successful result short-circuits the call;
// partial and failed results are always retried.
func (c *Coordinator) ProcessPage(ctx context.Context, documentID string, pageNumber int, force bool) (models.AIProcessingResult, error) {
	doc, err := c.store.GetDocument(ctx, documentID)
	if err != nil {
		return models.AIProcessingResult{}, err
	}
	page, ok := doc.PageByNumber(pageNumber)
	if !ok {
		return models.AIProcessingResult{}, fmt.Errorf("page %d: %w", pageNumber, util.ErrNotFound)
	}
	if !force && page.Result != nil && page.Result.Status == models.ResultSuccess {
		return *page.Result, nil
	}

	tmpl, err := c.prompts.ActiveTemplate(ctx, doc.DocumentTypeID)
	if err != nil {
		return models.AIProcessingResult{}, err
	}

	req := providers.InvokeRequest{
		Operation:   "process_page",
		Prompt:      tmpl.PromptText,
		Model:       tmpl.ModelID,
		Temperature: tmpl.Temperature,
		MaxTokens:   tmpl.MaxTokens,
		TopP:        tmpl.TopP,
	}
	switch doc.ProcessingMethod {
	case models.MethodVision:
		img, err := c.pages.PageImage(documentID, pageNumber)
		if err != nil {
			return models.AIProcessingResult{}, err
		}
		req.ImagePNG = img
	default:
		text, err := c.pages.PageText(documentID, doc.OriginalFilename, pageNumber)
		if err != nil {
			return models.AIProcessingResult{}, err
		}
		req.PageText = text
	}

	// The invocation is the one high-latency, high-failure step; a timeout is
	// indistinguishable from a provider error further down.
	invokeCtx, cancel := context.WithTimeout(ctx, c.invokeTimeout)
	res, invErr := c.invoker.Invoke(invokeCtx, req)
	cancel()

	result := buildResult(tmpl.ModelID, res, invErr)
	if err := c.store.SavePageResult(ctx, documentID, pageNumber, result); err != nil {
		return models.AIProcessingResult{}, err
	}
	c.logCall(ctx, documentID, pageNumber, result, invErr)

	if result.Status == models.ResultFailed {
		return result, fmt.Errorf("%s: %w", result.ErrorMessage, util.ErrProcessingFailed)
	}
	return result, nil
}

func buildResult(model string, res providers.InvokeResult, invErr error) models.AIProcessingResult {
	if invErr != nil {
		// Token counts and latency are kept even for failures; a dead
		// invocation may still have consumed tokens.
		return models.FailedResult(model, providers.SafeMessage(invErr), res.TokensSent, res.TokensReceived, res.LatencyMS)
	}
	if parsed, ok := extractJSON(res.Text); ok {
		return models.SuccessResult(model, res.Text, parsed, res.TokensSent, res.TokensReceived, res.LatencyMS)
	}
	return models.PartialResult(model, res.Text, res.TokensSent, res.TokensReceived, res.LatencyMS)
}

func (c *Coordinator) logCall(ctx context.Context, documentID string, pageNumber int, result models.AIProcessingResult, invErr error) {
	if c.calls == nil {
		return
	}
	_ = c.calls.Insert(ctx, storage.AICallRecord{
		CallID:           uuid.NewString(),
		Operation:        "process_page",
		DocumentID:       documentID,
		PageNumber:       pageNumber,
		ProviderName:     c.invoker.Name(),
		Model:            result.ModelUsed,
		Status:           string(result.Status),
		ErrorType:        string(providers.ClassifyError(invErr)),
		TokensSent:       result.TokensSent,
		TokensReceived:   result.TokensReceived,
		ProcessingTimeMS: result.ProcessingTimeMS,
	})
}

// PageOutcome is one row of a batch run.
type PageOutcome struct {
	PageNumber int                        `json:"page_number"`
	Result     *models.AIProcessingResult `json:"result,omitempty"`
	Error      string                     `json:"error,omitempty"`
}

// ProcessAllPages works through the document's pages in ascending order. A
// failing page is recorded and the batch moves on; already-successful pages
// are skipped without an invocation.
func (c *Coordinator) ProcessAllPages(ctx context.Context, documentID string) ([]PageOutcome, error) {
	doc, err := c.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	outcomes := make([]PageOutcome, 0, len(doc.Pages))
	for i, p := range doc.Pages {
		invoked := p.Result == nil || p.Result.Status != models.ResultSuccess
		res, err := c.ProcessPage(ctx, documentID, p.PageNumber, false)
		outcome := PageOutcome{PageNumber: p.PageNumber}
		if err != nil {
			outcome.Error = err.Error()
			if res.Status != "" {
				outcome.Result = &res
			}
		} else {
			outcome.Result = &res
		}
		outcomes = append(outcomes, outcome)

		// Pace successive invocations for provider rate limits. Skipped pages
		// cost nothing and need no delay.
		if invoked && i < len(doc.Pages)-1 && c.pacing > 0 {
			select {
			case <-ctx.Done():
				return outcomes, nil
			case <-time.After(c.pacing):
			}
		}
	}
	return outcomes, nil
}

// extractJSON reports whether the model answered with JSON, tolerating the
// usual markdown code fences around it.
func extractJSON(raw string) (json.RawMessage, bool) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
		s = strings.TrimSpace(s)
	}
	if s == "" || !json.Valid([]byte(s)) {
		return nil, false
	}
	return json.RawMessage(s), true
}
