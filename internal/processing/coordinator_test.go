package processing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"qmflow/internal/models"
	"qmflow/internal/providers"
	"qmflow/internal/storage"
	"qmflow/internal/util"

	"github.com/stretchr/testify/require"
)

type stubPages struct{}

func (stubPages) PageImage(documentID string, pageNumber int) ([]byte, error) {
	return []byte(fmt.Sprintf("png-%s-%d", documentID, pageNumber)), nil
}

func (stubPages) PageText(documentID, filename string, pageNumber int) (string, error) {
	return fmt.Sprintf("text of page %d", pageNumber), nil
}

type scriptedInvoker struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, req providers.InvokeRequest, call int) (providers.InvokeResult, error)
}

func (s *scriptedInvoker) Name() string { return "scripted" }

func (s *scriptedInvoker) Invoke(ctx context.Context, req providers.InvokeRequest) (providers.InvokeResult, error) {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.mu.Unlock()
	return s.fn(ctx, req, call)
}

func (s *scriptedInvoker) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func jsonInvoke(ctx context.Context, req providers.InvokeRequest, call int) (providers.InvokeResult, error) {
	return providers.InvokeResult{
		Text:           fmt.Sprintf(`{"summary":"extraction %d"}`, call),
		TokensSent:     120,
		TokensReceived: 40,
		LatencyMS:      8,
	}, nil
}

func seedDocument(t *testing.T, mem *storage.Memory, pageCount int, method models.ProcessingMethod) string {
	t.Helper()
	docID := "doc-qm-1"
	pages := make([]models.Page, 0, pageCount)
	for n := 1; n <= pageCount; n++ {
		pages = append(pages, models.Page{PageNumber: n})
	}
	require.NoError(t, mem.CreateDocument(context.Background(), models.Document{
		DocumentID:       docID,
		OriginalFilename: "work-instruction.pdf",
		DocumentTypeID:   "wi",
		Version:          "v2",
		ProcessingMethod: method,
		WorkflowStatus:   models.StatusDraft,
		Pages:            pages,
		UploadedAt:       time.Now().UTC(),
	}))
	require.NoError(t, mem.UpsertTemplate(context.Background(), models.PromptTemplate{
		TemplateID:     "tpl-wi",
		DocumentTypeID: "wi",
		PromptText:     "Extract the page fields as JSON.",
		ModelID:        "test-model",
		Temperature:    0.1,
		MaxTokens:      1024,
		TopP:           1,
		Active:         true,
		CreatedAt:      time.Now().UTC(),
	}))
	return docID
}

func newCoordinator(mem *storage.Memory, inv providers.Invoker, timeout time.Duration) *Coordinator {
	return NewCoordinator(mem, mem, stubPages{}, inv, mem, timeout, 0)
}

func TestProcessPageSuccess(t *testing.T) {
	mem := storage.NewMemory()
	docID := seedDocument(t, mem, 1, models.MethodOCR)
	inv := &scriptedInvoker{fn: jsonInvoke}
	c := newCoordinator(mem, inv, time.Second)

	res, err := c.ProcessPage(context.Background(), docID, 1, false)
	require.NoError(t, err)
	require.Equal(t, models.ResultSuccess, res.Status)
	require.NotEmpty(t, res.ParsedJSON)
	require.Greater(t, res.TokensSent, 0)
	require.Equal(t, "test-model", res.ModelUsed)

	doc, err := mem.GetDocument(context.Background(), docID)
	require.NoError(t, err)
	page, _ := doc.PageByNumber(1)
	require.NotNil(t, page.Result)
	require.Equal(t, models.ResultSuccess, page.Result.Status)

	calls := mem.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, "success", calls[0].Status)
	require.Equal(t, 120, calls[0].TokensSent)
}

func TestProcessPagePartialWhenNotJSON(t *testing.T) {
	mem := storage.NewMemory()
	docID := seedDocument(t, mem, 1, models.MethodOCR)
	inv := &scriptedInvoker{fn: func(ctx context.Context, req providers.InvokeRequest, call int) (providers.InvokeResult, error) {
		return providers.InvokeResult{Text: "The page describes a cleaning procedure.", TokensSent: 10, TokensReceived: 9, LatencyMS: 3}, nil
	}}
	c := newCoordinator(mem, inv, time.Second)

	res, err := c.ProcessPage(context.Background(), docID, 1, false)
	require.NoError(t, err)
	require.Equal(t, models.ResultPartial, res.Status)
	require.Empty(t, res.ParsedJSON)
	require.NotEmpty(t, res.RawResponse)
}

func TestProcessPageAcceptsFencedJSON(t *testing.T) {
	mem := storage.NewMemory()
	docID := seedDocument(t, mem, 1, models.MethodOCR)
	inv := &scriptedInvoker{fn: func(ctx context.Context, req providers.InvokeRequest, call int) (providers.InvokeResult, error) {
		return providers.InvokeResult{Text: "```json\n{\"a\":1}\n```", TokensSent: 5, TokensReceived: 5, LatencyMS: 2}, nil
	}}
	c := newCoordinator(mem, inv, time.Second)

	res, err := c.ProcessPage(context.Background(), docID, 1, false)
	require.NoError(t, err)
	require.Equal(t, models.ResultSuccess, res.Status)
	require.JSONEq(t, `{"a":1}`, string(res.ParsedJSON))
}

func TestProcessPageTimeoutPersistsFailure(t *testing.T) {
	mem := storage.NewMemory()
	docID := seedDocument(t, mem, 1, models.MethodOCR)
	inv := &scriptedInvoker{fn: func(ctx context.Context, req providers.InvokeRequest, call int) (providers.InvokeResult, error) {
		<-ctx.Done()
		return providers.InvokeResult{LatencyMS: 50}, fmt.Errorf("generate request failed: %w", ctx.Err())
	}}
	c := newCoordinator(mem, inv, 20*time.Millisecond)

	res, err := c.ProcessPage(context.Background(), docID, 1, false)
	require.ErrorIs(t, err, util.ErrProcessingFailed)
	require.Equal(t, models.ResultFailed, res.Status)
	require.NotEmpty(t, res.ErrorMessage)

	doc, _ := mem.GetDocument(context.Background(), docID)
	page, _ := doc.PageByNumber(1)
	require.NotNil(t, page.Result)
	require.Equal(t, models.ResultFailed, page.Result.Status)

	calls := mem.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, "timeout", calls[0].ErrorType)
}

func TestProcessPageNoOpOnPriorSuccess(t *testing.T) {
	mem := storage.NewMemory()
	docID := seedDocument(t, mem, 1, models.MethodOCR)
	inv := &scriptedInvoker{fn: jsonInvoke}
	c := newCoordinator(mem, inv, time.Second)

	first, err := c.ProcessPage(context.Background(), docID, 1, false)
	require.NoError(t, err)
	second, err := c.ProcessPage(context.Background(), docID, 1, false)
	require.NoError(t, err)
	require.Equal(t, first.RawResponse, second.RawResponse)
	require.Equal(t, 1, inv.callCount())
}

func TestProcessPageRetriesPartialAndFailed(t *testing.T) {
	for _, prior := range []models.AIProcessingResult{
		models.PartialResult("test-model", "some text", 1, 1, 1),
		models.FailedResult("test-model", "provider down", 0, 0, 1),
	} {
		mem := storage.NewMemory()
		docID := seedDocument(t, mem, 1, models.MethodOCR)
		require.NoError(t, mem.SavePageResult(context.Background(), docID, 1, prior))

		inv := &scriptedInvoker{fn: jsonInvoke}
		c := newCoordinator(mem, inv, time.Second)
		res, err := c.ProcessPage(context.Background(), docID, 1, false)
		require.NoError(t, err)
		require.Equal(t, models.ResultSuccess, res.Status)
		require.Equal(t, 1, inv.callCount())
	}
}

// Force re-processing replaces the stored result, it never appends a second
// one.
func TestForceReprocessReplacesResult(t *testing.T) {
	mem := storage.NewMemory()
	docID := seedDocument(t, mem, 1, models.MethodOCR)
	inv := &scriptedInvoker{fn: jsonInvoke}
	c := newCoordinator(mem, inv, time.Second)

	_, err := c.ProcessPage(context.Background(), docID, 1, true)
	require.NoError(t, err)
	second, err := c.ProcessPage(context.Background(), docID, 1, true)
	require.NoError(t, err)
	require.Equal(t, 2, inv.callCount())

	doc, _ := mem.GetDocument(context.Background(), docID)
	page, _ := doc.PageByNumber(1)
	require.NotNil(t, page.Result)
	require.Equal(t, second.RawResponse, page.Result.RawResponse)
}

func TestProcessPageMissingTemplate(t *testing.T) {
	mem := storage.NewMemory()
	docID := seedDocument(t, mem, 1, models.MethodOCR)
	// Deactivate the only template for the type.
	require.NoError(t, mem.UpsertTemplate(context.Background(), models.PromptTemplate{
		TemplateID:     "tpl-wi",
		DocumentTypeID: "wi",
		Active:         false,
	}))
	c := newCoordinator(mem, &scriptedInvoker{fn: jsonInvoke}, time.Second)

	_, err := c.ProcessPage(context.Background(), docID, 1, false)
	require.ErrorIs(t, err, util.ErrConfiguration)
}

func TestProcessPageUnknownDocumentAndPage(t *testing.T) {
	mem := storage.NewMemory()
	docID := seedDocument(t, mem, 2, models.MethodOCR)
	c := newCoordinator(mem, &scriptedInvoker{fn: jsonInvoke}, time.Second)

	_, err := c.ProcessPage(context.Background(), "missing", 1, false)
	require.ErrorIs(t, err, util.ErrNotFound)
	_, err = c.ProcessPage(context.Background(), docID, 9, false)
	require.ErrorIs(t, err, util.ErrNotFound)
}

func TestProcessPageVisionSendsImage(t *testing.T) {
	mem := storage.NewMemory()
	docID := seedDocument(t, mem, 1, models.MethodVision)
	var gotImage []byte
	inv := &scriptedInvoker{fn: func(ctx context.Context, req providers.InvokeRequest, call int) (providers.InvokeResult, error) {
		gotImage = req.ImagePNG
		return jsonInvoke(ctx, req, call)
	}}
	c := newCoordinator(mem, inv, time.Second)

	_, err := c.ProcessPage(context.Background(), docID, 1, false)
	require.NoError(t, err)
	require.NotEmpty(t, gotImage)
}

// A failing page must not stop the batch; every other page still gets its
// attempt.
func TestProcessAllPagesPartialFailure(t *testing.T) {
	mem := storage.NewMemory()
	docID := seedDocument(t, mem, 5, models.MethodOCR)
	inv := &scriptedInvoker{fn: func(ctx context.Context, req providers.InvokeRequest, call int) (providers.InvokeResult, error) {
		if req.PageText == "text of page 3" {
			return providers.InvokeResult{LatencyMS: 2}, errors.New("provider unavailable")
		}
		return jsonInvoke(ctx, req, call)
	}}
	c := newCoordinator(mem, inv, time.Second)

	outcomes, err := c.ProcessAllPages(context.Background(), docID)
	require.NoError(t, err)
	require.Len(t, outcomes, 5)
	for _, o := range outcomes {
		if o.PageNumber == 3 {
			require.NotEmpty(t, o.Error)
			require.NotNil(t, o.Result)
			require.Equal(t, models.ResultFailed, o.Result.Status)
			continue
		}
		require.Empty(t, o.Error)
		require.NotNil(t, o.Result)
		require.Equal(t, models.ResultSuccess, o.Result.Status)
	}

	doc, _ := mem.GetDocument(context.Background(), docID)
	require.False(t, doc.AllPagesProcessed())
}

func TestProcessAllPagesSkipsDone(t *testing.T) {
	mem := storage.NewMemory()
	docID := seedDocument(t, mem, 3, models.MethodOCR)
	inv := &scriptedInvoker{fn: jsonInvoke}
	c := newCoordinator(mem, inv, time.Second)

	_, err := c.ProcessAllPages(context.Background(), docID)
	require.NoError(t, err)
	require.Equal(t, 3, inv.callCount())

	outcomes, err := c.ProcessAllPages(context.Background(), docID)
	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	require.Equal(t, 3, inv.callCount())

	doc, _ := mem.GetDocument(context.Background(), docID)
	require.True(t, doc.AllPagesProcessed())
}
