package activities

import (
	"context"
	"errors"
	"fmt"
	"time"

	"qmflow/internal/config"
	"qmflow/internal/models"
	"qmflow/internal/pagestore"
	"qmflow/internal/processing"
	"qmflow/internal/providers"
	"qmflow/internal/storage"
	"qmflow/internal/util"
)

type Activities struct {
	store       processing.Store
	coordinator *processing.Coordinator
}

func New(cfg config.Config, db *storage.DB) (*Activities, error) {
	invoker, err := providers.New(cfg.AIProvider)
	if err != nil {
		return nil, err
	}
	docRepo := storage.NewDocumentRepo(db)
	coordinator := processing.NewCoordinator(
		docRepo,
		storage.NewPromptRepo(db),
		pagestore.NewFileStore(cfg.DataRoot),
		invoker,
		storage.NewAICallRepo(db),
		time.Duration(cfg.InvokeTimeoutSecs)*time.Second,
		// Pacing between pages is the workflow's concern, not the
		// coordinator's, when running under Temporal.
		0,
	)
	return &Activities{store: docRepo, coordinator: coordinator}, nil
}

func (a *Activities) ListPagesActivity(ctx context.Context, in ListPagesInput) (ListPagesOutput, error) {
	doc, err := a.store.GetDocument(ctx, in.DocumentID)
	if err != nil {
		return ListPagesOutput{}, fmt.Errorf("list pages: %w", err)
	}
	out := ListPagesOutput{Pages: make([]PageState, 0, len(doc.Pages))}
	for _, p := range doc.Pages {
		out.Pages = append(out.Pages, PageState{
			PageNumber: p.PageNumber,
			Done:       p.Result != nil && p.Result.Status == models.ResultSuccess,
		})
	}
	return out, nil
}

// ProcessPageActivity reports provider failures through the output status, so
// the workflow keeps batching instead of retrying a result that is already
// persisted.
func (a *Activities) ProcessPageActivity(ctx context.Context, in ProcessPageInput) (ProcessPageOutput, error) {
	res, err := a.coordinator.ProcessPage(ctx, in.DocumentID, in.PageNumber, in.Force)
	if err != nil {
		if errors.Is(err, util.ErrProcessingFailed) {
			return ProcessPageOutput{Status: string(models.ResultFailed), Error: res.ErrorMessage}, nil
		}
		return ProcessPageOutput{}, err
	}
	return ProcessPageOutput{Status: string(res.Status)}, nil
}
