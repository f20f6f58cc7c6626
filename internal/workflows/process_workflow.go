package workflows

import (
	"time"

	"qmflow/internal/activities"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const QueryGetProcessProgress = "GetProcessProgress"

// DocumentProcessWorkflow runs the all-pages batch durably: pages in
// ascending order, one activity per page, pacing sleeps between invocations.
// A failed page is counted and the workflow moves on; it never aborts the
// batch.
func DocumentProcessWorkflow(ctx workflow.Context, input DocumentProcessInput) (DocumentProcessSummary, error) {
	progress := DocumentProcessProgress{
		DocumentID: input.DocumentID,
		PerPage:    map[int]string{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetProcessProgress, func() (DocumentProcessProgress, error) {
		return progress, nil
	}); err != nil {
		return DocumentProcessSummary{}, err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var listOut activities.ListPagesOutput
	if err := workflow.ExecuteActivity(ctx, "ListPagesActivity", activities.ListPagesInput{DocumentID: input.DocumentID}).Get(ctx, &listOut); err != nil {
		return DocumentProcessSummary{}, err
	}

	summary := DocumentProcessSummary{DocumentID: input.DocumentID, Total: len(listOut.Pages)}
	progress.Total = len(listOut.Pages)

	pacing := time.Duration(input.PacingSeconds) * time.Second
	invokedBefore := false
	for _, page := range listOut.Pages {
		if page.Done {
			progress.Done++
			progress.PerPage[page.PageNumber] = "success"
			summary.Skipped++
			summary.Pages = append(summary.Pages, PageOutcome{PageNumber: page.PageNumber, Status: "success"})
			continue
		}
		if invokedBefore && pacing > 0 {
			if err := workflow.Sleep(ctx, pacing); err != nil {
				return summary, err
			}
		}
		invokedBefore = true

		progress.PerPage[page.PageNumber] = "processing"
		var out activities.ProcessPageOutput
		err := workflow.ExecuteActivity(ctx, "ProcessPageActivity", activities.ProcessPageInput{
			DocumentID: input.DocumentID,
			PageNumber: page.PageNumber,
		}).Get(ctx, &out)
		if err != nil {
			out = activities.ProcessPageOutput{Status: "failed", Error: "page processing did not complete"}
		}

		progress.PerPage[page.PageNumber] = out.Status
		progress.Done++
		switch out.Status {
		case "success":
			summary.Succeeded++
		case "partial":
			summary.Partial++
		default:
			progress.Failed++
			summary.Failed++
		}
		summary.Pages = append(summary.Pages, PageOutcome{PageNumber: page.PageNumber, Status: out.Status, Error: out.Error})
	}
	return summary, nil
}
