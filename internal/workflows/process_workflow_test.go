package workflows

import (
	"context"
	"testing"

	"qmflow/internal/activities"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"
)

func registerActivityName[T any](env *testsuite.TestWorkflowEnvironment, name string, fn T) {
	env.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: name})
}

func newProcessEnv() *testsuite.TestWorkflowEnvironment {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(DocumentProcessWorkflow)
	registerActivityName(env, "ListPagesActivity", func(context.Context, activities.ListPagesInput) (activities.ListPagesOutput, error) {
		return activities.ListPagesOutput{}, nil
	})
	registerActivityName(env, "ProcessPageActivity", func(context.Context, activities.ProcessPageInput) (activities.ProcessPageOutput, error) {
		return activities.ProcessPageOutput{}, nil
	})
	return env
}

func TestDocumentProcessWorkflowAllPagesSucceed(t *testing.T) {
	env := newProcessEnv()

	env.OnActivity("ListPagesActivity", mock.Anything, activities.ListPagesInput{DocumentID: "d1"}).Return(activities.ListPagesOutput{
		Pages: []activities.PageState{{PageNumber: 1}, {PageNumber: 2}, {PageNumber: 3}},
	}, nil)
	env.OnActivity("ProcessPageActivity", mock.Anything, mock.Anything).Return(activities.ProcessPageOutput{Status: "success"}, nil)

	env.ExecuteWorkflow(DocumentProcessWorkflow, DocumentProcessInput{DocumentID: "d1", PacingSeconds: 2})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out DocumentProcessSummary
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, 3, out.Total)
	require.Equal(t, 3, out.Succeeded)
	require.Equal(t, 0, out.Failed)
}

func TestDocumentProcessWorkflowContinuesPastFailedPage(t *testing.T) {
	env := newProcessEnv()

	env.OnActivity("ListPagesActivity", mock.Anything, mock.Anything).Return(activities.ListPagesOutput{
		Pages: []activities.PageState{{PageNumber: 1}, {PageNumber: 2}, {PageNumber: 3}},
	}, nil)
	env.OnActivity("ProcessPageActivity", mock.Anything, activities.ProcessPageInput{DocumentID: "d1", PageNumber: 2}).
		Return(activities.ProcessPageOutput{Status: "failed", Error: "AI provider temporarily unavailable"}, nil)
	env.OnActivity("ProcessPageActivity", mock.Anything, mock.Anything).Return(activities.ProcessPageOutput{Status: "success"}, nil)

	env.ExecuteWorkflow(DocumentProcessWorkflow, DocumentProcessInput{DocumentID: "d1"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out DocumentProcessSummary
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, 3, out.Total)
	require.Equal(t, 2, out.Succeeded)
	require.Equal(t, 1, out.Failed)
	require.Len(t, out.Pages, 3)
	require.Equal(t, "failed", out.Pages[1].Status)
}

func TestDocumentProcessWorkflowSkipsDonePages(t *testing.T) {
	env := newProcessEnv()

	env.OnActivity("ListPagesActivity", mock.Anything, mock.Anything).Return(activities.ListPagesOutput{
		Pages: []activities.PageState{{PageNumber: 1, Done: true}, {PageNumber: 2}},
	}, nil)
	env.OnActivity("ProcessPageActivity", mock.Anything, activities.ProcessPageInput{DocumentID: "d1", PageNumber: 2}).
		Return(activities.ProcessPageOutput{Status: "success"}, nil)

	env.ExecuteWorkflow(DocumentProcessWorkflow, DocumentProcessInput{DocumentID: "d1"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out DocumentProcessSummary
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, 1, out.Skipped)
	require.Equal(t, 1, out.Succeeded)
}
