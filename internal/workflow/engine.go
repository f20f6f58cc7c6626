package workflow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"qmflow/internal/models"
	"qmflow/internal/util"

	"github.com/google/uuid"
)

// Store is the slice of the document store the engine needs. ApplyTransition
// must set the new status and append the audit entry atomically, failing with
// util.ErrInvalidTransition when the document's status no longer matches
// entry.FromStatus.
type Store interface {
	GetDocument(ctx context.Context, documentID string) (models.Document, error)
	ApplyTransition(ctx context.Context, entry models.WorkflowStatusChange) error
}

// Engine validates and applies workflow transitions. Transitions against the
// same document are serialized in-process; the store's compare-and-swap covers
// concurrent writers in other processes.
type Engine struct {
	store Store
	gate  Gate

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store, locks: map[string]*sync.Mutex{}}
}

func (e *Engine) lockFor(documentID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[documentID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[documentID] = l
	}
	return l
}

// Transition applies one status change. Validation order: mandatory comment,
// document existence, lifecycle edge, caller permission. A failed call leaves
// both the document and the audit trail untouched.
func (e *Engine) Transition(ctx context.Context, documentID string, target models.WorkflowStatus, caller models.User, comment string) (models.Document, models.WorkflowStatusChange, error) {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return models.Document{}, models.WorkflowStatusChange{}, fmt.Errorf("comment is mandatory: %w", util.ErrValidation)
	}
	if _, ok := models.ParseWorkflowStatus(string(target)); !ok {
		return models.Document{}, models.WorkflowStatusChange{}, fmt.Errorf("unknown target status %q: %w", target, util.ErrValidation)
	}

	lock := e.lockFor(documentID)
	lock.Lock()
	defer lock.Unlock()

	doc, err := e.store.GetDocument(ctx, documentID)
	if err != nil {
		return models.Document{}, models.WorkflowStatusChange{}, err
	}
	if !models.CanTransition(doc.WorkflowStatus, target) {
		return models.Document{}, models.WorkflowStatusChange{}, fmt.Errorf("no edge %s -> %s: %w", doc.WorkflowStatus, target, util.ErrInvalidTransition)
	}
	action, ok := ActionForTarget(target)
	if !ok {
		return models.Document{}, models.WorkflowStatusChange{}, fmt.Errorf("no action guards target %q: %w", target, util.ErrInvalidTransition)
	}
	if !e.gate.Allows(caller.PermissionLevel, action) {
		return models.Document{}, models.WorkflowStatusChange{}, fmt.Errorf("level %d may not %s: %w", caller.PermissionLevel, action, util.ErrPermissionDenied)
	}

	entry := models.WorkflowStatusChange{
		EntryID:         uuid.NewString(),
		DocumentID:      documentID,
		FromStatus:      doc.WorkflowStatus,
		ToStatus:        target,
		ChangedByUserID: caller.UserID,
		ChangedByName:   caller.DisplayName,
		Reason:          transitionReason(doc.WorkflowStatus, target),
		Comment:         comment,
		CreatedAt:       time.Now().UTC(),
	}
	if err := e.store.ApplyTransition(ctx, entry); err != nil {
		return models.Document{}, models.WorkflowStatusChange{}, err
	}
	doc.WorkflowStatus = target
	return doc, entry, nil
}

func transitionReason(from, to models.WorkflowStatus) string {
	switch to {
	case models.StatusReviewed:
		return "document marked as reviewed"
	case models.StatusApproved:
		return "document approved for release"
	case models.StatusRejected:
		if from == models.StatusReviewed {
			return "document rejected after review"
		}
		return "document rejected"
	}
	return fmt.Sprintf("status changed from %s to %s", from, to)
}
