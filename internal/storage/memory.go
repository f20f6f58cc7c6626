package storage

import (
	"context"
	"sort"
	"sync"

	"qmflow/internal/models"
	"qmflow/internal/util"
)

// Memory is a process-local store with the same surface as the Postgres
// repos. It backs QMFLOW_STORE=memory deployments and the test suites.
type Memory struct {
	mu        sync.Mutex
	documents map[string]*models.Document
	history   map[string][]models.WorkflowStatusChange
	templates map[string]models.PromptTemplate
	users     map[string]models.User
	calls     []AICallRecord
}

func NewMemory() *Memory {
	return &Memory{
		documents: map[string]*models.Document{},
		history:   map[string][]models.WorkflowStatusChange{},
		templates: map[string]models.PromptTemplate{},
		users:     map[string]models.User{},
	}
}

func (m *Memory) CreateDocument(ctx context.Context, d models.Document) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := cloneDocument(d)
	m.documents[d.DocumentID] = &cp
	return nil
}

func (m *Memory) GetDocument(ctx context.Context, documentID string) (models.Document, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.documents[documentID]
	if !ok {
		return models.Document{}, util.ErrNotFound
	}
	return cloneDocument(*d), nil
}

func (m *Memory) ListDocuments(ctx context.Context) ([]models.Document, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Document, 0, len(m.documents))
	for _, d := range m.documents {
		out = append(out, cloneDocument(*d))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].DocumentID < out[j].DocumentID
		}
		return out[i].UploadedAt.After(out[j].UploadedAt)
	})
	return out, nil
}

func (m *Memory) SavePageResult(ctx context.Context, documentID string, pageNumber int, res models.AIProcessingResult) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.documents[documentID]
	if !ok {
		return util.ErrNotFound
	}
	for i := range d.Pages {
		if d.Pages[i].PageNumber == pageNumber {
			cp := res
			d.Pages[i].Result = &cp
			return nil
		}
	}
	return util.ErrNotFound
}

func (m *Memory) ApplyTransition(ctx context.Context, entry models.WorkflowStatusChange) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.documents[entry.DocumentID]
	if !ok {
		return util.ErrNotFound
	}
	if d.WorkflowStatus != entry.FromStatus {
		return util.ErrInvalidTransition
	}
	d.WorkflowStatus = entry.ToStatus
	m.history[entry.DocumentID] = append(m.history[entry.DocumentID], entry)
	return nil
}

func (m *Memory) History(ctx context.Context, documentID string) ([]models.WorkflowStatusChange, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.history[documentID]
	out := make([]models.WorkflowStatusChange, len(entries))
	copy(out, entries)
	return out, nil
}

func (m *Memory) ActiveTemplate(ctx context.Context, documentTypeID string) (models.PromptTemplate, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	var (
		best  models.PromptTemplate
		found bool
	)
	for _, t := range m.templates {
		if t.DocumentTypeID != documentTypeID || !t.Active {
			continue
		}
		if !found || t.CreatedAt.After(best.CreatedAt) {
			best = t
			found = true
		}
	}
	if !found {
		return models.PromptTemplate{}, util.ErrConfiguration
	}
	return best, nil
}

func (m *Memory) UpsertTemplate(ctx context.Context, t models.PromptTemplate) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates[t.TemplateID] = t
	return nil
}

func (m *Memory) GetUser(ctx context.Context, userID string) (models.User, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return models.User{}, util.ErrNotFound
	}
	return u, nil
}

func (m *Memory) UpsertUser(ctx context.Context, u models.User) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.UserID] = u
	return nil
}

func (m *Memory) Insert(ctx context.Context, rec AICallRecord) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, rec)
	return nil
}

func (m *Memory) Calls() []AICallRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]AICallRecord, len(m.calls))
	copy(out, m.calls)
	return out
}

func cloneDocument(d models.Document) models.Document {
	cp := d
	cp.Pages = make([]models.Page, len(d.Pages))
	for i, p := range d.Pages {
		cp.Pages[i] = p
		if p.Result != nil {
			res := *p.Result
			cp.Pages[i].Result = &res
		}
	}
	cp.InterestGroupIDs = append([]string(nil), d.InterestGroupIDs...)
	return cp
}
