package workflows

type DocumentProcessInput struct {
	DocumentID    string `json:"document_id"`
	PacingSeconds int    `json:"pacing_seconds"`
}

type PageOutcome struct {
	PageNumber int    `json:"page_number"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}

type DocumentProcessProgress struct {
	DocumentID string         `json:"document_id"`
	Total      int            `json:"total"`
	Done       int            `json:"done"`
	Failed     int            `json:"failed"`
	PerPage    map[int]string `json:"per_page"`
}

type DocumentProcessSummary struct {
	DocumentID string        `json:"document_id"`
	Total      int           `json:"total"`
	Succeeded  int           `json:"succeeded"`
	Partial    int           `json:"partial"`
	Failed     int           `json:"failed"`
	Skipped    int           `json:"skipped"`
	Pages      []PageOutcome `json:"pages"`
}
