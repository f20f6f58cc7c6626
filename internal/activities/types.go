package activities

type ListPagesInput struct {
	DocumentID string `json:"document_id"`
}

type PageState struct {
	PageNumber int  `json:"page_number"`
	Done       bool `json:"done"`
}

type ListPagesOutput struct {
	Pages []PageState `json:"pages"`
}

type ProcessPageInput struct {
	DocumentID string `json:"document_id"`
	PageNumber int    `json:"page_number"`
	Force      bool   `json:"force,omitempty"`
}

type ProcessPageOutput struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}
