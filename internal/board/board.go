package board

import (
	"context"
	"fmt"
	"strings"
	"time"

	"qmflow/internal/models"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Board is the Kanban view over the document lifecycle. Cards sit in one
// column per workflow status; moving a card runs the same transition the API
// exposes, so every permission and graph rule applies here too.
type Board struct {
	client *Client

	columns  [][]card
	col      int
	row      int
	width    int
	height   int
	loading  bool
	errorMsg string
	notice   string

	// A pending move holds the card and target while the mandatory comment
	// is being typed.
	pendingDoc    string
	pendingTarget models.WorkflowStatus
	commenting    bool
	comment       string
}

func NewBoard(client *Client) *Board {
	return &Board{
		client:  client,
		columns: make([][]card, len(columnOrder)),
		width:   120,
		height:  32,
		loading: true,
	}
}

func (b *Board) Init() tea.Cmd {
	return b.loadDocuments
}

func (b *Board) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		b.width = msg.Width
		b.height = msg.Height
		return b, nil
	case tea.KeyMsg:
		if b.commenting {
			return b.updateComment(msg)
		}
		return b.updateBrowse(msg)
	case documentsLoadedMsg:
		b.columns = columnize(msg.docs)
		b.loading = false
		b.clampSelection()
		return b, nil
	case moveDoneMsg:
		b.notice = fmt.Sprintf("Moved %s to %s", msg.documentID, msg.target)
		return b, b.loadDocuments
	case errorMsg:
		b.errorMsg = msg.error.Error()
		b.loading = false
		// Reload so the board never keeps showing a move the server refused.
		return b, b.loadDocuments
	}
	return b, nil
}

func (b *Board) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "q", "ctrl+c":
		return b, tea.Quit
	case "r":
		b.loading = true
		b.errorMsg = ""
		b.notice = ""
		return b, b.loadDocuments
	case "h", "left":
		if b.col > 0 {
			b.col--
			b.clampSelection()
		}
		return b, nil
	case "l", "right":
		if b.col < len(b.columns)-1 {
			b.col++
			b.clampSelection()
		}
		return b, nil
	case "j", "down":
		if b.row < len(b.columns[b.col])-1 {
			b.row++
		}
		return b, nil
	case "k", "up":
		if b.row > 0 {
			b.row--
		}
		return b, nil
	}
	if target, ok := moveTarget(key); ok {
		c, ok := b.selectedCard()
		if !ok {
			return b, nil
		}
		if !models.CanTransition(c.Status, target) {
			b.errorMsg = fmt.Sprintf("%s cannot move from %s to %s", c.Filename, c.Status, target)
			return b, nil
		}
		b.pendingDoc = c.DocumentID
		b.pendingTarget = target
		b.commenting = true
		b.comment = ""
		b.errorMsg = ""
		b.notice = ""
	}
	return b, nil
}

func (b *Board) updateComment(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		b.commenting = false
		b.comment = ""
		return b, nil
	case "enter":
		if strings.TrimSpace(b.comment) == "" {
			b.errorMsg = "A comment is required for every status change."
			return b, nil
		}
		b.commenting = false
		return b, b.submitMove
	case "backspace":
		if len(b.comment) > 0 {
			b.comment = b.comment[:len(b.comment)-1]
		}
		return b, nil
	case "space":
		b.comment += " "
		return b, nil
	default:
		if msg.Type == tea.KeyRunes {
			b.comment += string(msg.Runes)
		}
		return b, nil
	}
}

func (b *Board) selectedCard() (card, bool) {
	if b.col < 0 || b.col >= len(b.columns) {
		return card{}, false
	}
	col := b.columns[b.col]
	if b.row < 0 || b.row >= len(col) {
		return card{}, false
	}
	return col[b.row], true
}

func (b *Board) clampSelection() {
	if b.col >= len(b.columns) {
		b.col = len(b.columns) - 1
	}
	if n := len(b.columns[b.col]); b.row >= n {
		b.row = n - 1
	}
	if b.row < 0 {
		b.row = 0
	}
}

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	columnStyle   = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(0, 1)
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	doneStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("40"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	noticeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("40"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

func (b *Board) View() string {
	var lines []string
	lines = append(lines, headerStyle.Render("QM Document Board"))
	lines = append(lines, "")

	if b.loading {
		lines = append(lines, "Loading documents...")
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	colWidth := b.width/len(columnOrder) - 4
	if colWidth < 18 {
		colWidth = 18
	}
	rendered := make([]string, 0, len(columnOrder))
	for i, status := range columnOrder {
		var body []string
		title := fmt.Sprintf("%s (%d)", strings.ToUpper(string(status)), len(b.columns[i]))
		body = append(body, headerStyle.Render(title))
		for j, c := range b.columns[i] {
			label := fmt.Sprintf("%s %s", c.Filename, c.Version)
			if c.Processed {
				label = doneStyle.Render("✓") + " " + label
			}
			if len(label) > colWidth {
				label = label[:colWidth-1] + "…"
			}
			if i == b.col && j == b.row {
				label = selectedStyle.Render("> " + label)
			} else {
				label = "  " + label
			}
			body = append(body, label)
		}
		if len(b.columns[i]) == 0 {
			body = append(body, helpStyle.Render("  (empty)"))
		}
		rendered = append(rendered, columnStyle.Width(colWidth).Render(lipgloss.JoinVertical(lipgloss.Left, body...)))
	}
	lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, rendered...))
	lines = append(lines, "")

	if b.commenting {
		prompt := fmt.Sprintf("Comment for move to %s: %s▌", b.pendingTarget, b.comment)
		lines = append(lines, selectedStyle.Render(prompt))
		lines = append(lines, helpStyle.Render("Enter: Submit | Esc: Cancel"))
	} else {
		lines = append(lines, helpStyle.Render("h/l: Column | j/k: Card | R: Reviewed | A: Approve | X: Reject | r: Reload | q: Quit"))
	}
	if b.errorMsg != "" {
		lines = append(lines, errorStyle.Render("Error: "+b.errorMsg))
	}
	if b.notice != "" {
		lines = append(lines, noticeStyle.Render(b.notice))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (b *Board) loadDocuments() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	docs, err := b.client.Documents(ctx)
	if err != nil {
		return errorMsg{error: err}
	}
	return documentsLoadedMsg{docs: docs}
}

func (b *Board) submitMove() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := b.client.Transition(ctx, b.pendingDoc, b.pendingTarget, b.comment); err != nil {
		return errorMsg{error: err}
	}
	return moveDoneMsg{documentID: b.pendingDoc, target: b.pendingTarget}
}

// documentsLoadedMsg signals a finished board reload.
type documentsLoadedMsg struct {
	docs []models.Document
}

// moveDoneMsg signals the server accepted a card move.
type moveDoneMsg struct {
	documentID string
	target     models.WorkflowStatus
}

type errorMsg struct {
	error error
}
