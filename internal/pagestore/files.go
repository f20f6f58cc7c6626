package pagestore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"qmflow/internal/util"

	"github.com/ledongthuc/pdf"
)

// FileStore resolves document binaries, preview images and embedded page text
// under a single data root:
//
//	<root>/documents/<doc-id>/<filename>
//	<root>/previews/<doc-id>/page-<n>.png
//
// Previews are rendered by a neighboring service; this store only retrieves
// them.
type FileStore struct {
	root string
}

func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

func (s *FileStore) DocumentPath(documentID, filename string) string {
	return filepath.Join(s.root, "documents", documentID, filepath.Base(filename))
}

func (s *FileStore) PreviewPath(documentID string, pageNumber int) string {
	return filepath.Join(s.root, "previews", documentID, fmt.Sprintf("page-%d.png", pageNumber))
}

// PageImage returns the rendered preview for a page.
func (s *FileStore) PageImage(documentID string, pageNumber int) ([]byte, error) {
	b, err := os.ReadFile(s.PreviewPath(documentID, pageNumber))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("preview for page %d: %w", pageNumber, util.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read preview: %w", err)
	}
	return b, nil
}

// PageText extracts the embedded text of one page of the stored PDF. Scanned
// documents without a text layer yield an empty string; turning pixels into
// text is the vision path's job, not ours.
func (s *FileStore) PageText(documentID, filename string, pageNumber int) (string, error) {
	path := s.DocumentPath(documentID, filename)
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	if pageNumber < 1 || pageNumber > r.NumPage() {
		return "", fmt.Errorf("page %d of %d: %w", pageNumber, r.NumPage(), util.ErrNotFound)
	}
	p := r.Page(pageNumber)
	if p.V.IsNull() {
		return "", nil
	}
	text, err := p.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("extract page text: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// PageCount reads the page count of a PDF on disk.
func PageCount(path string) (int, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()
	n := r.NumPage()
	if n < 1 {
		return 0, fmt.Errorf("pdf has no pages")
	}
	return n, nil
}
