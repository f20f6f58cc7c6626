package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"qmflow/internal/models"
	"qmflow/internal/pagestore"
	"qmflow/internal/util"

	"github.com/google/uuid"
)

type DocumentStore interface {
	CreateDocument(ctx context.Context, d models.Document) error
}

// Meta is the caller-supplied classification of an incoming file.
type Meta struct {
	DocumentTypeID   string
	QMChapter        string
	Version          string
	ProcessingMethod models.ProcessingMethod
	InterestGroupIDs []string
}

// Registrar turns an uploaded or inbox-dropped PDF into a draft Document with
// a dense 1-based page sequence. The page sequence is fixed here; later
// processing only updates pages in place.
type Registrar struct {
	store DocumentStore
	files *pagestore.FileStore
}

func NewRegistrar(store DocumentStore, files *pagestore.FileStore) *Registrar {
	return &Registrar{store: store, files: files}
}

func (r *Registrar) Register(ctx context.Context, srcPath string, meta Meta) (models.Document, error) {
	if meta.DocumentTypeID == "" {
		return models.Document{}, fmt.Errorf("document_type_id is required: %w", util.ErrValidation)
	}
	method := meta.ProcessingMethod
	if method == "" {
		method = models.MethodOCR
	}
	if _, ok := models.ParseProcessingMethod(string(method)); !ok {
		return models.Document{}, fmt.Errorf("unknown processing method %q: %w", method, util.ErrValidation)
	}

	info, err := os.Stat(srcPath)
	if err != nil {
		return models.Document{}, fmt.Errorf("stat upload: %w", err)
	}

	documentID := uuid.NewString()
	filename := filepath.Base(srcPath)
	dstPath := r.files.DocumentPath(documentID, filename)
	if err := copyFileAtomic(srcPath, dstPath); err != nil {
		return models.Document{}, err
	}

	count, err := pagestore.PageCount(dstPath)
	if err != nil {
		_ = os.Remove(dstPath)
		return models.Document{}, fmt.Errorf("count pages: %w", err)
	}

	pages := make([]models.Page, 0, count)
	for n := 1; n <= count; n++ {
		pages = append(pages, models.Page{
			PageNumber:       n,
			PreviewImagePath: r.files.PreviewPath(documentID, n),
		})
	}

	doc := models.Document{
		DocumentID:       documentID,
		OriginalFilename: filename,
		DocumentTypeID:   meta.DocumentTypeID,
		QMChapter:        meta.QMChapter,
		Version:          models.NormalizeVersion(meta.Version),
		FileSizeBytes:    info.Size(),
		ProcessingMethod: method,
		WorkflowStatus:   models.StatusDraft,
		Pages:            pages,
		InterestGroupIDs: meta.InterestGroupIDs,
		UploadedAt:       time.Now().UTC(),
	}
	if err := r.store.CreateDocument(ctx, doc); err != nil {
		return models.Document{}, fmt.Errorf("create document: %w", err)
	}
	return doc, nil
}

func copyFileAtomic(src, dst string) error {
	if err := util.EnsureDir(filepath.Dir(dst)); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "ingest-*.pdf")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("copy upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("atomic move upload: %w", err)
	}
	return nil
}
