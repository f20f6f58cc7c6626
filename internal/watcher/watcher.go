// Package watcher monitors an inbox directory and registers every PDF dropped
// into it. Filenames follow <type>__<chapter>__<version>__<name>.pdf; files
// that do not parse get sensible defaults instead of being skipped.
package watcher

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"qmflow/internal/ingest"
	"qmflow/internal/models"

	"github.com/fsnotify/fsnotify"
)

type Watcher struct {
	registrar *ingest.Registrar
	inbox     string
	fs        *fsnotify.Watcher

	// settle is how long a file must sit untouched before registration, so a
	// PDF still being copied in is not read half-written.
	settle time.Duration
}

func New(registrar *ingest.Registrar, inbox string) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	return &Watcher{
		registrar: registrar,
		inbox:     inbox,
		fs:        fs,
		settle:    2 * time.Second,
	}, nil
}

func (w *Watcher) Close() error {
	return w.fs.Close()
}

// Run blocks until ctx is done, registering each new PDF in the inbox.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.fs.Add(w.inbox); err != nil {
		return fmt.Errorf("watch %s: %w", w.inbox, err)
	}
	log.Printf("watching inbox %s", w.inbox)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create != fsnotify.Create {
				continue
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".pdf") {
				continue
			}
			go w.register(ctx, event.Name)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			log.Printf("watcher error: %v", err)
		}
	}
}

func (w *Watcher) register(ctx context.Context, path string) {
	select {
	case <-time.After(w.settle):
	case <-ctx.Done():
		return
	}
	doc, err := w.registrar.Register(ctx, path, metaFromFilename(path))
	if err != nil {
		log.Printf("register %s: %v", filepath.Base(path), err)
		return
	}
	log.Printf("registered %s as document %s (%d pages)", filepath.Base(path), doc.DocumentID, len(doc.Pages))
}

// metaFromFilename parses the inbox naming convention. Missing segments fall
// back to document type "sop", OCR processing and version v1.
func metaFromFilename(path string) ingest.Meta {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	meta := ingest.Meta{
		DocumentTypeID:   "sop",
		ProcessingMethod: models.MethodOCR,
		Version:          "v1",
	}
	parts := strings.SplitN(name, "__", 4)
	if len(parts) < 4 {
		return meta
	}
	if t := strings.TrimSpace(parts[0]); t != "" {
		meta.DocumentTypeID = t
	}
	meta.QMChapter = strings.TrimSpace(parts[1])
	meta.Version = models.NormalizeVersion(parts[2])
	return meta
}
