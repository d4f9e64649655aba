package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultSettleDelay = 500 * time.Millisecond

// InboxWatcher uploads PDFs dropped into a directory as the active document.
type InboxWatcher struct {
	actions    *InboxActions
	ragService RAGService
	logger     *zap.Logger
	settle     time.Duration

	mu       sync.Mutex
	pending  map[string]*time.Timer
	inFlight map[string]bool
}

// NewInboxWatcher creates a watcher. settle is how long a file must stay
// unchanged before it is ingested; zero selects a default.
func NewInboxWatcher(actions *InboxActions, ragService RAGService, settle time.Duration, logger *zap.Logger) *InboxWatcher {
	if settle <= 0 {
		settle = defaultSettleDelay
	}
	return &InboxWatcher{
		actions:    actions,
		ragService: ragService,
		logger:     logger,
		settle:     settle,
		pending:    make(map[string]*time.Timer),
		inFlight:   make(map[string]bool),
	}
}

// WatchDirectory ingests PDFs as they appear in the inbox. It blocks until ctx
// is cancelled.
func (s *InboxWatcher) WatchDirectory(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(s.actions.Dir); err != nil {
		return err
	}
	s.logger.Info("watching inbox", zap.String("dir", s.actions.Dir))

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Dir(event.Name) != s.actions.Dir || !isPDFFilename(event.Name) {
				continue
			}
			// Copies arrive as a Create followed by several Writes; wait for
			// them to stop before reading.
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				s.logger.Debug("inbox event", zap.String("event", event.String()))
				s.schedule(ctx, filepath.Base(event.Name))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("inbox watcher error", zap.Error(err))
		case <-ctx.Done():
			s.stopPending()
			s.logger.Info("inbox watcher stopped")
			return nil
		}
	}
}

// ScanDirectory ingests PDFs already in the inbox, oldest first, so the most
// recently modified one ends up active.
func (s *InboxWatcher) ScanDirectory(ctx context.Context) {
	entries, err := os.ReadDir(s.actions.Dir)
	if err != nil {
		s.logger.Error("could not read inbox", zap.String("dir", s.actions.Dir), zap.Error(err))
		return
	}

	type candidate struct {
		name    string
		modTime time.Time
	}
	var files []candidate
	for _, e := range entries {
		if e.IsDir() || !isPDFFilename(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, candidate{name: e.Name(), modTime: info.ModTime()})
	}
	sort.SliceStable(files, func(i, j int) bool { return files[i].modTime.Before(files[j].modTime) })

	for _, f := range files {
		if ctx.Err() != nil {
			return
		}
		s.ingest(ctx, f.name)
	}
	s.logger.Info("inbox scan finished", zap.Int("files", len(files)))
}

func (s *InboxWatcher) schedule(ctx context.Context, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[name] {
		return // the running upload moves the file when it finishes
	}
	if t, ok := s.pending[name]; ok {
		t.Reset(s.settle)
		return
	}
	s.pending[name] = time.AfterFunc(s.settle, func() {
		s.mu.Lock()
		delete(s.pending, name)
		s.mu.Unlock()
		if ctx.Err() == nil {
			s.ingest(ctx, name)
		}
	})
}

func (s *InboxWatcher) stopPending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, t := range s.pending {
		t.Stop()
		delete(s.pending, name)
	}
}

func (s *InboxWatcher) begin(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[name] {
		return false
	}
	s.inFlight[name] = true
	return true
}

func (s *InboxWatcher) finish(name string) {
	s.mu.Lock()
	delete(s.inFlight, name)
	s.mu.Unlock()
}

func (s *InboxWatcher) ingest(ctx context.Context, name string) {
	if !s.begin(name) {
		return
	}
	defer s.finish(name)
	log := s.logger.With(zap.String("file", name))

	content, err := s.actions.ReadPDF(name)
	if errors.Is(err, os.ErrNotExist) {
		return // already moved by an earlier event
	}
	if err == nil {
		_, err = s.ragService.Upload(ctx, name, content, PDFMimeType)
	}
	if err != nil {
		log.Error("inbox file rejected", zap.Error(err))
		if _, mvErr := s.actions.MarkFailed(name, err); mvErr != nil {
			log.Warn("could not move rejected file", zap.Error(mvErr))
		}
		return
	}

	dest, err := s.actions.MarkProcessed(name)
	if err != nil {
		log.Warn("could not move processed file", zap.Error(err))
		return
	}
	log.Info("inbox file ingested", zap.String("moved_to", dest))
}
