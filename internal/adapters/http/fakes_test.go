package httpadapter

import (
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/kirillkom/case-intake/internal/config"
	"github.com/kirillkom/case-intake/internal/core/domain"
	"github.com/kirillkom/case-intake/internal/core/ports"
)

type uploaderFake struct {
	mu     sync.Mutex
	err    error
	bodies map[string]string
	events []ports.ObjectFinalized
}

func (f *uploaderFake) Upload(_ context.Context, processID, fileName, mimeType string, body io.Reader) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if processID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", io.EOF)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bodies == nil {
		f.bodies = map[string]string{}
	}
	f.bodies[fileName] = string(raw)
	return domain.NewDocument(processID, fileName, mimeType, nil), nil
}

func (f *uploaderFake) NotifyObjectFinalized(_ context.Context, event ports.ObjectFinalized) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

type answererFake struct {
	err     error
	answer  *domain.Answer
	gotID   string
	history []domain.ChatTurn
}

func (f *answererFake) Answer(_ context.Context, processID, _ string, history []domain.ChatTurn) (*domain.Answer, error) {
	f.gotID = processID
	f.history = history
	if f.err != nil {
		return nil, f.err
	}
	if f.answer != nil {
		return f.answer, nil
	}
	return &domain.Answer{Text: "ok", Grounded: true}, nil
}

type analyzerFake struct {
	prompt string
}

func (f *analyzerFake) AnalyzeBatch(_ context.Context, _ string, fileNames []string, prompt string) []domain.AnalysisResult {
	f.prompt = prompt
	results := make([]domain.AnalysisResult, len(fileNames))
	for i, name := range fileNames {
		if name == "broken.pdf" {
			results[i] = domain.AnalysisResult{FileName: name, Status: domain.AnalysisError, Message: "extraction failed"}
			continue
		}
		results[i] = domain.AnalysisSucceeded(name, []byte(`{"ok":true}`))
	}
	return results
}

type processesFake struct {
	getErr    error
	removeErr error
	removed   []string
}

func (f *processesFake) GetByID(_ context.Context, processID string) (*domain.Process, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &domain.Process{ID: processID, Status: domain.StatusIndexed}, nil
}

func (f *processesFake) RemoveProcess(_ context.Context, processID string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removed = append(f.removed, processID)
	return nil
}

type routerDeps struct {
	uploader  *uploaderFake
	answerer  *answererFake
	analyzer  *analyzerFake
	processes *processesFake
}

func newTestDeps() *routerDeps {
	return &routerDeps{
		uploader:  &uploaderFake{},
		answerer:  &answererFake{},
		analyzer:  &analyzerFake{},
		processes: &processesFake{},
	}
}

func (d *routerDeps) handler(cfg config.Config) http.Handler {
	return NewRouter(cfg, d.uploader, d.answerer, d.analyzer, d.processes, nil).Handler()
}

func newTestHandler(cfg config.Config) http.Handler {
	return newTestDeps().handler(cfg)
}
