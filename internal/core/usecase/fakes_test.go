package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/kirillkom/case-intake/internal/core/domain"
	"github.com/kirillkom/case-intake/internal/core/ports"
)

type statusCall struct {
	processID string
	status    domain.ProcessStatus
	errMsg    string
}

type processRepoFake struct {
	mu          sync.Mutex
	processes   map[string]*domain.Process
	statusCalls []statusCall
	deleted     []string
	ensureErr   error
	statusErr   map[domain.ProcessStatus]error
}

func newProcessRepoFake(ids ...string) *processRepoFake {
	f := &processRepoFake{processes: map[string]*domain.Process{}}
	for _, id := range ids {
		f.processes[id] = &domain.Process{ID: id, Status: domain.StatusUploaded}
	}
	return f
}

func (f *processRepoFake) Ensure(_ context.Context, id string) (*domain.Process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ensureErr != nil {
		return nil, f.ensureErr
	}
	if p, ok := f.processes[id]; ok {
		copyP := *p
		return &copyP, nil
	}
	p := &domain.Process{ID: id, Status: domain.StatusUploaded}
	f.processes[id] = p
	copyP := *p
	return &copyP, nil
}

func (f *processRepoFake) GetByID(_ context.Context, id string) (*domain.Process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.processes[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrProcessNotFound, "get process", fmt.Errorf("id=%s", id))
	}
	copyP := *p
	return &copyP, nil
}

func (f *processRepoFake) UpdateStatus(_ context.Context, id string, status domain.ProcessStatus, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls = append(f.statusCalls, statusCall{processID: id, status: status, errMsg: errMsg})
	if err, ok := f.statusErr[status]; ok {
		return err
	}
	p, ok := f.processes[id]
	if !ok {
		return domain.WrapError(domain.ErrProcessNotFound, "process", fmt.Errorf("id=%s", id))
	}
	p.Status = status
	p.Error = errMsg
	return nil
}

func (f *processRepoFake) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.processes, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *processRepoFake) statuses() []domain.ProcessStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ProcessStatus, 0, len(f.statusCalls))
	for _, c := range f.statusCalls {
		out = append(out, c.status)
	}
	return out
}

type chunkStoreFake struct {
	mu             sync.Mutex
	rows           map[string]domain.Chunk
	replaceErr     error
	fetchErr       error
	deletedDocs    []string
	deletedProcess []string
	fetchedProcess string
}

func newChunkStoreFake() *chunkStoreFake {
	return &chunkStoreFake{rows: map[string]domain.Chunk{}}
}

func (f *chunkStoreFake) ReplaceDocumentChunks(_ context.Context, documentID string, chunks []domain.Chunk) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replaceErr != nil {
		return nil, f.replaceErr
	}
	var previous []string
	for id, c := range f.rows {
		if c.DocumentID == documentID {
			previous = append(previous, id)
			delete(f.rows, id)
		}
	}
	sort.Strings(previous)
	for _, c := range chunks {
		f.rows[c.ID] = c
	}
	return previous, nil
}

func (f *chunkStoreFake) FetchMany(_ context.Context, processID string, ids []string) (map[string]domain.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchedProcess = processID
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	out := map[string]domain.Chunk{}
	for _, id := range ids {
		if c, ok := f.rows[id]; ok && c.ProcessID == processID {
			out[id] = c
		}
	}
	return out, nil
}

func (f *chunkStoreFake) DeleteByDocument(_ context.Context, documentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedDocs = append(f.deletedDocs, documentID)
	for id, c := range f.rows {
		if c.DocumentID == documentID {
			delete(f.rows, id)
		}
	}
	return nil
}

func (f *chunkStoreFake) ListIDsByProcess(_ context.Context, processID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id, c := range f.rows {
		if c.ProcessID == processID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *chunkStoreFake) DeleteByProcess(_ context.Context, processID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedProcess = append(f.deletedProcess, processID)
	for id, c := range f.rows {
		if c.ProcessID == processID {
			delete(f.rows, id)
		}
	}
	return nil
}

func (f *chunkStoreFake) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

// extractorFake returns text keyed by file name; unknown files yield WasEmpty.
type extractorFake struct {
	mu    sync.Mutex
	texts map[string]string
	errs  map[string]error
	seen  []domain.Document
}

func (f *extractorFake) Extract(_ context.Context, doc *domain.Document) (domain.ExtractionResult, error) {
	f.mu.Lock()
	f.seen = append(f.seen, *doc)
	f.mu.Unlock()
	if err, ok := f.errs[doc.FileName]; ok {
		return domain.ExtractionResult{}, domain.WrapError(domain.ErrExtractionFailed, "extract", err)
	}
	text, ok := f.texts[doc.FileName]
	if !ok || strings.TrimSpace(text) == "" {
		return domain.ExtractionResult{Source: domain.ExtractionNone, WasEmpty: true}, nil
	}
	return domain.ExtractionResult{Text: text, Source: domain.ExtractionTextLayer}, nil
}

// embedderFake returns a deterministic vector per text: {len(text), first rune}.
type embedderFake struct {
	mu     sync.Mutex
	calls  int
	drop   int
	err    error
	inputs [][]string
}

func vectorFor(text string) []float32 {
	var first float32
	for _, r := range text {
		first = float32(r)
		break
	}
	return []float32{float32(len([]rune(text))), first}
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.inputs = append(f.inputs, texts)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		out = append(out, vectorFor(t))
	}
	return out[:len(out)-min(f.drop, len(out))], nil
}

func (f *embedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return vectorFor(text), nil
}

type vectorIndexFake struct {
	mu        sync.Mutex
	points    map[string][]float32
	process   map[string]string
	neighbors []domain.Neighbor
	upsertErr error
	queryErr  error
	deleteErr error
	deleted   []string
	queries   int
	lastLimit int
}

func newVectorIndexFake() *vectorIndexFake {
	return &vectorIndexFake{points: map[string][]float32{}, process: map[string]string{}}
}

func (f *vectorIndexFake) Upsert(_ context.Context, processID string, points []domain.VectorPoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	for _, p := range points {
		f.points[p.ID] = p.Vector
		f.process[p.ID] = processID
	}
	return nil
}

func (f *vectorIndexFake) Query(_ context.Context, _ string, _ []float32, limit int) ([]domain.Neighbor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	f.lastLimit = limit
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.neighbors, nil
}

func (f *vectorIndexFake) Delete(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, ids...)
	for _, id := range ids {
		delete(f.points, id)
		delete(f.process, id)
	}
	return nil
}

func (f *vectorIndexFake) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.points)
}

type generatorFake struct {
	mu       sync.Mutex
	requests []domain.GenerationRequest
	reply    func(domain.GenerationRequest) (string, error)
}

func (f *generatorFake) Generate(_ context.Context, req domain.GenerationRequest) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.reply == nil {
		return "generated", nil
	}
	return f.reply(req)
}

func (f *generatorFake) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type storageFake struct {
	mu            sync.Mutex
	files         map[string]string
	saveErr       error
	deletedPrefix []string
}

func newStorageFake() *storageFake {
	return &storageFake{files: map[string]string{}}
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[key] = string(raw)
	return nil
}

func (f *storageFake) Open(_ context.Context, _, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.files[key]
	if !ok {
		return nil, errors.New("object not found: " + key)
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func (f *storageFake) DeletePrefix(_ context.Context, prefix string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedPrefix = append(f.deletedPrefix, prefix)
	for key := range f.files {
		if strings.HasPrefix(key, prefix+"/") {
			delete(f.files, key)
		}
	}
	return nil
}

type queueFake struct {
	events []ports.ObjectFinalized
	err    error
}

func (f *queueFake) PublishObjectFinalized(_ context.Context, event ports.ObjectFinalized) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func (f *queueFake) SubscribeObjectFinalized(context.Context, func(context.Context, ports.ObjectFinalized) error) error {
	return nil
}

type analysisRepoFake struct {
	mu      sync.Mutex
	saved   []domain.DocumentAnalysis
	deleted []string
	saveErr error
}

func (f *analysisRepoFake) SaveAnalysis(_ context.Context, a *domain.DocumentAnalysis) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, *a)
	return nil
}

func (f *analysisRepoFake) DeleteByProcess(_ context.Context, processID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, processID)
	return nil
}
