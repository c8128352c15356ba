package contentcache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/p-n-ai/pai-drill/internal/content"
)

// Source is an idempotent read of one level's raw records.
type Source interface {
	Fetch(ctx context.Context, domain content.Domain, level content.Level) ([]byte, error)
}

// LevelPath is the relative location of a level file:
// data-vocab/n5.json, data-kanji/N5.json.
func LevelPath(domain content.Domain, level content.Level) string {
	switch domain {
	case content.DomainKanji:
		return "data-kanji/" + strings.ToUpper(string(level)) + ".json"
	case content.DomainVocabulary:
		return "data-vocab/" + string(level) + ".json"
	default:
		return "data-" + string(domain) + "/" + string(level) + ".json"
	}
}

// HTTPSource reads level files from a static file server.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

// HTTPOption configures an HTTPSource.
type HTTPOption func(*HTTPSource)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(s *HTTPSource) {
		s.client = client
	}
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) HTTPOption {
	return func(s *HTTPSource) {
		s.client = &http.Client{Timeout: d}
	}
}

// NewHTTPSource creates a source rooted at baseURL.
func NewHTTPSource(baseURL string, opts ...HTTPOption) *HTTPSource {
	s := &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *HTTPSource) Fetch(ctx context.Context, domain content.Domain, level content.Level) ([]byte, error) {
	url := s.baseURL + "/" + LevelPath(domain, level)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s returned status %d", url, resp.StatusCode)
	}
	return body, nil
}

// DirSource reads level files from a local directory laid out like the
// static file server.
type DirSource struct {
	Dir string
}

func (s DirSource) Fetch(_ context.Context, domain content.Domain, level content.Level) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir, filepath.FromSlash(LevelPath(domain, level))))
	if err != nil {
		return nil, fmt.Errorf("reading level file: %w", err)
	}
	return data, nil
}

// MapSource serves levels from memory and counts fetches. Useful for tests.
type MapSource struct {
	mu    sync.Mutex
	data  map[content.Level][]byte
	errs  map[content.Level]error
	calls map[content.Level]int
	gate  chan struct{}
}

// NewMapSource creates a source with the given level payloads.
func NewMapSource(data map[content.Level][]byte) *MapSource {
	return &MapSource{
		data:  data,
		errs:  make(map[content.Level]error),
		calls: make(map[content.Level]int),
	}
}

// Fail makes fetches of level return err until cleared with a nil err.
func (s *MapSource) Fail(level content.Level, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.errs, level)
		return
	}
	s.errs[level] = err
}

// Hold blocks every fetch until the returned release func is called.
func (s *MapSource) Hold() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gate = gate
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.gate = nil
			s.mu.Unlock()
			close(gate)
		})
	}
}

// Calls returns how many fetches were made for level.
func (s *MapSource) Calls(level content.Level) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[level]
}

func (s *MapSource) Fetch(ctx context.Context, _ content.Domain, level content.Level) ([]byte, error) {
	s.mu.Lock()
	s.calls[level]++
	gate := s.gate
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errs[level]; err != nil {
		return nil, err
	}
	data, ok := s.data[level]
	if !ok {
		return nil, fmt.Errorf("level %s not found", level)
	}
	return data, nil
}
