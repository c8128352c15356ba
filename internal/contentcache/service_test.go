package contentcache_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/p-n-ai/pai-drill/internal/content"
	"github.com/p-n-ai/pai-drill/internal/contentcache"
)

func vocabLevels() map[content.Level][]byte {
	return map[content.Level][]byte{
		content.LevelN5: []byte(`[{"jmdict_seq": "1", "kana": "ねこ", "kanji": "猫", "waller_definition": "cat"}]`),
		content.LevelN4: []byte(`[{"jmdict_seq": "2", "kana": "いぬ", "kanji": "犬", "waller_definition": "dog"}]`),
		content.LevelN3: []byte(`[{"jmdict_seq": "3", "kana": "とり", "kanji": "鳥", "waller_definition": "bird"}]`),
		content.LevelN2: []byte(`[{"jmdict_seq": "4", "kana": "うま", "kanji": "馬", "waller_definition": "horse"}]`),
		content.LevelN1: []byte(`[{"jmdict_seq": "5", "kana": "さかな", "kanji": "魚", "waller_definition": "fish"}]`),
	}
}

func newVocabService(t *testing.T, src contentcache.Source, store contentcache.SessionStore[content.Word]) *contentcache.Service[content.Word] {
	t.Helper()
	svc, err := contentcache.New(contentcache.Config[content.Word]{
		Domain:  content.DomainVocabulary,
		Source:  src,
		Decode:  content.DecodeVocabulary,
		Session: store,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return svc
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNew_Validation(t *testing.T) {
	src := contentcache.NewMapSource(nil)
	tests := []struct {
		name string
		cfg  contentcache.Config[content.Word]
	}{
		{"missing source", contentcache.Config[content.Word]{Domain: content.DomainVocabulary, Decode: content.DecodeVocabulary}},
		{"missing decoder", contentcache.Config[content.Word]{Domain: content.DomainVocabulary, Source: src}},
		{"bad domain", contentcache.Config[content.Word]{Domain: "grammar", Source: src, Decode: content.DecodeVocabulary}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := contentcache.New(tt.cfg); err == nil {
				t.Error("New() error = nil, want error")
			}
		})
	}
}

func TestGetByLevel_CachesResult(t *testing.T) {
	src := contentcache.NewMapSource(vocabLevels())
	svc := newVocabService(t, src, nil)
	ctx := t.Context()

	if svc.IsCached(ctx, content.LevelN5) {
		t.Fatal("IsCached() before fetch = true")
	}
	first, err := svc.GetByLevel(ctx, content.LevelN5)
	if err != nil {
		t.Fatalf("GetByLevel() error = %v", err)
	}
	if len(first) != 1 || first[0].Word != "猫" {
		t.Fatalf("GetByLevel() = %+v", first)
	}
	second, err := svc.GetByLevel(ctx, content.LevelN5)
	if err != nil {
		t.Fatalf("second GetByLevel() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("second result = %+v, want %+v", second, first)
	}
	if n := src.Calls(content.LevelN5); n != 1 {
		t.Errorf("fetches = %d, want 1", n)
	}
	if !svc.IsCached(ctx, content.LevelN5) {
		t.Error("IsCached() after fetch = false")
	}
}

func TestGetByLevel_CoalescesConcurrentCallers(t *testing.T) {
	src := contentcache.NewMapSource(vocabLevels())
	svc := newVocabService(t, src, nil)
	release := src.Hold()
	defer release()

	const callers = 10
	results := make([][]content.Word, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = svc.GetByLevel(t.Context(), content.LevelN4)
		}()
	}

	waitFor(t, func() bool { return src.Calls(content.LevelN4) == 1 })
	time.Sleep(20 * time.Millisecond)
	release()
	wg.Wait()

	if n := src.Calls(content.LevelN4); n != 1 {
		t.Errorf("fetches = %d, want 1", n)
	}
	for i := range callers {
		if errs[i] != nil {
			t.Fatalf("caller %d error = %v", i, errs[i])
		}
		if !reflect.DeepEqual(results[i], results[0]) {
			t.Errorf("caller %d got %+v, want %+v", i, results[i], results[0])
		}
	}
}

func TestGetByLevel_FailurePropagatesAndRetries(t *testing.T) {
	src := contentcache.NewMapSource(vocabLevels())
	svc := newVocabService(t, src, nil)
	boom := errors.New("connection reset")
	src.Fail(content.LevelN3, boom)
	release := src.Hold()

	const callers = 3
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.GetByLevel(t.Context(), content.LevelN3)
		}()
	}
	waitFor(t, func() bool { return src.Calls(content.LevelN3) == 1 })
	time.Sleep(20 * time.Millisecond)
	release()
	wg.Wait()

	for i, err := range errs {
		if !errors.Is(err, contentcache.ErrFetch) || !errors.Is(err, boom) {
			t.Errorf("caller %d error = %v, want ErrFetch wrapping cause", i, err)
		}
	}
	if svc.IsCached(t.Context(), content.LevelN3) {
		t.Error("failed level is cached")
	}

	src.Fail(content.LevelN3, nil)
	before := src.Calls(content.LevelN3)
	items, err := svc.GetByLevel(t.Context(), content.LevelN3)
	if err != nil || len(items) != 1 {
		t.Fatalf("retry GetByLevel() = %+v, %v", items, err)
	}
	if n := src.Calls(content.LevelN3); n != before+1 {
		t.Errorf("fetches = %d, want %d", n, before+1)
	}
}

func TestGetByLevel_DecodeFailure(t *testing.T) {
	src := contentcache.NewMapSource(map[content.Level][]byte{content.LevelN5: []byte(`{"not": "a list"}`)})
	svc := newVocabService(t, src, nil)

	_, err := svc.GetByLevel(t.Context(), content.LevelN5)
	if !errors.Is(err, contentcache.ErrFetch) || !errors.Is(err, content.ErrInvalidRecord) {
		t.Errorf("error = %v, want ErrFetch and ErrInvalidRecord", err)
	}
	if svc.IsCached(t.Context(), content.LevelN5) {
		t.Error("undecodable level is cached")
	}
}

func TestGetByLevel_UnknownLevel(t *testing.T) {
	svc := newVocabService(t, contentcache.NewMapSource(vocabLevels()), nil)
	if _, err := svc.GetByLevel(t.Context(), "n9"); !errors.Is(err, contentcache.ErrUnknownLevel) {
		t.Errorf("error = %v, want ErrUnknownLevel", err)
	}
}

func TestGetByLevel_AbandonedCallerStillPopulates(t *testing.T) {
	src := contentcache.NewMapSource(vocabLevels())
	svc := newVocabService(t, src, nil)
	release := src.Hold()

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() {
		_, err := svc.GetByLevel(ctx, content.LevelN2)
		done <- err
	}()
	waitFor(t, func() bool { return src.Calls(content.LevelN2) == 1 })
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("abandoned caller error = %v, want context.Canceled", err)
	}
	release()

	waitFor(t, func() bool { return svc.IsCached(t.Context(), content.LevelN2) })
	if n := src.Calls(content.LevelN2); n != 1 {
		t.Errorf("fetches = %d, want 1", n)
	}
}

func TestClearCache_ForcesRefetch(t *testing.T) {
	src := contentcache.NewMapSource(vocabLevels())
	store := contentcache.NewMemorySessionStore[content.Word]()
	svc := newVocabService(t, src, store)
	ctx := t.Context()

	if _, err := svc.GetByLevel(ctx, content.LevelN1); err != nil {
		t.Fatalf("GetByLevel() error = %v", err)
	}
	if _, ok := store.Snapshot()[content.LevelN1]; !ok {
		t.Error("session store not populated after fetch")
	}
	if err := svc.ClearCache(ctx); err != nil {
		t.Fatalf("ClearCache() error = %v", err)
	}
	if svc.IsCached(ctx, content.LevelN1) || len(store.Snapshot()) != 0 {
		t.Fatal("ClearCache() left entries behind")
	}
	if _, err := svc.GetByLevel(ctx, content.LevelN1); err != nil {
		t.Fatalf("GetByLevel() after clear error = %v", err)
	}
	if n := src.Calls(content.LevelN1); n != 2 {
		t.Errorf("fetches = %d, want 2", n)
	}
}

func TestGetByLevel_SessionStoreFirst(t *testing.T) {
	src := contentcache.NewMapSource(vocabLevels())
	store := contentcache.NewMemorySessionStore[content.Word]()
	seeded := []content.Word{{Word: "空", Reading: "そら", Meanings: []string{"sky"}}}
	store.Set(t.Context(), content.LevelN3, seeded)
	svc := newVocabService(t, src, store)

	got, err := svc.GetByLevel(t.Context(), content.LevelN3)
	if err != nil {
		t.Fatalf("GetByLevel() error = %v", err)
	}
	if !reflect.DeepEqual(got, seeded) {
		t.Errorf("GetByLevel() = %+v, want session copy", got)
	}
	if n := src.Calls(content.LevelN3); n != 0 {
		t.Errorf("fetches = %d, want 0", n)
	}
}

func TestPreloadAll_PartialFailure(t *testing.T) {
	src := contentcache.NewMapSource(vocabLevels())
	src.Fail(content.LevelN2, errors.New("503"))
	svc := newVocabService(t, src, nil)

	err := svc.PreloadAll(t.Context())
	if !errors.Is(err, contentcache.ErrFetch) {
		t.Fatalf("PreloadAll() error = %v, want ErrFetch", err)
	}
	if !strings.Contains(err.Error(), "level n2") {
		t.Errorf("PreloadAll() error = %q, want failing level named", err)
	}

	all := svc.GetAllCached(t.Context())
	if len(all) != 4 {
		t.Errorf("len(GetAllCached()) = %d, want 4", len(all))
	}
	if _, ok := all[content.LevelN2]; ok {
		t.Error("failed level present in GetAllCached()")
	}
	for _, l := range content.Levels() {
		if n := src.Calls(l); n != 1 {
			t.Errorf("fetches of %s = %d, want 1", l, n)
		}
	}
}

func TestPreloadAll_Success(t *testing.T) {
	svc := newVocabService(t, contentcache.NewMapSource(vocabLevels()), nil)
	if err := svc.PreloadAll(t.Context()); err != nil {
		t.Fatalf("PreloadAll() error = %v", err)
	}
	if got := len(svc.GetAllCached(t.Context())); got != 5 {
		t.Errorf("len(GetAllCached()) = %d, want 5", got)
	}
}

func TestLevelPath(t *testing.T) {
	tests := []struct {
		domain content.Domain
		level  content.Level
		want   string
	}{
		{content.DomainKanji, content.LevelN5, "data-kanji/N5.json"},
		{content.DomainVocabulary, content.LevelN3, "data-vocab/n3.json"},
	}
	for _, tt := range tests {
		if got := contentcache.LevelPath(tt.domain, tt.level); got != tt.want {
			t.Errorf("LevelPath(%s, %s) = %q, want %q", tt.domain, tt.level, got, tt.want)
		}
	}
}

func TestHTTPSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data-kanji/N5.json" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id": 1, "kanjiChar": "日", "meanings": ["day"]}]`))
	}))
	defer server.Close()

	src := contentcache.NewHTTPSource(server.URL+"/", contentcache.WithTimeout(time.Second))
	svc, err := contentcache.New(contentcache.Config[content.Kanji]{
		Domain: content.DomainKanji,
		Source: src,
		Decode: content.DecodeKanji,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	items, err := svc.GetByLevel(t.Context(), content.LevelN5)
	if err != nil {
		t.Fatalf("GetByLevel() error = %v", err)
	}
	if len(items) != 1 || items[0].Char != "日" {
		t.Errorf("GetByLevel() = %+v", items)
	}

	if _, err := svc.GetByLevel(t.Context(), content.LevelN4); !errors.Is(err, contentcache.ErrFetch) {
		t.Errorf("missing level error = %v, want ErrFetch", err)
	}
}

func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "data-vocab"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "data-vocab", "n5.json"), vocabLevels()[content.LevelN5], 0o644); err != nil {
		t.Fatal(err)
	}

	src := contentcache.DirSource{Dir: dir}
	data, err := src.Fetch(t.Context(), content.DomainVocabulary, content.LevelN5)
	if err != nil || len(data) == 0 {
		t.Fatalf("Fetch() = %q, %v", data, err)
	}
	if _, err := src.Fetch(t.Context(), content.DomainVocabulary, content.LevelN4); err == nil {
		t.Error("Fetch() of missing file error = nil")
	}
}
