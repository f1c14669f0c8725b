package extractors

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

type fakePDF struct {
	pages     []string
	textErr   map[int]error
	renderErr map[int]error
	countErr  error
	dpis      sync.Map
	paths     sync.Map
}

func (f *fakePDF) PageCount(_ context.Context, path string) (int, error) {
	if _, err := os.Stat(path); err != nil {
		return 0, fmt.Errorf("pdf not materialised: %w", err)
	}
	f.paths.Store(path, true)
	return len(f.pages), f.countErr
}

func (f *fakePDF) PageText(_ context.Context, _ string, page int) (string, error) {
	if err := f.textErr[page]; err != nil {
		return "", err
	}
	return f.pages[page-1], nil
}

func (f *fakePDF) RenderPage(_ context.Context, _ string, page, dpi int, _ string) ([]byte, error) {
	f.dpis.Store(page, dpi)
	if err := f.renderErr[page]; err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("png-of-page-%d", page)), nil
}

// fakeOCR answers from a map keyed by the image bytes.
type fakeOCR struct {
	answers map[string]string
	fail    map[string]error
	calls   atomic.Int32
}

func (f *fakeOCR) Name() string { return "fake" }

func (f *fakeOCR) Recognize(_ context.Context, png []byte) (string, error) {
	f.calls.Add(1)
	if err := f.fail[string(png)]; err != nil {
		return "", err
	}
	return f.answers[string(png)], nil
}

type call struct {
	name string
	args []string
}

// scriptedRunner answers by binary name and records every call.
type scriptedRunner struct {
	mu      sync.Mutex
	calls   []call
	respond func(name string, args []string) ([]byte, []byte, error)
}

func (r *scriptedRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	r.mu.Lock()
	r.calls = append(r.calls, call{name, args})
	r.mu.Unlock()
	return r.respond(name, args)
}

func (r *scriptedRunner) callsTo(name string) []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []call
	for _, c := range r.calls {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}

func hasArg(args []string, want string) bool {
	for _, a := range args {
		if a == want || strings.Contains(a, want) {
			return true
		}
	}
	return false
}

type fakeTranscriber struct {
	text  string
	err   error
	paths []string
}

func (f *fakeTranscriber) Transcribe(_ context.Context, path string) (string, error) {
	f.paths = append(f.paths, path)
	if _, err := os.Stat(path); err != nil {
		return "", errors.New("audio file missing")
	}
	return f.text, f.err
}
