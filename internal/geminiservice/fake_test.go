package geminiservice

import (
	"context"
	"errors"
	"sync"
)

// fakeReply is what fakeSession returns for one model.
type fakeReply struct {
	text string
	err  error
}

// fakeFactory hands out a fakeSession that answers per model name and records calls.
type fakeFactory struct {
	mu      sync.Mutex
	probes  map[string]fakeReply
	answers map[string]fakeReply
	openErr error

	calls  []string
	opened int
	closed int
}

func (f *fakeFactory) Open(_ context.Context, credential string) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	if credential == "" {
		return nil, errors.New("gemini API key is required")
	}
	f.opened++
	return &fakeSession{f: f}, nil
}

func (f *fakeFactory) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeSession struct {
	f *fakeFactory
}

func (s *fakeSession) Generate(_ context.Context, model, prompt string, cfg *GenerationConfig) (string, error) {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()

	if cfg != nil {
		s.f.calls = append(s.f.calls, "probe:"+model)
		r, ok := s.f.probes[model]
		if !ok {
			return "", errors.New("404 model not found")
		}
		return r.text, r.err
	}

	s.f.calls = append(s.f.calls, "generate:"+model)
	r, ok := s.f.answers[model]
	if !ok {
		return "", errors.New("unexpected generate call")
	}
	return r.text, r.err
}

func (s *fakeSession) Close() error {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	s.f.closed++
	return nil
}
