package geminiservice

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var testCandidates = []string{"model-a", "model-b", "model-c"}

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func TestResolveReturnsFirstWorkingCandidate(t *testing.T) {
	f := &fakeFactory{probes: map[string]fakeReply{
		"model-a": {err: errors.New("404 model not found")},
		"model-b": {text: "ok"},
		"model-c": {text: "also ok"},
	}}
	r := NewResolver(f, testCandidates)

	model, err := r.Resolve(context.Background(), nopLogger(), "key")
	require.NoError(t, err)
	defer model.Close()

	assert.Equal(t, "model-b", model.Model)
	assert.Equal(t, []string{"probe:model-a", "probe:model-b"}, f.callLog(), "model-c must not be contacted")
}

func TestResolveShortCircuitsOnFirstCandidate(t *testing.T) {
	f := &fakeFactory{probes: map[string]fakeReply{
		"model-a": {text: "Test"},
		"model-b": {text: "Test"},
	}}
	r := NewResolver(f, testCandidates)

	model, err := r.Resolve(context.Background(), nopLogger(), "key")
	require.NoError(t, err)

	assert.Equal(t, "model-a", model.Model)
	assert.Len(t, f.callLog(), 1)
}

func TestResolveAllCandidatesFail(t *testing.T) {
	tests := []struct {
		name   string
		probes map[string]fakeReply
	}{
		{"all not found", map[string]fakeReply{}},
		{"mixed failures", map[string]fakeReply{
			"model-a": {err: &googleapi.Error{Code: 404, Message: "models/model-a is not found"}},
			"model-b": {err: status.Error(codes.PermissionDenied, "denied")},
			"model-c": {err: errors.New("connection reset by peer")},
		}},
		{"empty probes", map[string]fakeReply{
			"model-a": {text: ""},
			"model-b": {text: "   "},
			"model-c": {text: "\n"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeFactory{probes: tt.probes}
			r := NewResolver(f, testCandidates)

			model, err := r.Resolve(context.Background(), nopLogger(), "key")
			assert.Nil(t, model)
			assert.ErrorIs(t, err, ErrNoWorkingModel)
			assert.Len(t, f.callLog(), len(testCandidates))
			assert.Equal(t, 1, f.closed, "session must be released after exhausting candidates")
		})
	}
}

func TestResolveEmptyCandidateList(t *testing.T) {
	f := &fakeFactory{}
	r := NewResolver(f, []string{" ", ""})

	_, err := r.Resolve(context.Background(), nopLogger(), "key")
	assert.ErrorIs(t, err, ErrNoWorkingModel)
	assert.Empty(t, f.callLog())
}

func TestResolveOpenFailure(t *testing.T) {
	f := &fakeFactory{openErr: errors.New("bad transport")}
	r := NewResolver(f, testCandidates)

	_, err := r.Resolve(context.Background(), nopLogger(), "key")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoWorkingModel)
	assert.Contains(t, err.Error(), "bad transport")
}

func TestResolveReprobesEveryCall(t *testing.T) {
	f := &fakeFactory{probes: map[string]fakeReply{"model-a": {text: "ok"}}}
	r := NewResolver(f, testCandidates)

	for i := 0; i < 3; i++ {
		m, err := r.Resolve(context.Background(), nopLogger(), "key")
		require.NoError(t, err)
		require.NoError(t, m.Close())
	}

	assert.Equal(t, 3, f.opened)
	assert.Len(t, f.callLog(), 3)
}

func TestNewResolverCopiesCandidates(t *testing.T) {
	list := []string{"model-a", "model-b"}
	r := NewResolver(&fakeFactory{}, list)
	list[0] = "changed"

	assert.Equal(t, []string{"model-a", "model-b"}, r.Candidates())
}

func TestResolvedModelGenerate(t *testing.T) {
	upstream := errors.New("stream broken")

	tests := []struct {
		name    string
		reply   fakeReply
		want    string
		wantErr error
	}{
		{"text", fakeReply{text: "hello"}, "hello", nil},
		{"empty", fakeReply{text: "  "}, "", ErrEmptyResponse},
		{"upstream", fakeReply{err: upstream}, "", upstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeFactory{answers: map[string]fakeReply{"model-a": tt.reply}}
			session, err := f.Open(context.Background(), "key")
			require.NoError(t, err)
			m := &ResolvedModel{Model: "model-a", session: session}

			res, err := m.Generate(context.Background(), "prompt")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Text)
			assert.Equal(t, "model-a", res.Model)
		})
	}
}

func TestGenerateWrapsUpstreamError(t *testing.T) {
	f := &fakeFactory{answers: map[string]fakeReply{"model-a": {err: errors.New("boom")}}}
	session, _ := f.Open(context.Background(), "key")
	m := &ResolvedModel{Model: "model-a", session: session}

	_, err := m.Generate(context.Background(), "prompt")

	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, "model-a", upErr.Model)
}
