package geminiservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// DefaultCandidates is the ordered list of Gemini models tried when none is configured.
var DefaultCandidates = []string{
	"gemini-1.5-flash-latest",
	"gemini-1.5-pro-latest",
	"gemini-1.5-flash",
	"gemini-1.5-pro",
	"models/gemini-1.5-flash-latest",
	"models/gemini-1.5-pro-latest",
	"models/gemini-1.5-flash",
	"models/gemini-1.5-pro",
}

// ProbeOutcome is the result of probing a single candidate.
type ProbeOutcome int

const (
	OutcomeOK ProbeOutcome = iota
	OutcomeEmpty
	OutcomeUnavailable
	OutcomeForbidden
	OutcomeFailed
)

func (o ProbeOutcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeEmpty:
		return "empty"
	case OutcomeUnavailable:
		return "unavailable"
	case OutcomeForbidden:
		return "forbidden"
	default:
		return "failed"
	}
}

// ProbeResult records one probe attempt.
type ProbeResult struct {
	Candidate string
	Outcome   ProbeOutcome
	Err       error
}

// GenerationResult is the raw text together with the model that produced it.
type GenerationResult struct {
	Text  string
	Model string
}

// ResolvedModel pairs a working candidate with the session it was probed on.
// It belongs to a single request and must be closed by it.
type ResolvedModel struct {
	Model   string
	session Session
}

// Generate sends prompt to the resolved model with its default configuration.
// There is no retry here; candidate fallback only happens during resolution.
func (m *ResolvedModel) Generate(ctx context.Context, prompt string) (GenerationResult, error) {
	text, err := m.session.Generate(ctx, m.Model, prompt, nil)
	if err != nil {
		return GenerationResult{}, &UpstreamError{Model: m.Model, Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return GenerationResult{}, ErrEmptyResponse
	}
	return GenerationResult{Text: text, Model: m.Model}, nil
}

// Close releases the session.
func (m *ResolvedModel) Close() error {
	if m == nil || m.session == nil {
		return nil
	}
	return m.session.Close()
}

// Resolver finds the first candidate that answers a probe for a given credential.
// It keeps no state between calls: every Resolve probes from the top of the list.
type Resolver struct {
	factory    SessionFactory
	candidates []string
}

// NewResolver copies candidates so later changes by the caller have no effect.
func NewResolver(factory SessionFactory, candidates []string) *Resolver {
	list := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c = strings.TrimSpace(c); c != "" {
			list = append(list, c)
		}
	}
	return &Resolver{factory: factory, candidates: list}
}

// Candidates returns a copy of the ordered candidate list.
func (r *Resolver) Candidates() []string {
	return append([]string(nil), r.candidates...)
}

// Resolve opens a session for credential and returns the first candidate whose
// probe yields non-empty text. Candidates after the winner are never contacted.
func (r *Resolver) Resolve(ctx context.Context, logger *zerolog.Logger, credential string) (*ResolvedModel, error) {
	session, err := r.factory.Open(ctx, credential)
	if err != nil {
		return nil, fmt.Errorf("failed to open gemini session: %w", err)
	}

	for _, candidate := range r.candidates {
		logger.Info().Str("model", candidate).Msg("Testing model")

		res := probe(ctx, session, candidate)
		switch res.Outcome {
		case OutcomeOK:
			logger.Info().Str("model", candidate).Msg("Model is working")
			return &ResolvedModel{Model: candidate, session: session}, nil
		case OutcomeEmpty:
			logger.Warn().Str("model", candidate).Msg("Model returned empty response")
		case OutcomeUnavailable:
			logger.Warn().Str("model", candidate).Msg("Model not available (404)")
		case OutcomeForbidden:
			logger.Warn().Str("model", candidate).Msg("Model access denied")
		default:
			logger.Warn().Err(res.Err).Str("model", candidate).Msg("Model failed")
		}

		if ctx.Err() != nil {
			break
		}
	}

	if cerr := session.Close(); cerr != nil {
		logger.Warn().Err(cerr).Msg("Failed to close gemini session")
	}
	return nil, ErrNoWorkingModel
}

func probe(ctx context.Context, session Session, candidate string) ProbeResult {
	text, err := session.Generate(ctx, candidate, probePrompt, probeConfig())
	if err != nil {
		return ProbeResult{Candidate: candidate, Outcome: classify(err), Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return ProbeResult{Candidate: candidate, Outcome: OutcomeEmpty}
	}
	return ProbeResult{Candidate: candidate, Outcome: OutcomeOK}
}
