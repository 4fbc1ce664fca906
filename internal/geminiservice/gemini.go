package geminiservice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// --- Probe Configuration ---
const (
	probePrompt          = "Test"
	probeMaxOutputTokens = 10
	probeTemperature     = 0.0
)

var (
	// ErrNoWorkingModel is returned when every candidate failed its probe.
	ErrNoWorkingModel = errors.New("No working Gemini model found. Please check your API key and try again.")

	// ErrEmptyResponse is returned when a generation call succeeds but carries no text.
	ErrEmptyResponse = errors.New("No response from AI service")
)

// UpstreamError wraps a transport or SDK failure raised while generating.
type UpstreamError struct {
	Model string
	Err   error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("gemini model %s: %v", e.Model, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// GenerationConfig bounds a single generation call. Nil fields keep the model defaults.
type GenerationConfig struct {
	MaxOutputTokens *int32
	Temperature     *float32
}

// probeConfig is the minimal, deterministic configuration used while probing candidates.
func probeConfig() *GenerationConfig {
	maxTokens := int32(probeMaxOutputTokens)
	temperature := float32(probeTemperature)
	return &GenerationConfig{MaxOutputTokens: &maxTokens, Temperature: &temperature}
}

// Session is an open client bound to one credential.
type Session interface {
	// Generate sends prompt to model and returns the concatenated text parts.
	Generate(ctx context.Context, model, prompt string, cfg *GenerationConfig) (string, error)

	// Close releases the underlying connection.
	Close() error
}

// SessionFactory opens a Session for a credential.
type SessionFactory interface {
	Open(ctx context.Context, credential string) (Session, error)
}

// GenAIFactory opens sessions backed by the official Gemini SDK.
type GenAIFactory struct {
	// Options are appended after the API key, e.g. a custom endpoint in tests.
	Options []option.ClientOption
}

// Open implements SessionFactory.
func (f GenAIFactory) Open(ctx context.Context, credential string) (Session, error) {
	if strings.TrimSpace(credential) == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	opts := append([]option.ClientOption{option.WithAPIKey(credential)}, f.Options...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &genaiSession{client: client}, nil
}

type genaiSession struct {
	client *genai.Client
}

func (s *genaiSession) Generate(ctx context.Context, model, prompt string, cfg *GenerationConfig) (string, error) {
	gm := s.client.GenerativeModel(model)
	if cfg != nil {
		if cfg.MaxOutputTokens != nil {
			gm.SetMaxOutputTokens(*cfg.MaxOutputTokens)
		}
		if cfg.Temperature != nil {
			gm.SetTemperature(*cfg.Temperature)
		}
	}

	resp, err := gm.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	return responseText(resp), nil
}

func (s *genaiSession) Close() error {
	return s.client.Close()
}

// responseText joins the text parts of the first candidate that has content.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		var sb strings.Builder
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
		if sb.Len() > 0 {
			return sb.String()
		}
	}
	return ""
}

// classify maps an SDK error onto a probe outcome. Structured status codes win;
// the message scan catches errors that lost their type on the way up.
func classify(err error) ProbeOutcome {
	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPCode() {
		case http.StatusNotFound:
			return OutcomeUnavailable
		case http.StatusForbidden:
			return OutcomeForbidden
		}
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		switch gErr.Code {
		case http.StatusNotFound:
			return OutcomeUnavailable
		case http.StatusForbidden:
			return OutcomeForbidden
		}
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.NotFound:
			return OutcomeUnavailable
		case codes.PermissionDenied:
			return OutcomeForbidden
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "404") || strings.Contains(msg, "not found"):
		return OutcomeUnavailable
	case strings.Contains(msg, "permission") || strings.Contains(msg, "forbidden"):
		return OutcomeForbidden
	default:
		return OutcomeFailed
	}
}
