package geminiservice

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Placeholders used when nothing could be extracted.
const (
	DefaultTechnology   = "Various Technologies"
	DefaultDisplacement = "Multiple Options"
	unknownVehiclePart  = "Unknown"
)

var (
	mpfiPattern         = regexp.MustCompile(`mpfi`)
	injectionPattern    = regexp.MustCompile(`\b(?:e?fi|fuel[\s-]?inject\w*)\b`)
	carburettorPattern  = regexp.MustCompile(`carburett?or`)
	displacementPattern = regexp.MustCompile(`(\d+)\s*cc`)
)

// VehicleInfo is the best-effort structured side channel of an analysis.
type VehicleInfo struct {
	Brand        string `json:"brand"`
	Model        string `json:"model"`
	Year         int    `json:"year"`
	Technology   string `json:"technology"`
	Displacement string `json:"displacement"`
	Age          int    `json:"age"`
}

// ExtractVehicleInfo derives brand and model from the vehicle name and scans the
// generated text for fuel system and displacement hints. It never fails: any
// field it cannot find keeps its placeholder.
func ExtractVehicleInfo(vehicleName string, year, currentYear int, rawText string) VehicleInfo {
	brand, model := splitVehicleName(vehicleName)
	info := VehicleInfo{
		Brand:        titleCase(brand),
		Model:        titleCase(model),
		Year:         year,
		Technology:   DefaultTechnology,
		Displacement: DefaultDisplacement,
		Age:          currentYear - year,
	}

	text := strings.ToLower(rawText)

	// Priority order, not position in the text, decides the label.
	switch {
	case mpfiPattern.MatchString(text):
		info.Technology = "MPFI"
	case injectionPattern.MatchString(text):
		info.Technology = "Fuel Injection"
	case carburettorPattern.MatchString(text):
		info.Technology = "Carburettor"
	}

	if m := displacementPattern.FindStringSubmatch(text); m != nil {
		info.Displacement = m[1] + "cc"
	}

	return info
}

func splitVehicleName(name string) (brand, model string) {
	parts := strings.Fields(name)
	brand, model = unknownVehiclePart, unknownVehiclePart
	if len(parts) > 0 {
		brand = parts[0]
	}
	if len(parts) > 1 {
		model = strings.Join(parts[1:], " ")
	}
	return brand, model
}

/* =================================================================================
							ORCHESTRATION
=================================================================================*/

// ModelResolver yields a model handle owned by the calling request.
type ModelResolver interface {
	Resolve(ctx context.Context, logger *zerolog.Logger, credential string) (*ResolvedModel, error)
}

// AnalysisResult is what an analysis produces before it is wrapped for the client.
type AnalysisResult struct {
	VehicleInfo VehicleInfo
	Summary     string
	Model       string
}

// ChatResult is a generated answer and the model that wrote it.
type ChatResult struct {
	Answer    string
	Model     string
	Timestamp time.Time
}

// Analyzer runs the resolve, prompt, generate and extract pipeline.
type Analyzer struct {
	resolver ModelResolver
	now      func() time.Time
}

// NewAnalyzer builds an Analyzer on top of resolver.
func NewAnalyzer(resolver ModelResolver) *Analyzer {
	return &Analyzer{resolver: resolver, now: time.Now}
}

// Analyze resolves a model for credential, asks it for the ethanol report and
// extracts vehicle details from the answer.
func (a *Analyzer) Analyze(ctx context.Context, logger *zerolog.Logger, credential string, req AnalysisRequest) (*AnalysisResult, error) {
	// 1. Resolve a working model for this credential
	model, err := a.resolver.Resolve(ctx, logger, credential)
	if err != nil {
		return nil, err
	}
	defer closeModel(logger, model)
	logger.Info().Str("model", model.Model).Msg("Using model for analysis")

	// 2. Build the prompt
	prompt := RenderAnalysisPrompt(req)

	// 3. Generate
	result, err := model.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	// 4. Extract, best effort
	info := ExtractVehicleInfo(req.VehicleName, req.Year, a.now().Year(), result.Text)

	return &AnalysisResult{
		VehicleInfo: info,
		Summary:     result.Text,
		Model:       result.Model,
	}, nil
}

// Chat resolves a model for credential and answers a free-form question.
func (a *Analyzer) Chat(ctx context.Context, logger *zerolog.Logger, credential string, req ChatRequest) (*ChatResult, error) {
	model, err := a.resolver.Resolve(ctx, logger, credential)
	if err != nil {
		return nil, err
	}
	defer closeModel(logger, model)
	logger.Info().Str("model", model.Model).Msg("Using model for chat")

	result, err := model.Generate(ctx, RenderChatPrompt(req))
	if err != nil {
		return nil, err
	}

	return &ChatResult{
		Answer:    result.Text,
		Model:     result.Model,
		Timestamp: a.now(),
	}, nil
}

func closeModel(logger *zerolog.Logger, model *ResolvedModel) {
	if err := model.Close(); err != nil {
		logger.Warn().Err(err).Str("model", model.Model).Msg("Failed to close gemini session")
	}
}
