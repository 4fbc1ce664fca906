package geminiservice

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

/* =================================================================================
							REQUEST DEFINITIONS
=================================================================================*/

// AnalysisRequest carries the vehicle and fuel parameters of one analysis.
type AnalysisRequest struct {
	VehicleName  string
	Year         int
	State        string
	MonthlySpend int
	EthanolBlend string
}

// ChatRequest is a free-form question with optional context from an earlier analysis.
type ChatRequest struct {
	Question string
	Context  ChatContext
}

// ChatContext is the prior analysis the frontend sends back with a question.
// It is free-form JSON; fields of an unexpected shape are treated as absent.
type ChatContext map[string]any

// VehicleInfo returns the "vehicle_info" object, or nil.
func (c ChatContext) VehicleInfo() map[string]any {
	info, _ := c["vehicle_info"].(map[string]any)
	return info
}

// Summary returns "analysis.summary" when it is a string.
func (c ChatContext) Summary() string {
	analysis, _ := c["analysis"].(map[string]any)
	summary, _ := analysis["summary"].(string)
	return summary
}

// contextSummaryLimit is how much of a previous analysis is echoed into a chat prompt.
const contextSummaryLimit = 500

/* =================================================================================
						PROMPT ENGINEERING
=================================================================================*/

/*
AnalysisPromptTemplate asks the model for a section-tagged report. The arguments are:
1 vehicle name, 2 year, 3 state (display form), 4 monthly spend, 5 blend (upper case).
*/
const AnalysisPromptTemplate = `
You are an expert automotive fuel analyst specializing in ethanol blend compatibility for Indian vehicles.

Analyze the ethanol blend impact for this vehicle:
- Vehicle: %[1]s (%[2]d)
- State: %[3]s
- Monthly Fuel Spend: ₹%[4]d
- Ethanol Blend: %[5]s

First, research and identify the technical specifications for this specific vehicle (engine displacement, fuel injection type, vehicle category - car/bike/scooter, etc.).
Think Deeper.
Please provide a comprehensive analysis in this EXACT format:

**COMPATIBILITY RATING: [EXCELLENT/Good/FAIR/POOR]**

**COST IMPACT:**
- Current monthly fuel cost: ₹%[4]d
- With %[5]s: ₹[new_amount] ([savings/additional] ₹[amount])
- Annual impact: ₹[amount] [saved/additional] per year

**PERFORMANCE IMPACT:**
- Fuel efficiency: [specific impact with percentage]
- Power/torque: [specific impact]
- Engine behavior: [specific details]

**TECHNICAL COMPATIBILITY:**
- Engine technology compatibility: [assessment]
- Fuel system compatibility: [assessment]
- Long-term engine health: [assessment]

**REGIONAL CONSIDERATIONS:**
- Ethanol availability in %[3]s: [assessment]
- Local fuel quality: [assessment]
- Climate impact: [assessment]

**KEY RECOMMENDATIONS:**
• [Specific actionable recommendation 1]
• [Specific actionable recommendation 2]
• [Specific actionable recommendation 3]

**PROS & CONS:**
✅ Benefits: [specific benefits for this vehicle]
⚠️ Watch out for: [specific concerns for this vehicle]

**BOTTOM LINE:** [One sentence summary recommendation]

Important guidelines:
1. Be specific to the exact vehicle model and year
2. Consider Indian driving conditions and fuel quality
3. Factor in the vehicle's age and likely condition
4. Provide realistic cost calculations
5. Include warranty considerations if relevant
6. Be practical and actionable in recommendations
`

// ChatPromptTemplate takes the rendered context block and the user's question.
const ChatPromptTemplate = `
You are an expert automotive fuel consultant specializing in ethanol blends for Indian vehicles.

%s

User Question: %s

Please provide a helpful, accurate, and specific answer about ethanol blends, vehicle compatibility, or automotive fuel topics. Keep your response:
1. Practical and actionable
2. Specific to Indian conditions
3. Technically accurate but easy to understand
4. Focused on the user's specific question

Answer:`

const chatContextTemplate = `
Context: The user is asking about their %s %s (%s) in relation to ethanol blends.
Previous Analysis: %s...
`

// RenderAnalysisPrompt fills the analysis template. It has no side effects.
func RenderAnalysisPrompt(req AnalysisRequest) string {
	return fmt.Sprintf(AnalysisPromptTemplate,
		req.VehicleName,
		req.Year,
		DisplayState(req.State),
		req.MonthlySpend,
		strings.ToUpper(req.EthanolBlend),
	)
}

// RenderChatPrompt fills the chat template, adding a context block when the
// request carries vehicle info from an earlier analysis.
func RenderChatPrompt(req ChatRequest) string {
	return fmt.Sprintf(ChatPromptTemplate, renderChatContext(req.Context), req.Question)
}

func renderChatContext(ctx ChatContext) string {
	info := ctx.VehicleInfo()
	if len(info) == 0 {
		return ""
	}
	return fmt.Sprintf(chatContextTemplate,
		infoField(info, "brand"),
		infoField(info, "model"),
		infoField(info, "year"),
		truncateRunes(ctx.Summary(), contextSummaryLimit),
	)
}

func infoField(info map[string]any, key string) string {
	v, ok := info[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}

// DisplayState turns "tamil_nadu" into "Tamil Nadu".
func DisplayState(state string) string {
	return titleCase(strings.ReplaceAll(state, "_", " "))
}

func titleCase(s string) string {
	return cases.Title(language.Und).String(s)
}
