package litellm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kalkwerk/konsil/internal/domain/consult"
	"github.com/kalkwerk/konsil/internal/port/executor"
	"github.com/kalkwerk/konsil/internal/port/knowledge"
)

// priorNarrativeLimit caps how much of each earlier assessment is carried
// into the next role's prompt.
const priorNarrativeLimit = 1200

// outputContract is appended to every system prompt so replies decode into
// the domain output schema.
const outputContract = `Respond with a single JSON object and nothing else. Schema:
{
  "narrative": "your full assessment as prose",
  "decisions": [
    {"kind": "material", "strength_class": "C25/30", "exposure_class": "XC4"},
    {"kind": "cost", "amount": 1234.50, "currency": "EUR", "basis": "what the figure covers"},
    {"kind": "compliance", "verdict": "compliant|conditional|non_compliant", "standard": "EN 1992-1-1"},
    {"kind": "structural", "adequacy": "adequate|reinforcement_required|inadequate", "utilization_pct": 78.5}
  ],
  "warnings": ["recoverable concerns"],
  "critical_issues": ["blocking problems"],
  "confidence": 0.0
}
Only emit decisions of the kinds your role is qualified to make; decisions may be empty.
"confidence" is your own certainty in the assessment, between 0 and 1.`

// Executor invokes consultation roles through the LiteLLM proxy.
type Executor struct {
	client    *Client
	model     string
	maxTokens int
}

// NewExecutor creates a role executor using the given client and model.
func NewExecutor(client *Client, model string, maxTokens int) *Executor {
	return &Executor{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
	}
}

// Invoke runs one role against the task. A reply that fails the strict
// schema parse is re-parsed once in loosened form; only when that also
// fails does the call surface a parsing error.
func (e *Executor) Invoke(ctx context.Context, req executor.Request) (*consult.RoleOutput, error) {
	resp, err := e.client.ChatCompletion(ctx, ChatRequest{
		Model:          e.model,
		Messages:       buildMessages(req),
		Temperature:    req.Role.Temperature,
		MaxTokens:      e.maxTokens,
		ResponseFormat: &ResponseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, &consult.ParsingError{
			RoleID: req.Role.ID,
			Cause:  errors.New("completion without choices"),
		}
	}

	content := resp.Choices[0].Message.Content
	out, perr := parseStrict(content)
	if perr != nil {
		out, perr = parseLoose(content)
		if perr != nil {
			return nil, &consult.ParsingError{
				RoleID: req.Role.ID,
				Raw:    truncate(content, 500),
				Cause:  perr,
			}
		}
		out.FallbackParsed = true
	}

	out.TokensIn = resp.Usage.PromptTokens
	out.TokensOut = resp.Usage.CompletionTokens
	return out, nil
}

// buildMessages assembles the system and user messages for one role call.
func buildMessages(req executor.Request) []ChatMessage {
	system := req.Role.SystemPrompt + "\n\n" + outputContract

	var b strings.Builder
	b.WriteString("## Task\n")
	b.WriteString(sanitizePromptInput(req.Task.Text))
	b.WriteString("\n")

	if len(req.Task.Context) > 0 {
		b.WriteString("\n## Structured context\n")
		keys := make([]string, 0, len(req.Task.Context))
		for k := range req.Task.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %v\n", k, req.Task.Context[k])
		}
	}

	if len(req.Facts) > 0 {
		b.WriteString("\n## Normative facts\n")
		for _, f := range req.Facts {
			writeFact(&b, f)
		}
	}

	if len(req.PriorOutputs) > 0 {
		b.WriteString("\n## Assessments so far (most recent first)\n")
		for _, prior := range req.PriorOutputs {
			writePrior(&b, prior)
		}
	}

	return []ChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: b.String()},
	}
}

func writeFact(b *strings.Builder, f knowledge.Fact) {
	fmt.Fprintf(b, "- [%s] %s: %s", f.Domain, f.Topic, f.Statement)
	if f.Source != "" {
		fmt.Fprintf(b, " (%s)", f.Source)
	}
	b.WriteString("\n")
}

func writePrior(b *strings.Builder, out consult.RoleOutput) {
	fmt.Fprintf(b, "\n### %s (confidence %.2f)\n", out.RoleID, out.Confidence)
	b.WriteString(truncate(out.Narrative, priorNarrativeLimit))
	b.WriteString("\n")
	if len(out.Decisions) > 0 {
		b.WriteString("Decisions: ")
		parts := make([]string, 0, len(out.Decisions))
		for _, d := range out.Decisions {
			parts = append(parts, d.String())
		}
		b.WriteString(strings.Join(parts, "; "))
		b.WriteString("\n")
	}
	for _, w := range out.Warnings {
		fmt.Fprintf(b, "Warning: %s\n", w)
	}
	for _, ci := range out.CriticalIssues {
		fmt.Fprintf(b, "Critical: %s\n", ci)
	}
}

// sanitizePromptInput strips control characters that could break message
// framing. Newlines and tabs stay.
func sanitizePromptInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}
