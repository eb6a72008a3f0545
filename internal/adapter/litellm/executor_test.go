package litellm_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kalkwerk/konsil/internal/adapter/litellm"
	"github.com/kalkwerk/konsil/internal/domain/consult"
	"github.com/kalkwerk/konsil/internal/domain/role"
	"github.com/kalkwerk/konsil/internal/port/executor"
	"github.com/kalkwerk/konsil/internal/port/knowledge"
)

func executorRequest() executor.Request {
	return executor.Request{
		Role: &role.Role{
			ID:           "material-specialist",
			Temperature:  0.3,
			SystemPrompt: "You are the materials specialist.",
		},
		Task: consult.Task{
			ID:   "task-1",
			Text: "Which concrete class for the basement walls?",
			Context: map[string]any{
				"exposure_class": "XC2",
			},
		},
		Facts: []knowledge.Fact{
			{Domain: "material", Topic: "exposure", Statement: "XC2 requires at least C16/20", Source: "EN 206"},
		},
		PriorOutputs: []consult.RoleOutput{
			{
				RoleID:     "structural-engineer",
				Narrative:  "Walls carry moderate loads.",
				Confidence: 0.9,
				Decisions: []consult.DecisionField{
					{Kind: consult.DecisionStructural, Structural: &consult.StructuralDecision{Adequacy: consult.AdequacyAdequate}},
				},
			},
		},
	}
}

func proxyReturning(t *testing.T, content string, capture *litellm.ChatRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if capture != nil {
			if err := json.NewDecoder(r.Body).Decode(capture); err != nil {
				t.Errorf("decode proxied request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completionBody(content))
	}))
}

func TestInvoke(t *testing.T) {
	reply := `{"narrative": "C25/30 XC2 is sufficient.", "decisions": [{"kind": "material", "strength_class": "C25/30", "exposure_class": "XC2"}], "warnings": [], "critical_issues": [], "confidence": 0.88}`

	var captured litellm.ChatRequest
	srv := proxyReturning(t, reply, &captured)
	defer srv.Close()

	exec := litellm.NewExecutor(litellm.NewClient(srv.URL, "key"), "openai/gpt-4o", 4096)
	out, err := exec.Invoke(context.Background(), executorRequest())
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}

	if out.Narrative != "C25/30 XC2 is sufficient." {
		t.Errorf("unexpected narrative: %q", out.Narrative)
	}
	if out.Confidence != 0.88 {
		t.Errorf("expected confidence 0.88, got %v", out.Confidence)
	}
	if out.FallbackParsed {
		t.Error("strict reply must not be marked as fallback parsed")
	}
	if out.TokensIn != 120 || out.TokensOut != 80 {
		t.Errorf("expected token usage 120/80, got %d/%d", out.TokensIn, out.TokensOut)
	}

	if captured.Model != "openai/gpt-4o" {
		t.Errorf("unexpected model: %q", captured.Model)
	}
	if captured.Temperature != 0.3 {
		t.Errorf("role temperature should drive the call, got %v", captured.Temperature)
	}
	if captured.ResponseFormat == nil || captured.ResponseFormat.Type != "json_object" {
		t.Errorf("expected json_object response format, got %+v", captured.ResponseFormat)
	}
}

func TestInvokePromptAssembly(t *testing.T) {
	reply := `{"narrative": "ok", "confidence": 0.9}`

	var captured litellm.ChatRequest
	srv := proxyReturning(t, reply, &captured)
	defer srv.Close()

	exec := litellm.NewExecutor(litellm.NewClient(srv.URL, "key"), "openai/gpt-4o", 4096)
	if _, err := exec.Invoke(context.Background(), executorRequest()); err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}

	if len(captured.Messages) != 2 {
		t.Fatalf("expected system+user messages, got %d", len(captured.Messages))
	}

	system := captured.Messages[0]
	if system.Role != "system" {
		t.Fatalf("first message should be system, got %q", system.Role)
	}
	if !strings.Contains(system.Content, "You are the materials specialist.") {
		t.Error("system message should carry the role prompt")
	}
	if !strings.Contains(system.Content, `"confidence"`) {
		t.Error("system message should carry the output schema")
	}

	user := captured.Messages[1]
	if user.Role != "user" {
		t.Fatalf("second message should be user, got %q", user.Role)
	}
	for _, want := range []string{
		"Which concrete class for the basement walls?",
		"exposure_class: XC2",
		"XC2 requires at least C16/20",
		"EN 206",
		"### structural-engineer (confidence 0.90)",
		"Walls carry moderate loads.",
	} {
		if !strings.Contains(user.Content, want) {
			t.Errorf("user message missing %q\n%s", want, user.Content)
		}
	}
}

func TestInvokeFallbackParse(t *testing.T) {
	reply := "Here is my assessment:\n```json\n{\"narrative\": \"fine\", \"confidence\": 0.8}\n```"

	srv := proxyReturning(t, reply, nil)
	defer srv.Close()

	exec := litellm.NewExecutor(litellm.NewClient(srv.URL, "key"), "openai/gpt-4o", 4096)
	out, err := exec.Invoke(context.Background(), executorRequest())
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if !out.FallbackParsed {
		t.Error("fenced reply should be marked as fallback parsed")
	}
	if out.Confidence != 0.8 {
		t.Errorf("expected confidence 0.8, got %v", out.Confidence)
	}
}

func TestInvokeParseFailure(t *testing.T) {
	srv := proxyReturning(t, "I cannot answer in the requested format.", nil)
	defer srv.Close()

	exec := litellm.NewExecutor(litellm.NewClient(srv.URL, "key"), "openai/gpt-4o", 4096)
	_, err := exec.Invoke(context.Background(), executorRequest())
	if err == nil {
		t.Fatal("expected error for unparseable reply")
	}

	var perr *consult.ParsingError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ParsingError, got %T: %v", err, err)
	}
	if perr.RoleID != "material-specialist" {
		t.Errorf("parsing error should name the role, got %q", perr.RoleID)
	}
}

func TestInvokeUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	exec := litellm.NewExecutor(litellm.NewClient(srv.URL, "key"), "openai/gpt-4o", 4096)
	_, err := exec.Invoke(context.Background(), executorRequest())
	if err == nil {
		t.Fatal("expected error from failing upstream")
	}
	var perr *consult.ParsingError
	if errors.As(err, &perr) {
		t.Fatal("transport failures must not be reported as parsing errors")
	}
}
