package litellm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kalkwerk/konsil/internal/domain/consult"
)

// fallbackConfidence is assigned when a loosely parsed reply carries no
// usable confidence of its own.
const fallbackConfidence = 0.3

// roleReply is the JSON contract every role is prompted to answer with.
type roleReply struct {
	Narrative      string                  `json:"narrative"`
	Decisions      []consult.DecisionField `json:"decisions"`
	Warnings       []string                `json:"warnings"`
	CriticalIssues []string                `json:"critical_issues"`
	Confidence     *float64                `json:"confidence"`
}

// parseStrict decodes a reply that must be a bare, schema-conforming JSON
// object: no surrounding prose, no unknown fields, confidence present and
// every decision valid.
func parseStrict(content string) (*consult.RoleOutput, error) {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, errors.New("reply is not a bare JSON object")
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(trimmed)))
	dec.DisallowUnknownFields()

	var reply roleReply
	if err := dec.Decode(&reply); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	if dec.More() {
		return nil, errors.New("trailing content after JSON object")
	}
	if reply.Narrative == "" {
		return nil, errors.New("reply without narrative")
	}
	if reply.Confidence == nil {
		return nil, errors.New("reply without confidence")
	}
	for i, d := range reply.Decisions {
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("decision %d: %w", i, err)
		}
	}
	return toOutput(reply), nil
}

// parseLoose salvages a reply that failed the strict parse. It strips
// markdown fences, cuts the first balanced-looking object out of
// surrounding prose, tolerates unknown fields, silently drops invalid
// decisions and substitutes a conservative confidence when none survives.
func parseLoose(content string) (*consult.RoleOutput, error) {
	candidate, ok := extractJSON(content)
	if !ok {
		return nil, errors.New("no JSON object found in reply")
	}

	var reply roleReply
	if err := json.Unmarshal([]byte(candidate), &reply); err != nil {
		return nil, fmt.Errorf("decode salvaged reply: %w", err)
	}

	kept := reply.Decisions[:0]
	for _, d := range reply.Decisions {
		if d.Validate() == nil {
			kept = append(kept, d)
		}
	}
	reply.Decisions = kept

	if reply.Narrative == "" {
		reply.Narrative = strings.TrimSpace(content)
	}
	if reply.Confidence == nil || *reply.Confidence <= 0 || *reply.Confidence > 1 {
		conf := fallbackConfidence
		reply.Confidence = &conf
	}
	return toOutput(reply), nil
}

// toOutput converts a decoded reply into the domain output.
func toOutput(reply roleReply) *consult.RoleOutput {
	out := &consult.RoleOutput{
		Narrative:      reply.Narrative,
		Decisions:      reply.Decisions,
		Warnings:       reply.Warnings,
		CriticalIssues: reply.CriticalIssues,
	}
	if reply.Confidence != nil {
		out.Confidence = *reply.Confidence
	}
	out.ClampConfidence()
	return out
}

// extractJSON pulls a JSON object candidate out of prose or a fenced code
// block. Returns false when the content contains no object at all.
func extractJSON(content string) (string, bool) {
	s := strings.TrimSpace(content)

	// Fenced block first: ```json ... ``` or plain ``` ... ```.
	if idx := strings.Index(s, "```"); idx >= 0 {
		rest := s[idx+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
		}
		if end := strings.Index(rest, "```"); end >= 0 {
			s = strings.TrimSpace(rest[:end])
		}
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// truncate shortens s to at most n runes for log and error payloads.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
