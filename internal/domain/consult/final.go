package consult

// Status is the overall health of a synthesized answer.
type Status string

const (
	StatusOK       Status = "ok"
	StatusWarnings Status = "warnings"
	StatusCritical Status = "critical"
)

// FinalOutput is the single synthesized result of a consultation, returned
// to the caller and cached verbatim.
type FinalOutput struct {
	ConsultationID string `json:"consultation_id"`
	Answer         string `json:"answer"`
	Status         Status `json:"status"`

	Complexity Complexity `json:"complexity,omitempty"`
	Domains    []Domain   `json:"domains,omitempty"`

	RolesConsulted []string     `json:"roles_consulted"`
	Conflicts      []Conflict   `json:"conflicts"`
	Resolutions    []Resolution `json:"resolutions"`
	Warnings       []string     `json:"warnings"`
	CriticalIssues []string     `json:"critical_issues"`

	Tier         Tier     `json:"tier,omitempty"`
	HITLRequired bool     `json:"hitl_required"`
	HITLReasons  []string `json:"hitl_reasons,omitempty"`

	RequiresRFI   bool     `json:"requires_rfi,omitempty"`
	MissingFields []string `json:"missing_fields,omitempty"`

	TotalTokens          int64   `json:"total_tokens"`
	ExecutionTimeSeconds float64 `json:"execution_time_seconds"`
	Confidence           float64 `json:"confidence"`
	CacheHit             bool    `json:"cache_hit,omitempty"`
}
