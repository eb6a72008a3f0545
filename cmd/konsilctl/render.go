package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/kalkwerk/konsil/internal/domain/consult"
	"github.com/kalkwerk/konsil/internal/domain/role"
)

func renderFinal(w io.Writer, out *consult.FinalOutput) {
	if out.RequiresRFI {
		fmt.Fprintln(w, "More information needed before this task can be consulted.")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Missing fields:")
		for _, f := range out.MissingFields {
			fmt.Fprintf(w, "  - %s\n", f)
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Resubmit with --context field=value for each missing field.")
		return
	}

	fmt.Fprintln(w, out.Answer)
	fmt.Fprintln(w)

	cached := ""
	if out.CacheHit {
		cached = "  (cached)"
	}
	fmt.Fprintf(w, "status: %s   tier: %s   confidence: %.2f%s\n", out.Status, out.Tier, out.Confidence, cached)
	fmt.Fprintf(w, "roles: %s\n", strings.Join(out.RolesConsulted, ", "))
	fmt.Fprintf(w, "tokens: %d   time: %.1fs\n", out.TotalTokens, out.ExecutionTimeSeconds)

	if len(out.Conflicts) > 0 {
		fmt.Fprintf(w, "\nConflicts (%d):\n", len(out.Conflicts))
		for _, c := range out.Conflicts {
			fmt.Fprintf(w, "  [%s] %s: %s\n", c.Severity, c.Kind, c.Summary)
		}
	}
	if len(out.Resolutions) > 0 {
		fmt.Fprintln(w, "\nResolutions:")
		for _, r := range out.Resolutions {
			mark := "resolved"
			if !r.Resolved {
				mark = "UNRESOLVED"
			}
			fmt.Fprintf(w, "  [%s] %s: %s\n", mark, r.Policy, r.Rationale)
		}
	}
	if len(out.Warnings) > 0 {
		fmt.Fprintln(w, "\nWarnings:")
		for _, s := range out.Warnings {
			fmt.Fprintf(w, "  - %s\n", s)
		}
	}
	if len(out.CriticalIssues) > 0 {
		fmt.Fprintln(w, "\nCritical issues:")
		for _, s := range out.CriticalIssues {
			fmt.Fprintf(w, "  ! %s\n", s)
		}
	}
	if out.HITLRequired {
		fmt.Fprintln(w, "\nHUMAN REVIEW REQUIRED:")
		for _, s := range out.HITLReasons {
			fmt.Fprintf(w, "  - %s\n", s)
		}
	}
}

func renderClassification(w io.Writer, cls *consult.Classification) {
	fmt.Fprintf(w, "kind:       %s\n", cls.Kind)
	fmt.Fprintf(w, "complexity: %s\n", cls.Complexity)

	domains := make([]string, 0, len(cls.Domains))
	for _, d := range cls.Domains {
		domains = append(domains, string(d))
	}
	fmt.Fprintf(w, "domains:    %s\n", strings.Join(domains, ", "))
	if cls.Overridden {
		fmt.Fprintln(w, "overridden: yes")
	}

	if cls.RequiresRFI {
		fmt.Fprintln(w, "\nMore information needed. Missing fields:")
		for _, f := range cls.MissingFields {
			fmt.Fprintf(w, "  - %s\n", f)
		}
		return
	}

	fmt.Fprintln(w, "\nExecution plan:")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  PRIORITY\tROLE\tREASON")
	for _, r := range cls.Roles {
		fmt.Fprintf(tw, "  %d\t%s\t%s\n", r.Priority, r.RoleID, r.Reason)
	}
	_ = tw.Flush()
}

func renderRoleList(w io.Writer, roles []role.Role) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tDOMAINS\tBUILTIN")
	for i := range roles {
		domains := make([]string, 0, len(roles[i].Domains))
		for _, d := range roles[i].Domains {
			domains = append(domains, string(d))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n",
			roles[i].ID, roles[i].Name, strings.Join(domains, ","), roles[i].Builtin)
	}
	_ = tw.Flush()
}

func renderRole(w io.Writer, rl *role.Role) {
	fmt.Fprintf(w, "id:          %s\n", rl.ID)
	fmt.Fprintf(w, "name:        %s\n", rl.Name)
	fmt.Fprintf(w, "description: %s\n", rl.Description)

	domains := make([]string, 0, len(rl.Domains))
	for _, d := range rl.Domains {
		domains = append(domains, string(d))
	}
	fmt.Fprintf(w, "domains:     %s\n", strings.Join(domains, ", "))

	if len(rl.AuthorityFor) > 0 {
		kinds := make([]string, 0, len(rl.AuthorityFor))
		for _, k := range rl.AuthorityFor {
			kinds = append(kinds, string(k))
		}
		fmt.Fprintf(w, "authority:   %s\n", strings.Join(kinds, ", "))
	}
	fmt.Fprintf(w, "temperature: %.2f\n", rl.Temperature)
	if rl.Timeout > 0 {
		fmt.Fprintf(w, "timeout:     %s\n", rl.Timeout)
	}
	fmt.Fprintf(w, "builtin:     %t\n", rl.Builtin)
	if rl.SystemPrompt != "" {
		fmt.Fprintf(w, "\n%s\n", rl.SystemPrompt)
	}
}

// domainEntry mirrors one element of the /api/v1/domains response.
type domainEntry struct {
	Domain   string   `json:"domain"`
	Keywords []string `json:"keywords"`
}

func renderDomains(w io.Writer, entries []domainEntry) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DOMAIN\tKEYWORDS")
	for _, e := range entries {
		kw := strings.Join(e.Keywords, ", ")
		if len(kw) > 100 {
			kw = kw[:100] + "..."
		}
		fmt.Fprintf(tw, "%s\t%s\n", e.Domain, kw)
	}
	_ = tw.Flush()
}
