package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/kalkwerk/konsil/internal/domain/consult"
	"github.com/kalkwerk/konsil/internal/domain/role"
)

func consultCmd(opts *options) *cobra.Command {
	var (
		kind       string
		ctxPairs   []string
		complexity string
		roleIDs    []string
	)

	cmd := &cobra.Command{
		Use:   "consult [task text]",
		Short: "Submit a task and print the synthesized answer",
		Long: `Submit a task for a full multi-role consultation.

The task text comes from the arguments, or from stdin when piped.
Context fields are key=value pairs; numbers and booleans are detected.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := buildRequest(args, kind, ctxPairs, complexity, roleIDs)
			if err != nil {
				return err
			}

			data, err := newClient(opts).post(cmd.Context(), "/api/v1/consultations", req)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return printJSON(data)
			}

			var out consult.FinalOutput
			if err := json.Unmarshal(data, &out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			renderFinal(cmd.OutOrStdout(), &out)
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "question", "task kind: question or position_audit")
	cmd.Flags().StringArrayVar(&ctxPairs, "context", nil, "context field as key=value (repeatable)")
	cmd.Flags().StringVar(&complexity, "complexity", "", "override the complexity grade: simple, standard, complex or creative")
	cmd.Flags().StringArrayVar(&roleIDs, "role", nil, "override the role plan with this role, in flag order (repeatable)")
	return cmd
}

func classifyCmd(opts *options) *cobra.Command {
	var (
		kind     string
		ctxPairs []string
	)

	cmd := &cobra.Command{
		Use:   "classify [task text]",
		Short: "Dry-run the classifier without executing any role",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := buildRequest(args, kind, ctxPairs, "", nil)
			if err != nil {
				return err
			}

			data, err := newClient(opts).post(cmd.Context(), "/api/v1/classify", req)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return printJSON(data)
			}

			var cls consult.Classification
			if err := json.Unmarshal(data, &cls); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			renderClassification(cmd.OutOrStdout(), &cls)
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "question", "task kind: question or position_audit")
	cmd.Flags().StringArrayVar(&ctxPairs, "context", nil, "context field as key=value (repeatable)")
	return cmd
}

func rolesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "roles [id]",
		Short: "List the role catalog, or show one role in detail",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(opts)

			if len(args) == 1 {
				data, err := c.get(cmd.Context(), "/api/v1/roles/"+args[0])
				if err != nil {
					return err
				}
				if opts.jsonOut {
					return printJSON(data)
				}
				var rl role.Role
				if err := json.Unmarshal(data, &rl); err != nil {
					return fmt.Errorf("decode response: %w", err)
				}
				renderRole(cmd.OutOrStdout(), &rl)
				return nil
			}

			data, err := c.get(cmd.Context(), "/api/v1/roles")
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return printJSON(data)
			}
			var roles []role.Role
			if err := json.Unmarshal(data, &roles); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			renderRoleList(cmd.OutOrStdout(), roles)
			return nil
		},
	}
}

func domainsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "domains",
		Short: "List the domain vocabulary and its trigger keywords",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := newClient(opts).get(cmd.Context(), "/api/v1/domains")
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return printJSON(data)
			}
			var entries []domainEntry
			if err := json.Unmarshal(data, &entries); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			renderDomains(cmd.OutOrStdout(), entries)
			return nil
		},
	}
}

func healthCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show the server health and its subsystems",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := newClient(opts).get(cmd.Context(), "/health")
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return printJSON(data)
			}
			var h struct {
				Status    string `json:"status"`
				LLM       string `json:"llm"`
				Knowledge string `json:"knowledge"`
				Bus       string `json:"bus"`
				Cache     string `json:"cache"`
			}
			if err := json.Unmarshal(data, &h); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "status:    %s\n", h.Status)
			fmt.Fprintf(w, "llm:       %s\n", h.LLM)
			fmt.Fprintf(w, "knowledge: %s\n", h.Knowledge)
			fmt.Fprintf(w, "bus:       %s\n", h.Bus)
			fmt.Fprintf(w, "cache:     %s\n", h.Cache)

			if h.Status != "ok" {
				return fmt.Errorf("service degraded")
			}
			return nil
		},
	}
}

// buildRequest assembles a CreateRequest from args, flags and, when the
// arguments are empty and stdin is piped, from stdin.
func buildRequest(args []string, kind string, ctxPairs []string, complexity string, roleIDs []string) (*consult.CreateRequest, error) {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" && !term.IsTerminal(int(os.Stdin.Fd())) {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		text = strings.TrimSpace(string(data))
	}
	if text == "" {
		return nil, fmt.Errorf("no task text: pass it as an argument or pipe it on stdin")
	}

	req := &consult.CreateRequest{
		Text: text,
		Kind: consult.Kind(kind),
	}

	if len(ctxPairs) > 0 {
		req.Context = make(map[string]any, len(ctxPairs))
		for _, pair := range ctxPairs {
			key, value, ok := strings.Cut(pair, "=")
			if !ok || key == "" {
				return nil, fmt.Errorf("invalid context field %q: want key=value", pair)
			}
			req.Context[key] = parseContextValue(value)
		}
	}

	if complexity != "" || len(roleIDs) > 0 {
		req.Override = &consult.Override{Complexity: consult.Complexity(complexity)}
		for i, id := range roleIDs {
			req.Override.Roles = append(req.Override.Roles, consult.RoleSpec{
				RoleID:   id,
				Priority: i + 1,
				Reason:   "requested on the command line",
			})
		}
	}
	return req, nil
}

// parseContextValue keeps numbers and booleans typed so audits on numeric
// fields work; everything else stays a string.
func parseContextValue(s string) any {
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
