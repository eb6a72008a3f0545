// Command konsilctl is the command line client for the Konsil service. It
// submits consultations, dry-runs the classifier and inspects the role
// catalog over the HTTP API.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// options carries the persistent flags shared by every subcommand.
type options struct {
	server  string
	apiKey  string
	jsonOut bool
	timeout time.Duration
}

func main() {
	if err := newRoot().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRoot() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "konsilctl",
		Short: "Client for the Konsil consultation service",
		Long: `konsilctl talks to a running Konsil server.

Konsil answers construction engineering questions by consulting a roster
of specialist roles (structural, geotechnics, material, building physics,
fire safety, cost) and merging their findings into one consensus-checked
answer.

Examples:
  konsilctl consult "Bodenplatte 20cm C20/25 fuer Einfamilienhaus mit Keller"
  konsilctl consult --kind position_audit --context exposure_class=XC2 "Position 02.05: WU-Beton Bodenplatte"
  cat task.txt | konsilctl consult
  konsilctl classify "Waermedaemmung WLG 035 oder 040 fuer Aussenwand?"
  konsilctl roles
  konsilctl health`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.server, "server", envOr("KONSIL_SERVER", "http://localhost:8080"), "Konsil server base URL")
	root.PersistentFlags().StringVar(&opts.apiKey, "api-key", os.Getenv("KONSIL_API_KEY"), "API key sent with every request")
	root.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "print raw JSON responses")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Minute, "request timeout")

	root.AddCommand(
		consultCmd(opts),
		classifyCmd(opts),
		rolesCmd(opts),
		domainsCmd(opts),
		healthCmd(opts),
	)
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
