package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/haskel/raimetrics/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or check the session configuration",
	Long: `Print the effective configuration: the --config file over the defaults,
with RAI_* environment overrides applied.

With --validate the configuration is checked and a summary of the session
is printed instead: the dataset splits that will be loaded, the metric
group selection and the certificates that will be evaluated.`,
	RunE: runConfig,
}

var validateOnly bool

func init() {
	configCmd.Flags().BoolVar(&validateOnly, "validate", false, "only validate the config and print a summary")
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		if jsonOut {
			printJSON(map[string]any{"valid": false, "error": err.Error()})
		}
		return err
	}

	if !validateOnly {
		if jsonOut {
			return printJSON(cfg)
		}
		return yaml.NewEncoder(os.Stdout).Encode(cfg)
	}

	summary, err := summarizeConfig(cfg)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(map[string]any{"valid": true, "summary": summary})
	}
	printConfigSummary(os.Stdout, summary)
	return nil
}

// configSummary is what a session built from the config will attempt.
type configSummary struct {
	Session      string   `json:"session"`
	Task         string   `json:"task"`
	Splits       []string `json:"splits"`
	Label        string   `json:"label,omitempty"`
	Groups       []string `json:"groups,omitempty"`
	Pattern      string   `json:"pattern,omitempty"`
	Complexity   string   `json:"max_complexity,omitempty"`
	Fairness     bool     `json:"fairness"`
	Certificates []string `json:"certificates"`
}

func summarizeConfig(cfg *config.Config) (*configSummary, error) {
	certs, err := cfg.CertificateSet()
	if err != nil {
		return nil, err
	}
	complexity, err := cfg.MaxComplexity()
	if err != nil {
		return nil, err
	}

	s := &configSummary{
		Session:      cfg.Session.Name,
		Task:         cfg.Session.Task,
		Label:        cfg.Dataset.Label,
		Groups:       cfg.Session.MetricGroups,
		Pattern:      cfg.Session.MetricGroupPattern,
		Complexity:   complexity.String(),
		Fairness:     cfg.Fairness != nil,
		Certificates: certs.Names(),
	}
	for split := range cfg.Sources() {
		s.Splits = append(s.Splits, string(split))
	}
	sort.Strings(s.Splits)
	return s, nil
}

func printConfigSummary(w io.Writer, s *configSummary) {
	or := func(v, fallback string) string {
		if v == "" {
			return fallback
		}
		return v
	}
	groups := "all compatible"
	if len(s.Groups) > 0 {
		groups = strings.Join(s.Groups, ", ")
	}
	if s.Pattern != "" {
		groups += " matching " + s.Pattern
	}

	fmt.Fprintln(w, "Configuration is valid")
	fmt.Fprintf(w, "  Session:      %s (%s)\n", s.Session, s.Task)
	fmt.Fprintf(w, "  Splits:       %s\n", or(strings.Join(s.Splits, ", "), "none"))
	fmt.Fprintf(w, "  Label:        %s\n", or(s.Label, "-"))
	fmt.Fprintf(w, "  Groups:       %s\n", groups)
	fmt.Fprintf(w, "  Complexity:   %s\n", or(s.Complexity, "unbounded"))
	fmt.Fprintf(w, "  Fairness:     %t\n", s.Fairness)
	fmt.Fprintf(w, "  Certificates: %s\n", or(strings.Join(s.Certificates, ", "), "none"))
}
