package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haskel/raimetrics/internal/certificate"
)

var certificatesCmd = &cobra.Command{
	Use:   "certificates [name]",
	Short: "Show certificate outcomes",
	Long: `Query the running rai server for the outcome of every certificate, or of
one certificate by name. A certificate is undefined while a metric it
references has no value.

Examples:
  rai certificates
  rai certificates four_fifths_rule`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCertificates,
}

func init() {
	rootCmd.AddCommand(certificatesCmd)
}

func runCertificates(cmd *cobra.Command, args []string) error {
	client := NewClient()

	if len(args) == 1 {
		var resp struct {
			Name string `json:"name"`
			certificate.Value
		}
		if err := client.GetJSON("/v1/certificates/"+args[0], &resp); err != nil {
			return err
		}
		if jsonOut {
			return printJSON(resp)
		}
		fmt.Printf("%s: %s\n  %s\n", resp.Name, certificateState(resp.Value), resp.Explanation)
		return nil
	}

	var values map[string]certificate.Value
	if err := client.GetJSON("/v1/certificates/values", &values); err != nil {
		return fmt.Errorf("failed to get certificates: %w", err)
	}
	var info map[string]certificate.Info
	if err := client.GetJSON("/v1/certificates/info", &info); err != nil {
		return fmt.Errorf("failed to get certificate info: %w", err)
	}

	if jsonOut {
		return printJSON(map[string]any{"values": values, "info": info})
	}
	printCertificates(os.Stdout, values, info)
	return nil
}

func certificateState(v certificate.Value) string {
	switch {
	case v.Value == nil:
		return "undefined"
	case *v.Value:
		return "passed"
	}
	return "failed"
}

// printCertificates lists certificates by level, then name.
func printCertificates(w io.Writer, values map[string]certificate.Value, info map[string]certificate.Info) {
	names := make([]string, 0, len(values))
	for n := range values {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		li, lj := info[names[i]].Level, info[names[j]].Level
		if li != lj {
			return li < lj
		}
		return names[i] < names[j]
	})

	for _, n := range names {
		display := n
		if d := info[n].DisplayName; d != "" {
			display = d
		}
		fmt.Fprintf(w, "%-10s %s\n", strings.ToUpper(certificateState(values[n])), display)
		if c := info[n].Condition; c != "" {
			fmt.Fprintf(w, "           %s\n", c)
		}
	}
}

// summarizeCertificates renders e.g. "3/4 passed, 1 undefined".
func summarizeCertificates(values map[string]certificate.Value) string {
	if len(values) == 0 {
		return "none"
	}
	passed, undefined := 0, 0
	for _, v := range values {
		switch certificateState(v) {
		case "passed":
			passed++
		case "undefined":
			undefined++
		}
	}
	out := fmt.Sprintf("%d/%d passed", passed, len(values))
	if undefined > 0 {
		out += fmt.Sprintf(", %d undefined", undefined)
	}
	return out
}
