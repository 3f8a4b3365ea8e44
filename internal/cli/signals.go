package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// stop and reload talk to a local server through its PID file.

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running rai server",
	Long: `Send SIGTERM to the server named in the PID file. The server flushes its
measurement history before exiting; --wait blocks until it has.`,
	RunE: runStop,
}

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Reload the rai server configuration",
	Long: `Send SIGHUP to the server named in the PID file. Auth credentials, rate
limits and the log level are applied without a restart; the dataset and
metric groups are not.

The configuration is validated locally first so a broken file is reported
here rather than only in the server log.`,
	RunE: runReload,
}

var (
	pidFile  string
	stopWait time.Duration
)

func init() {
	for _, c := range []*cobra.Command{stopCmd, reloadCmd} {
		c.Flags().StringVar(&pidFile, "pid-file", "", "PID file path (overrides config)")
		rootCmd.AddCommand(c)
	}
	stopCmd.Flags().DurationVar(&stopWait, "wait", 0, "wait up to this long for the server to exit")
}

func runStop(cmd *cobra.Command, args []string) error {
	pid, err := signalServer(syscall.SIGTERM)
	if err != nil {
		return err
	}

	status := "stopping"
	if stopWait > 0 {
		if err := waitForExit(pid, stopWait); err != nil {
			return err
		}
		status = "stopped"
	}
	return report(status, pid)
}

func runReload(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(); err != nil {
		return fmt.Errorf("not reloading: %w", err)
	}
	pid, err := signalServer(syscall.SIGHUP)
	if err != nil {
		return err
	}
	return report("reload_requested", pid)
}

func report(status string, pid int) error {
	if jsonOut {
		return printJSON(map[string]any{"status": status, "pid": pid})
	}
	fmt.Printf("rai server %d: %s\n", pid, strings.ReplaceAll(status, "_", " "))
	return nil
}

// signalServer sends sig to the process recorded in the PID file.
func signalServer(sig syscall.Signal) (int, error) {
	path := pidFile
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return 0, err
		}
		path = cfg.Server.PIDFile
	}
	if path == "" {
		return 0, errors.New("no PID file configured, use --pid-file")
	}

	pid, err := readPIDFile(path)
	if err != nil {
		return 0, err
	}
	if err := syscall.Kill(pid, sig); err != nil {
		return 0, fmt.Errorf("failed to signal process %d: %w", pid, err)
	}
	return pid, nil
}

// waitForExit polls until pid is gone or timeout passes.
func waitForExit(pid int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if err := syscall.Kill(pid, 0); errors.Is(err, syscall.ESRCH) {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("process %d still running after %s", pid, timeout)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("PID file %s not found, is the server running?", path)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read PID file: %w", err)
	}

	s := strings.TrimSpace(string(data))
	pid, err := strconv.Atoi(s)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid PID %q in %s", s, path)
	}
	return pid, nil
}
