package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// Connection and output flags shared by every command.
var (
	cfgFile  string
	host     string
	port     int
	jsonOut  bool
	verbose  bool
	user     string
	password string
)

// Version is reported by --version and the server's /health.
var Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "rai",
	Short: "Responsible AI metric server",
	Long: `rai computes performance, fairness and data metrics for a model on its
dataset splits. It runs as an HTTP server that accepts batch computes and
streamed updates, keeps a measurement history and publishes values to Redis
and Prometheus. The client commands query a running server.

Client connection flags default to RAI_HOST, RAI_PORT, RAI_USER and
RAI_PASSWORD when set.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "rai:", err)
		os.Exit(1)
	}
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVarP(&cfgFile, "config", "c", "", "session config file")
	f.StringVar(&host, "host", envOr("RAI_HOST", "localhost"), "server host")
	f.IntVarP(&port, "port", "p", envInt("RAI_PORT", 8080), "server port")
	f.BoolVar(&jsonOut, "json", false, "print JSON instead of tables")
	f.BoolVarP(&verbose, "verbose", "v", false, "log progress of local computes")
	f.StringVar(&user, "user", os.Getenv("RAI_USER"), "basic auth user")
	f.StringVar(&password, "password", os.Getenv("RAI_PASSWORD"), "basic auth password")
}

func SetVersion(v string) {
	Version = v
	rootCmd.Version = v
}

// GetServerURL is the base URL client commands talk to.
func GetServerURL() string {
	return fmt.Sprintf("http://%s:%d", host, port)
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		return n
	}
	return fallback
}
