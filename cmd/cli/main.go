// Command ct is a CLI client for the carbon tracker API.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
)

const defaultServer = "http://localhost:8080"

var (
	version   = "dev"
	buildDate = "unknown"
)

// ---- token store ----

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	Username    string    `json:"username"`
}

var errNoToken = errors.New("no valid token (run `ct login`)")

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "carbon-tracker")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "carbon-tracker")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func saveToken(tf tokenFile) error {
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(tf, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(tokenPath(), b, 0o600)
}

func loadToken() (string, error) {
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", errNoToken
		}
		return "", err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", fmt.Errorf("token file: %w", err)
	}
	if tf.AccessToken == "" || time.Now().After(tf.ExpiresAt) {
		return "", errNoToken
	}
	return tf.AccessToken, nil
}

// ---- main ----

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:           "ct",
		Short:         "Track your personal carbon footprint",
		Version:       fmt.Sprintf("%s (%s)", version, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := cmd.PersistentFlags()
	pf.StringVar(&a.server, "server", envOr("CT_SERVER", defaultServer), "API base URL (env CT_SERVER)")
	pf.BoolVar(&a.asJSON, "json", false, "print raw JSON responses")
	pf.DurationVar(&a.timeout, "timeout", 30*time.Second, "request timeout")

	cmd.AddCommand(
		a.registerCmd(), a.loginCmd(), a.meCmd(),
		a.logCmd(), a.listCmd(), a.deleteCmd(), a.summaryCmd(), a.reconcileCmd(),
		a.statsCmd(), a.breakdownCmd(), a.leaderboardCmd(), a.averageCmd(),
		factorsCmd(), calcCmd(),
	)
	return cmd
}

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		cmd.PrintErrln("error:", err)
		os.Exit(1)
	}
}
