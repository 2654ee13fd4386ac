// Command itgctl drives the API tester from the command line: load specs,
// call endpoints, manage tables and conversion templates. Every invocation
// opens the configured store; the active spec is the newest stored one
// unless --spec names another.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alvera-ai/interoperability-template-generator/config"
	"github.com/alvera-ai/interoperability-template-generator/internal/app"
	"github.com/alvera-ai/interoperability-template-generator/internal/jsonval"
)

const version = "0.1.0"

var (
	rootCmd = &cobra.Command{
		Use:           "itgctl",
		Short:         "OpenAPI endpoint tester and conversion template tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Flags
	specName string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&specName, "spec", "", "Stored spec to activate (default: newest)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// openSession loads configuration and opens the store.
func openSession(ctx context.Context) (*app.Session, func() error, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	return app.Open(ctx, cfg)
}

// withSession runs fn against an opened session. With needSpec the stored
// spec selected by --spec is activated first.
func withSession(cmd *cobra.Command, needSpec bool, fn func(ctx context.Context, s *app.Session) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, closeStore, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if needSpec {
		if _, err := s.ActivateLatest(ctx, specName); err != nil {
			return fmt.Errorf("activating spec: %w", err)
		}
	}
	return fn(ctx, s)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readSource reads a file, or stdin for "-".
func readSource(name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(name)
}

func readJSON(name string) (jsonval.Value, error) {
	raw, err := readSource(name)
	if err != nil {
		return jsonval.Value{}, err
	}
	v, err := jsonval.Parse(raw)
	if err != nil {
		return jsonval.Value{}, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}

// parsePairs turns repeated key=value flags into a map.
func parsePairs(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("expected key=value, got %q", p)
		}
		out[k] = v
	}
	return out, nil
}
