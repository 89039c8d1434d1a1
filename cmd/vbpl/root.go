package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/vbpl/internal/home"
	"github.com/jackzampolin/vbpl/internal/legal"
	"github.com/jackzampolin/vbpl/internal/output"
	"github.com/jackzampolin/vbpl/internal/svcctx"
	"github.com/jackzampolin/vbpl/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	logLevel     string

	// level is shared by every logger so the configured level can apply
	// after services open.
	level = new(slog.LevelVar)
)

var rootCmd = &cobra.Command{
	Use:   "vbpl",
	Short: "Vietnamese legal document chunker and relationship resolver",
	Long: `vbpl turns crawled Vietnamese legal documents into a structural tree of
chapters, sections, articles and clauses, then asks an LLM which other
provisions each article amends, replaces, repeals, suspends or implements.

The pipeline includes:
  - Unicode and whitespace normalization
  - Prefix-based or LLM-based structural segmentation
  - Stable node identifiers and flattened articles
  - Parallel relationship classification with retries
  - A SQLite graph and vector store for the results`,
	Version:       version.GitRelease,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.vbpl/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "vbpl home directory (default: ~/.vbpl)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "", "log level: debug, info, warn or error (default from config)",
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := output.SetFormat(outputFormat); err != nil {
			return err
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		if logLevel == "" {
			return nil
		}
		return setLevel(logLevel)
	}

	rootCmd.AddCommand(versionCmd)
}

func setLevel(name string) error {
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", name, err)
	}
	return nil
}

// openServices opens the home directory, configuration and store. The
// configured log level applies unless --log-level was given.
func openServices(cmd *cobra.Command) (*svcctx.Services, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}
	svcs, err := svcctx.Open(cmd.Context(), svcctx.OpenOptions{
		Home:       h,
		ConfigFile: cfgFile,
		Logger:     slog.Default(),
	})
	if err != nil {
		return nil, err
	}
	if logLevel == "" {
		if err := setLevel(svcs.Config.Get().Defaults.LogLevel); err != nil {
			svcs.Close()
			return nil, err
		}
	}
	return svcs, nil
}

// readDocument decodes a crawled document from a file, or stdin for "-".
func readDocument(path string) (legal.CrawledDocument, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return legal.CrawledDocument{}, err
		}
		defer f.Close()
		r = f
	}

	var doc legal.CrawledDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return doc, fmt.Errorf("decoding %s: %w", path, err)
	}
	if strings.TrimSpace(doc.DocumentInfo.DocumentID) == "" {
		return doc, fmt.Errorf("%s: document_info.document_id is required", path)
	}
	return doc, nil
}

// writeExport writes v as indented JSON to path.
func writeExport(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := output.To(f, output.FormatJSON, v); err != nil {
		f.Close()
		return err
	}
	slog.Info("exported", "path", path)
	return f.Close()
}
