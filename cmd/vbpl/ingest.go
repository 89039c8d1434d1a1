package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/vbpl/internal/output"
	"github.com/jackzampolin/vbpl/internal/pipeline"
	"github.com/jackzampolin/vbpl/internal/server/endpoints"
	"github.com/jackzampolin/vbpl/internal/svcctx"
)

var (
	ingestMode        string
	ingestSkipResolve bool
	ingestEmbed       bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file|dir ...]",
	Short: "Process and store crawled documents",
	Long: `Process crawled documents and store their structure, relationships and
optionally embeddings. Directories are scanned for *.json files. With no
arguments the home data directory is ingested.

A failing document is logged and skipped; the command fails at the end if
any document failed.

Examples:
  vbpl ingest                       # Everything under ~/.vbpl/data
  vbpl ingest crawl/ --embed        # A crawl directory, with embeddings
  vbpl ingest 100.json 101.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svcs, err := openServices(cmd)
		if err != nil {
			return err
		}
		defer svcs.Close()

		if len(args) == 0 {
			args = []string{svcs.Home.DataPath()}
		}
		files, err := collectDocuments(args)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			return fmt.Errorf("no documents found in %v", args)
		}

		p, err := svcs.NewPipeline(svcctx.PipelineOptions{
			ChunkMode: ingestMode,
			Resolve:   !ingestSkipResolve,
			Save:      true,
			Embed:     ingestEmbed,
		})
		if err != nil {
			return err
		}

		var results []endpoints.ProcessResponse
		var failed int
		for _, f := range files {
			if err := cmd.Context().Err(); err != nil {
				return err
			}
			doc, err := readDocument(f)
			if err != nil {
				slog.Error("skipping document", "file", f, "error", err)
				failed++
				continue
			}
			st, err := p.Process(cmd.Context(), doc, pipeline.RunOptions{})
			if err != nil {
				if cmd.Context().Err() != nil {
					return err
				}
				slog.Error("processing failed", "file", f, "document_id", doc.DocumentInfo.DocumentID, "error", err)
				failed++
				continue
			}
			slog.Info("ingested", "document_id", doc.DocumentInfo.DocumentID, "articles", len(st.Articles), "edges", len(st.Edges))
			results = append(results, endpoints.NewProcessResponse(st))
		}

		if err := output.Print(results); err != nil {
			return err
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d documents failed", failed, len(files))
		}
		return nil
	},
}

// collectDocuments expands directories to the *.json files they contain.
func collectDocuments(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && filepath.Ext(path) == ".json" {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)
	return files, nil
}

func init() {
	ingestCmd.Flags().StringVar(&ingestMode, "chunk-mode", "", "Segmentation mode: prefix or llm (default from config)")
	ingestCmd.Flags().BoolVar(&ingestSkipResolve, "skip-resolve", false, "Store the structure without classifying relationships")
	ingestCmd.Flags().BoolVar(&ingestEmbed, "embed", false, "Embed articles for vector search")

	rootCmd.AddCommand(ingestCmd)
}
