package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/vbpl/internal/index"
	"github.com/jackzampolin/vbpl/internal/output"
	"github.com/jackzampolin/vbpl/internal/pipeline"
	"github.com/jackzampolin/vbpl/internal/svcctx"
)

var (
	chunkMode     string
	chunkArticles bool
	chunkExport   bool
)

var chunkCmd = &cobra.Command{
	Use:   "chunk <document.json|->",
	Short: "Segment a crawled document into its structural tree",
	Long: `Segment a crawled document without classifying relationships.

The default output is the preamble and the node forest. With --articles the
flattened articles are printed instead.

Examples:
  vbpl chunk doc.json
  vbpl chunk --chunk-mode llm --articles doc.json
  cat doc.json | vbpl chunk -`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := readDocument(args[0])
		if err != nil {
			return err
		}
		svcs, err := openServices(cmd)
		if err != nil {
			return err
		}
		defer svcs.Close()

		p, err := svcs.NewPipeline(svcctx.PipelineOptions{ChunkMode: chunkMode})
		if err != nil {
			return err
		}
		st, err := p.Process(cmd.Context(), doc, pipeline.RunOptions{Until: pipeline.StageFlatten})
		if err != nil {
			return err
		}

		if chunkExport {
			path := svcs.Home.ExportPath(doc.DocumentInfo.DocumentID, "chunks")
			if err := writeExport(path, st.Segmented); err != nil {
				return err
			}
		}
		if chunkArticles {
			return output.Print(st.Articles)
		}
		return output.Print(st.Segmented)
	},
}

var (
	resolveMode    string
	resolveSave    bool
	resolveEmbed   bool
	resolveExport  bool
	resolveResults bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <document.json|->",
	Short: "Segment a document and classify each article's relationships",
	Long: `Run the full pipeline on one crawled document.

The default output is one flat payload per article, the metadata stored
alongside its embedding. With --results the resolver's per-article state,
attempts and corrections are printed instead.

Examples:
  vbpl resolve doc.json
  vbpl resolve --save --embed doc.json
  vbpl resolve --results -o json doc.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := readDocument(args[0])
		if err != nil {
			return err
		}
		svcs, err := openServices(cmd)
		if err != nil {
			return err
		}
		defer svcs.Close()

		p, err := svcs.NewPipeline(svcctx.PipelineOptions{
			ChunkMode: resolveMode,
			Resolve:   true,
			Save:      resolveSave || resolveEmbed,
			Embed:     resolveEmbed,
		})
		if err != nil {
			return err
		}
		st, err := p.Process(cmd.Context(), doc, pipeline.RunOptions{})
		if err != nil {
			return err
		}

		payloads := make([]map[string]any, len(st.Results))
		for i, res := range st.Results {
			payloads[i] = index.Payload(st.Info(), res)
		}
		if resolveExport {
			path := svcs.Home.ExportPath(doc.DocumentInfo.DocumentID, "relations")
			if err := writeExport(path, payloads); err != nil {
				return err
			}
		}
		if resolveResults {
			return output.Print(st.Results)
		}
		return output.Print(payloads)
	},
}

func init() {
	chunkCmd.Flags().StringVar(&chunkMode, "chunk-mode", "", "Segmentation mode: prefix or llm (default from config)")
	chunkCmd.Flags().BoolVar(&chunkArticles, "articles", false, "Print flattened articles instead of the tree")
	chunkCmd.Flags().BoolVar(&chunkExport, "export", false, "Also write the tree to the exports directory")

	resolveCmd.Flags().StringVar(&resolveMode, "chunk-mode", "", "Segmentation mode: prefix or llm (default from config)")
	resolveCmd.Flags().BoolVar(&resolveSave, "save", false, "Store the document, articles and edges")
	resolveCmd.Flags().BoolVar(&resolveEmbed, "embed", false, "Embed articles for vector search (implies --save)")
	resolveCmd.Flags().BoolVar(&resolveExport, "export", false, "Also write the payloads to the exports directory")
	resolveCmd.Flags().BoolVar(&resolveResults, "results", false, "Print resolver results instead of payloads")

	rootCmd.AddCommand(chunkCmd, resolveCmd)
}
