package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/vbpl/internal/config"
	"github.com/jackzampolin/vbpl/internal/output"
)

var relatedCmd = &cobra.Command{
	Use:   "related <article-id>",
	Short: "Show the stored edges leaving and entering an article",
	Long: `Show the relationships of one stored article. Outgoing edges are the
provisions it amends, replaces, repeals, suspends or implements; incoming
edges are articles of other documents that point at it.

Examples:
  vbpl related 100_3`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svcs, err := openServices(cmd)
		if err != nil {
			return err
		}
		defer svcs.Close()

		rel, err := svcs.Store.Relationships(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return output.Print(rel)
	},
}

var searchK int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Semantic search over stored articles",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svcs, err := openServices(cmd)
		if err != nil {
			return err
		}
		defer svcs.Close()

		embedder, err := svcs.Registry.GetEmbedder(config.EmbedderName)
		if err != nil {
			return fmt.Errorf("embedder: %w", err)
		}
		vecs, err := embedder.Embed(cmd.Context(), []string{strings.Join(args, " ")})
		if err != nil {
			return err
		}
		if len(vecs) != 1 {
			return fmt.Errorf("embedder returned %d vectors", len(vecs))
		}
		results, err := svcs.Store.VectorSearch(cmd.Context(), vecs[0], searchK)
		if err != nil {
			return err
		}
		return output.Print(results)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		svcs, err := openServices(cmd)
		if err != nil {
			return err
		}
		defer svcs.Close()

		stats, err := svcs.Store.Stats(cmd.Context())
		if err != nil {
			return err
		}
		return output.Print(stats)
	},
}

func init() {
	searchCmd.Flags().IntVarP(&searchK, "k", "k", 10, "Number of results")

	rootCmd.AddCommand(relatedCmd, searchCmd, statsCmd)
}
