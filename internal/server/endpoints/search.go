package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/vbpl/internal/api"
	"github.com/jackzampolin/vbpl/internal/config"
	"github.com/jackzampolin/vbpl/internal/output"
	"github.com/jackzampolin/vbpl/internal/store"
	"github.com/jackzampolin/vbpl/internal/svcctx"
)

const (
	defaultSearchK = 10
	maxSearchK     = 100
)

// SearchRequest is a semantic article search.
type SearchRequest struct {
	Query string `json:"query"`
	K     int    `json:"k,omitempty"`
}

// SearchResponse holds the nearest articles.
type SearchResponse struct {
	Query   string               `json:"query"`
	Results []store.SearchResult `json:"results"`
}

// SearchEndpoint handles POST /api/search.
type SearchEndpoint struct{}

func (e *SearchEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/search", e.handler
}

func (e *SearchEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Search articles
//	@Description	Embed the query and return the k nearest articles
//	@Tags			search
//	@Accept			json
//	@Produce		json
//	@Param			request	body		SearchRequest	true	"Query"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/api/search [post]
func (e *SearchEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.K <= 0 {
		req.K = defaultSearchK
	}
	if req.K > maxSearchK {
		req.K = maxSearchK
	}

	embedder, err := svcctx.RegistryFrom(r.Context()).GetEmbedder(config.EmbedderName)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	vecs, err := embedder.Embed(r.Context(), []string{req.Query})
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("embedding query: %v", err))
		return
	}
	if len(vecs) != 1 {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("embedder returned %d vectors", len(vecs)))
		return
	}

	results, err := svcctx.StoreFrom(r.Context()).VectorSearch(r.Context(), vecs[0], req.K)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if results == nil {
		results = []store.SearchResult{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Query: req.Query, Results: results})
}

func (e *SearchEndpoint) Command(getServerURL func() string) *cobra.Command {
	var k int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Semantic search over stored articles",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp SearchResponse
			req := SearchRequest{Query: strings.Join(args, " "), K: k}
			if err := client.Post(cmd.Context(), "/api/search", req, &resp); err != nil {
				return err
			}
			return output.Print(resp)
		},
	}
	cmd.Flags().IntVarP(&k, "k", "k", defaultSearchK, "Number of results")
	return cmd
}

// StatsEndpoint handles GET /api/stats.
type StatsEndpoint struct{}

func (e *StatsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/stats", e.handler
}

func (e *StatsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Store statistics
//	@Description	Row counts of documents, articles, edges, embeddings and LLM calls
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	store.Stats
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/stats [get]
func (e *StatsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	stats, err := svcctx.StoreFrom(r.Context()).Stats(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (e *StatsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show store statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var stats store.Stats
			if err := client.Get(cmd.Context(), "/api/stats", &stats); err != nil {
				return err
			}
			return output.Print(stats)
		},
	}
}
