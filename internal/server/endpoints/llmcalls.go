package endpoints

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/vbpl/internal/api"
	"github.com/jackzampolin/vbpl/internal/llmcall"
	"github.com/jackzampolin/vbpl/internal/output"
	"github.com/jackzampolin/vbpl/internal/svcctx"
)

// LLMCallsResponse contains a list of LLM calls.
type LLMCallsResponse struct {
	Calls []llmcall.Call `json:"calls"`
	Total int            `json:"total"`
}

// LLMCallResponse contains a single LLM call.
type LLMCallResponse struct {
	Call  *llmcall.Call `json:"call,omitempty"`
	Error string        `json:"error,omitempty"`
}

// LLMCallCountsResponse contains prompt key counts.
type LLMCallCountsResponse struct {
	Counts map[string]int `json:"counts"`
}

// LLMCallStatsResponse contains per prompt key latency and token stats.
type LLMCallStatsResponse struct {
	Stats map[string]*llmcall.DetailedStats `json:"stats"`
}

// parseFilter reads the shared list/stats query parameters.
func parseFilter(q url.Values) (llmcall.QueryFilter, error) {
	filter := llmcall.QueryFilter{
		DocumentID: q.Get("document_id"),
		ArticleID:  q.Get("article_id"),
		PromptKey:  q.Get("prompt_key"),
		Provider:   q.Get("provider"),
		Model:      q.Get("model"),
	}

	if v := q.Get("success"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return filter, fmt.Errorf("invalid success filter: %q must be true or false", v)
		}
		filter.Success = &b
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return filter, fmt.Errorf("invalid limit: %q must be an integer", v)
		}
		filter.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil {
			return filter, fmt.Errorf("invalid offset: %q must be an integer", v)
		}
		filter.Offset = offset
	}
	if v := q.Get("after"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, fmt.Errorf("invalid after time: %q must be RFC3339 format (e.g., 2024-01-15T00:00:00Z)", v)
		}
		filter.After = &t
	}
	if v := q.Get("before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, fmt.Errorf("invalid before time: %q must be RFC3339 format (e.g., 2024-01-15T00:00:00Z)", v)
		}
		filter.Before = &t
	}
	return filter, nil
}

// ListLLMCallsEndpoint handles GET /api/llmcalls.
type ListLLMCallsEndpoint struct{}

func (e *ListLLMCallsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/llmcalls", e.handler
}

func (e *ListLLMCallsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List LLM calls
//	@Description	Get LLM call history with optional filters
//	@Tags			llmcalls
//	@Produce		json
//	@Param			document_id	query		string	false	"Filter by document ID"
//	@Param			article_id	query		string	false	"Filter by article ID"
//	@Param			prompt_key	query		string	false	"Filter by prompt key"
//	@Param			provider	query		string	false	"Filter by provider"
//	@Param			model		query		string	false	"Filter by model"
//	@Param			success		query		bool	false	"Filter by success status (true or false)"
//	@Param			limit		query		int		false	"Max results (default 100)"
//	@Param			offset		query		int		false	"Result offset"
//	@Param			after		query		string	false	"Filter calls after this RFC3339 timestamp"
//	@Param			before		query		string	false	"Filter calls before this RFC3339 timestamp"
//	@Success		200			{object}	LLMCallsResponse
//	@Failure		400			{object}	ErrorResponse
//	@Failure		500			{object}	ErrorResponse
//	@Router			/api/llmcalls [get]
func (e *ListLLMCallsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.LLMCallStoreFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusInternalServerError, "LLM call store not available")
		return
	}

	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filter.Limit <= 0 {
		filter.Limit = 100
	}

	calls, err := store.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if calls == nil {
		calls = []llmcall.Call{}
	}

	writeJSON(w, http.StatusOK, LLMCallsResponse{
		Calls: calls,
		Total: len(calls),
	})
}

// filterFlags are the CLI flags shared by list and stats.
type filterFlags struct {
	documentID, articleID, promptKey, provider, model string
	successOnly, failedOnly                           bool
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.documentID, "document-id", "", "Filter by document ID")
	cmd.Flags().StringVar(&f.articleID, "article-id", "", "Filter by article ID")
	cmd.Flags().StringVar(&f.promptKey, "prompt-key", "", "Filter by prompt key")
	cmd.Flags().StringVar(&f.provider, "provider", "", "Filter by provider")
	cmd.Flags().StringVar(&f.model, "model", "", "Filter by model")
	cmd.Flags().BoolVar(&f.successOnly, "success", false, "Only successful calls")
	cmd.Flags().BoolVar(&f.failedOnly, "failed", false, "Only failed calls")
}

func (f *filterFlags) values() url.Values {
	params := url.Values{}
	set := func(k, v string) {
		if v != "" {
			params.Set(k, v)
		}
	}
	set("document_id", f.documentID)
	set("article_id", f.articleID)
	set("prompt_key", f.promptKey)
	set("provider", f.provider)
	set("model", f.model)
	if f.successOnly {
		params.Set("success", "true")
	}
	if f.failedOnly {
		params.Set("success", "false")
	}
	return params
}

func withQuery(path string, params url.Values) string {
	if len(params) > 0 {
		return path + "?" + params.Encode()
	}
	return path
}

func (e *ListLLMCallsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var flags filterFlags
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List LLM calls",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			params := flags.values()
			if limit > 0 {
				params.Set("limit", strconv.Itoa(limit))
			}
			if offset > 0 {
				params.Set("offset", strconv.Itoa(offset))
			}

			var resp LLMCallsResponse
			if err := client.Get(cmd.Context(), withQuery("/api/llmcalls", params), &resp); err != nil {
				return err
			}
			return output.Print(resp)
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&limit, "limit", 100, "Max results")
	cmd.Flags().IntVar(&offset, "offset", 0, "Result offset")
	return cmd
}

// GetLLMCallEndpoint handles GET /api/llmcalls/{id}.
type GetLLMCallEndpoint struct{}

func (e *GetLLMCallEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/llmcalls/{id}", e.handler
}

func (e *GetLLMCallEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get an LLM call
//	@Description	Get a single LLM call by ID
//	@Tags			llmcalls
//	@Produce		json
//	@Param			id	path		string	true	"LLM call ID"
//	@Success		200	{object}	LLMCallResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/llmcalls/{id} [get]
func (e *GetLLMCallEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.LLMCallStoreFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusInternalServerError, "LLM call store not available")
		return
	}

	call, err := store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if call == nil {
		writeError(w, http.StatusNotFound, "LLM call not found")
		return
	}

	writeJSON(w, http.StatusOK, LLMCallResponse{Call: call})
}

func (e *GetLLMCallEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get an LLM call by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp LLMCallResponse
			if err := client.Get(cmd.Context(), "/api/llmcalls/"+url.PathEscape(args[0]), &resp); err != nil {
				return err
			}
			return output.Print(resp.Call)
		},
	}
}

// LLMCallCountsEndpoint handles GET /api/llmcalls/counts/{document_id}.
type LLMCallCountsEndpoint struct{}

func (e *LLMCallCountsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/llmcalls/counts/{document_id}", e.handler
}

func (e *LLMCallCountsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get LLM call counts by prompt key
//	@Description	Get count of LLM calls grouped by prompt key for a document
//	@Tags			llmcalls
//	@Produce		json
//	@Param			document_id	path		string	true	"Document ID"
//	@Success		200			{object}	LLMCallCountsResponse
//	@Failure		500			{object}	ErrorResponse
//	@Router			/api/llmcalls/counts/{document_id} [get]
func (e *LLMCallCountsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.LLMCallStoreFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusInternalServerError, "LLM call store not available")
		return
	}

	counts, err := store.CountByPromptKey(r.Context(), r.PathValue("document_id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, LLMCallCountsResponse{Counts: counts})
}

func (e *LLMCallCountsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "counts <document-id>",
		Short: "Get LLM call counts by prompt key for a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp LLMCallCountsResponse
			if err := client.Get(cmd.Context(), "/api/llmcalls/counts/"+url.PathEscape(args[0]), &resp); err != nil {
				return err
			}
			return output.Print(resp.Counts)
		},
	}
}

// LLMCallStatsEndpoint handles GET /api/llmcalls/stats.
type LLMCallStatsEndpoint struct{}

func (e *LLMCallStatsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/llmcalls/stats", e.handler
}

func (e *LLMCallStatsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		LLM call statistics
//	@Description	Latency percentiles and token totals per prompt key
//	@Tags			llmcalls
//	@Produce		json
//	@Param			document_id	query		string	false	"Filter by document ID"
//	@Param			prompt_key	query		string	false	"Filter by prompt key"
//	@Success		200			{object}	LLMCallStatsResponse
//	@Failure		400			{object}	ErrorResponse
//	@Failure		500			{object}	ErrorResponse
//	@Router			/api/llmcalls/stats [get]
func (e *LLMCallStatsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.LLMCallStoreFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusInternalServerError, "LLM call store not available")
		return
	}

	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	stats, err := store.PromptStats(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, LLMCallStatsResponse{Stats: stats})
}

func (e *LLMCallStatsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var flags filterFlags
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Latency and token statistics per prompt key",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp LLMCallStatsResponse
			if err := client.Get(cmd.Context(), withQuery("/api/llmcalls/stats", flags.values()), &resp); err != nil {
				return err
			}
			return output.Print(resp.Stats)
		},
	}
	flags.register(cmd)
	return cmd
}
