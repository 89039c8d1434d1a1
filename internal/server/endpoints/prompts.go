package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/vbpl/internal/api"
	"github.com/jackzampolin/vbpl/internal/output"
	"github.com/jackzampolin/vbpl/internal/prompts"
	"github.com/jackzampolin/vbpl/internal/svcctx"
)

// PromptInfo describes an embedded prompt.
type PromptInfo struct {
	Key         string   `json:"key"`
	Description string   `json:"description"`
	Variables   []string `json:"variables,omitempty"`
	Hash        string   `json:"hash"`
}

// PromptsResponse lists embedded prompts.
type PromptsResponse struct {
	Prompts []PromptInfo `json:"prompts"`
}

// OverridesResponse lists prompt overrides.
type OverridesResponse struct {
	Overrides []prompts.Override `json:"overrides"`
}

// SetOverrideRequest is the body of PUT /api/prompts/{key}/overrides/{document_id}.
type SetOverrideRequest struct {
	Text string `json:"text"`
	Note string `json:"note,omitempty"`
}

// ListPromptsEndpoint handles GET /api/prompts.
type ListPromptsEndpoint struct{}

func (e *ListPromptsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/prompts", e.handler
}

func (e *ListPromptsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List prompts
//	@Description	List the built-in prompt templates
//	@Tags			prompts
//	@Produce		json
//	@Success		200	{object}	PromptsResponse
//	@Router			/api/prompts [get]
func (e *ListPromptsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resolver := svcctx.PromptsFrom(r.Context())
	if resolver == nil {
		writeError(w, http.StatusInternalServerError, "prompt resolver not available")
		return
	}

	all := resolver.AllEmbedded()
	resp := PromptsResponse{Prompts: make([]PromptInfo, 0, len(all))}
	for _, p := range all {
		resp.Prompts = append(resp.Prompts, PromptInfo{
			Key:         p.Key,
			Description: p.Description,
			Variables:   p.Variables,
			Hash:        p.Hash,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *ListPromptsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List built-in prompts",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp PromptsResponse
			if err := client.Get(cmd.Context(), "/api/prompts", &resp); err != nil {
				return err
			}
			return output.Print(resp.Prompts)
		},
	}
}

// GetPromptEndpoint handles GET /api/prompts/{key}.
type GetPromptEndpoint struct{}

func (e *GetPromptEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/prompts/{key}", e.handler
}

func (e *GetPromptEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get a prompt
//	@Description	Get the prompt text used for a document, including any override
//	@Tags			prompts
//	@Produce		json
//	@Param			key			path		string	true	"Prompt key"
//	@Param			document_id	query		string	false	"Resolve overrides for this document"
//	@Success		200			{object}	prompts.ResolvedPrompt
//	@Failure		404			{object}	ErrorResponse
//	@Router			/api/prompts/{key} [get]
func (e *GetPromptEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resolver := svcctx.PromptsFrom(r.Context())
	if resolver == nil {
		writeError(w, http.StatusInternalServerError, "prompt resolver not available")
		return
	}

	key := r.PathValue("key")
	if _, ok := resolver.GetEmbedded(key); !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("prompt not found: %s", key))
		return
	}
	resolved, err := resolver.Resolve(r.Context(), key, r.URL.Query().Get("document_id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resolved)
}

func (e *GetPromptEndpoint) Command(getServerURL func() string) *cobra.Command {
	var documentID string
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Show a prompt as resolved for a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			path := "/api/prompts/" + url.PathEscape(args[0])
			if documentID != "" {
				path += "?document_id=" + url.QueryEscape(documentID)
			}
			var resp prompts.ResolvedPrompt
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return output.Print(resp)
		},
	}
	cmd.Flags().StringVar(&documentID, "document-id", "", "Resolve overrides for this document")
	return cmd
}

// ListOverridesEndpoint handles GET /api/prompt-overrides.
type ListOverridesEndpoint struct{}

func (e *ListOverridesEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/prompt-overrides", e.handler
}

func (e *ListOverridesEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List prompt overrides
//	@Description	List per-document prompt overrides
//	@Tags			prompts
//	@Produce		json
//	@Param			document_id	query		string	false	"Only overrides for this document"
//	@Success		200			{object}	OverridesResponse
//	@Failure		500			{object}	ErrorResponse
//	@Router			/api/prompt-overrides [get]
func (e *ListOverridesEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	overrides, err := svcctx.StoreFrom(r.Context()).ListOverrides(r.Context(), r.URL.Query().Get("document_id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if overrides == nil {
		overrides = []prompts.Override{}
	}
	writeJSON(w, http.StatusOK, OverridesResponse{Overrides: overrides})
}

func (e *ListOverridesEndpoint) Command(getServerURL func() string) *cobra.Command {
	var documentID string
	cmd := &cobra.Command{
		Use:   "overrides",
		Short: "List per-document prompt overrides",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			path := "/api/prompt-overrides"
			if documentID != "" {
				path += "?document_id=" + url.QueryEscape(documentID)
			}
			var resp OverridesResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return output.Print(resp.Overrides)
		},
	}
	cmd.Flags().StringVar(&documentID, "document-id", "", "Only overrides for this document")
	return cmd
}

// SetOverrideEndpoint handles PUT /api/prompts/{key}/overrides/{document_id}.
type SetOverrideEndpoint struct{}

func (e *SetOverrideEndpoint) Route() (string, string, http.HandlerFunc) {
	return "PUT", "/api/prompts/{key}/overrides/{document_id}", e.handler
}

func (e *SetOverrideEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Override a prompt
//	@Description	Use custom prompt text when processing one document
//	@Tags			prompts
//	@Accept			json
//	@Produce		json
//	@Param			key			path		string				true	"Prompt key"
//	@Param			document_id	path		string				true	"Document ID"
//	@Param			body		body		SetOverrideRequest	true	"Override text"
//	@Success		200			{object}	prompts.ResolvedPrompt
//	@Failure		400			{object}	ErrorResponse
//	@Failure		404			{object}	ErrorResponse
//	@Failure		500			{object}	ErrorResponse
//	@Router			/api/prompts/{key}/overrides/{document_id} [put]
func (e *SetOverrideEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resolver := svcctx.PromptsFrom(r.Context())
	if resolver == nil {
		writeError(w, http.StatusInternalServerError, "prompt resolver not available")
		return
	}
	key := r.PathValue("key")
	docID := r.PathValue("document_id")
	if _, ok := resolver.GetEmbedded(key); !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("prompt not found: %s", key))
		return
	}

	var req SetOverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	if err := prompts.Validate(req.Text); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := svcctx.StoreFrom(r.Context()).SetOverride(r.Context(), prompts.Override{
		DocumentID: docID,
		PromptKey:  key,
		Text:       req.Text,
		Note:       req.Note,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resolved, err := resolver.Resolve(r.Context(), key, docID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resolved)
}

func (e *SetOverrideEndpoint) Command(getServerURL func() string) *cobra.Command {
	var file, note string
	cmd := &cobra.Command{
		Use:   "override <key> <document-id>",
		Short: "Override a prompt for one document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			client := api.NewClient(getServerURL())
			path := "/api/prompts/" + url.PathEscape(args[0]) + "/overrides/" + url.PathEscape(args[1])
			var resp prompts.ResolvedPrompt
			if err := client.Put(cmd.Context(), path, SetOverrideRequest{Text: string(data), Note: note}, &resp); err != nil {
				return err
			}
			return output.Print(resp)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "File holding the prompt text")
	cmd.Flags().StringVar(&note, "note", "", "Why the override exists")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// ClearOverrideEndpoint handles DELETE /api/prompts/{key}/overrides/{document_id}.
type ClearOverrideEndpoint struct{}

func (e *ClearOverrideEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/prompts/{key}/overrides/{document_id}", e.handler
}

func (e *ClearOverrideEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Clear a prompt override
//	@Description	Return a document to the built-in prompt
//	@Tags			prompts
//	@Param			key			path	string	true	"Prompt key"
//	@Param			document_id	path	string	true	"Document ID"
//	@Success		204
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/prompts/{key}/overrides/{document_id} [delete]
func (e *ClearOverrideEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	err := svcctx.StoreFrom(r.Context()).DeleteOverride(r.Context(), r.PathValue("document_id"), r.PathValue("key"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (e *ClearOverrideEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <key> <document-id>",
		Short: "Remove a document's prompt override",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			path := "/api/prompts/" + url.PathEscape(args[0]) + "/overrides/" + url.PathEscape(args[1])
			if err := client.Delete(cmd.Context(), path); err != nil {
				return err
			}
			fmt.Printf("Cleared %s override for %s\n", args[0], args[1])
			return nil
		},
	}
}
