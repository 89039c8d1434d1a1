package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/vbpl/internal/api"
	"github.com/jackzampolin/vbpl/internal/config"
	"github.com/jackzampolin/vbpl/internal/legal"
	"github.com/jackzampolin/vbpl/internal/output"
	"github.com/jackzampolin/vbpl/internal/pipeline"
	"github.com/jackzampolin/vbpl/internal/relation"
	"github.com/jackzampolin/vbpl/internal/store"
	"github.com/jackzampolin/vbpl/internal/svcctx"
)

// ProcessRequest is the request body for processing a crawled document.
type ProcessRequest struct {
	Document    legal.CrawledDocument `json:"document"`
	ChunkMode   string                `json:"chunk_mode,omitempty"` // prefix or llm; config default when empty
	SkipResolve bool                  `json:"skip_resolve,omitempty"`
	Embed       bool                  `json:"embed,omitempty"`
	Until       string                `json:"until,omitempty"`
}

// ProcessResponse summarizes a processed document.
type ProcessResponse struct {
	DocumentID string         `json:"document_id"`
	ChunkMode  string         `json:"chunk_mode"`
	Completed  []string       `json:"completed"`
	Skipped    []string       `json:"skipped,omitempty"`
	Articles   int            `json:"articles"`
	States     map[string]int `json:"states"`
	Edges      int            `json:"edges"`
	Embedded   int            `json:"embedded"`
}

// NewProcessResponse summarizes a pipeline state.
func NewProcessResponse(st *pipeline.State) ProcessResponse {
	return ProcessResponse{
		DocumentID: st.Info().DocumentID,
		ChunkMode:  st.ChunkMode,
		Completed:  st.Completed,
		Skipped:    st.Skipped,
		Articles:   len(st.Articles),
		States:     st.Summary(),
		Edges:      len(st.Edges),
		Embedded:   st.Embedded,
	}
}

// ProcessDocumentEndpoint handles POST /api/documents.
type ProcessDocumentEndpoint struct{}

func (e *ProcessDocumentEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/documents", e.handler
}

func (e *ProcessDocumentEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Process a document
//	@Description	Segment, resolve and store a crawled document. Runs synchronously.
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			request	body		ProcessRequest	true	"Crawled document and options"
//	@Success		200		{object}	ProcessResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		502		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/api/documents [post]
func (e *ProcessDocumentEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Document.DocumentInfo.DocumentID == "" {
		writeError(w, http.StatusBadRequest, "document.document_info.document_id is required")
		return
	}
	switch req.ChunkMode {
	case "", config.ChunkModePrefix, config.ChunkModeLLM:
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid chunk_mode %q", req.ChunkMode))
		return
	}

	svcs := svcctx.ServicesFrom(r.Context())
	p, err := svcs.NewPipeline(svcctx.PipelineOptions{
		ChunkMode: req.ChunkMode,
		Resolve:   !req.SkipResolve,
		Save:      true,
		Embed:     req.Embed,
	})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	st, err := p.Process(r.Context(), req.Document, pipeline.RunOptions{Until: req.Until})
	if err != nil {
		switch {
		case errors.Is(err, pipeline.ErrStageNotFound):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, relation.ErrClassifierUnavailable):
			writeError(w, http.StatusBadGateway, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, NewProcessResponse(st))
}

func (e *ProcessDocumentEndpoint) Command(getServerURL func() string) *cobra.Command {
	var req ProcessRequest
	cmd := &cobra.Command{
		Use:   "process <document.json>",
		Short: "Process a crawled document on the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if err := json.Unmarshal(data, &req.Document); err != nil {
				return fmt.Errorf("decoding %s: %w", args[0], err)
			}

			client := api.NewClient(getServerURL())
			var resp ProcessResponse
			if err := client.Post(cmd.Context(), "/api/documents", req, &resp); err != nil {
				return err
			}
			return output.Print(resp)
		},
	}
	cmd.Flags().StringVar(&req.ChunkMode, "chunk-mode", "", "Segmentation mode: prefix or llm (default from config)")
	cmd.Flags().BoolVar(&req.SkipResolve, "skip-resolve", false, "Store the structure without classifying relationships")
	cmd.Flags().BoolVar(&req.Embed, "embed", false, "Embed articles for vector search")
	cmd.Flags().StringVar(&req.Until, "until", "", "Stop after this stage")
	return cmd
}

// DocumentsResponse lists stored documents.
type DocumentsResponse struct {
	Documents []store.DocumentRecord `json:"documents"`
	Total     int                    `json:"total"`
}

// ListDocumentsEndpoint handles GET /api/documents.
type ListDocumentsEndpoint struct{}

func (e *ListDocumentsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/documents", e.handler
}

func (e *ListDocumentsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List documents
//	@Description	List stored documents without their structure
//	@Tags			documents
//	@Produce		json
//	@Success		200	{object}	DocumentsResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/documents [get]
func (e *ListDocumentsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	docs, err := svcctx.StoreFrom(r.Context()).ListDocuments(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if docs == nil {
		docs = []store.DocumentRecord{}
	}
	writeJSON(w, http.StatusOK, DocumentsResponse{Documents: docs, Total: len(docs)})
}

func (e *ListDocumentsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp DocumentsResponse
			if err := client.Get(cmd.Context(), "/api/documents", &resp); err != nil {
				return err
			}
			return output.Print(resp)
		},
	}
}

// GetDocumentEndpoint handles GET /api/documents/{id}.
type GetDocumentEndpoint struct{}

func (e *GetDocumentEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/documents/{id}", e.handler
}

func (e *GetDocumentEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get a document
//	@Description	Get a stored document with its structural forest
//	@Tags			documents
//	@Produce		json
//	@Param			id	path		string	true	"Document ID"
//	@Success		200	{object}	store.DocumentRecord
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/documents/{id} [get]
func (e *GetDocumentEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	doc, err := svcctx.StoreFrom(r.Context()).GetDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (e *GetDocumentEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <document-id>",
		Short: "Get a stored document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var doc store.DocumentRecord
			if err := client.Get(cmd.Context(), "/api/documents/"+url.PathEscape(args[0]), &doc); err != nil {
				return err
			}
			return output.Print(doc)
		},
	}
}

// DeleteDocumentEndpoint handles DELETE /api/documents/{id}.
type DeleteDocumentEndpoint struct{}

func (e *DeleteDocumentEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/documents/{id}", e.handler
}

func (e *DeleteDocumentEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Delete a document
//	@Description	Remove a document with its articles, edges and embeddings
//	@Tags			documents
//	@Param			id	path	string	true	"Document ID"
//	@Success		204
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/documents/{id} [delete]
func (e *DeleteDocumentEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	if err := svcctx.StoreFrom(r.Context()).DeleteDocument(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (e *DeleteDocumentEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <document-id>",
		Short: "Delete a stored document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			if err := client.Delete(cmd.Context(), "/api/documents/"+url.PathEscape(args[0])); err != nil {
				return err
			}
			fmt.Printf("Deleted %s\n", args[0])
			return nil
		},
	}
}
