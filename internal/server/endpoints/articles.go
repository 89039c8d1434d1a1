package endpoints

import (
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/vbpl/internal/api"
	"github.com/jackzampolin/vbpl/internal/legal"
	"github.com/jackzampolin/vbpl/internal/output"
	"github.com/jackzampolin/vbpl/internal/store"
	"github.com/jackzampolin/vbpl/internal/svcctx"
)

// ArticlesResponse lists a document's articles.
type ArticlesResponse struct {
	DocumentID string                `json:"document_id"`
	Articles   []store.ArticleRecord `json:"articles"`
}

// EdgesResponse lists relationship edges.
type EdgesResponse struct {
	DocumentID string       `json:"document_id"`
	Edges      []legal.Edge `json:"edges"`
}

// ListArticlesEndpoint handles GET /api/documents/{id}/articles.
type ListArticlesEndpoint struct{}

func (e *ListArticlesEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/documents/{id}/articles", e.handler
}

func (e *ListArticlesEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List articles
//	@Description	List a document's articles with their relations and state
//	@Tags			articles
//	@Produce		json
//	@Param			id	path		string	true	"Document ID"
//	@Success		200	{object}	ArticlesResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/documents/{id}/articles [get]
func (e *ListArticlesEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	articles, err := svcctx.StoreFrom(r.Context()).ListArticles(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if articles == nil {
		articles = []store.ArticleRecord{}
	}
	writeJSON(w, http.StatusOK, ArticlesResponse{DocumentID: id, Articles: articles})
}

func (e *ListArticlesEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list <document-id>",
		Short: "List a document's articles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ArticlesResponse
			path := "/api/documents/" + url.PathEscape(args[0]) + "/articles"
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return output.Print(resp)
		},
	}
}

// GetArticleEndpoint handles GET /api/articles/{id}.
type GetArticleEndpoint struct{}

func (e *GetArticleEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/articles/{id}", e.handler
}

func (e *GetArticleEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get an article
//	@Description	Get one article by its "{document_id}_{ordinal}" id
//	@Tags			articles
//	@Produce		json
//	@Param			id	path		string	true	"Article ID"
//	@Success		200	{object}	store.ArticleRecord
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/articles/{id} [get]
func (e *GetArticleEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	a, err := svcctx.StoreFrom(r.Context()).GetArticle(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (e *GetArticleEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <article-id>",
		Short: "Get an article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var a store.ArticleRecord
			if err := client.Get(cmd.Context(), "/api/articles/"+url.PathEscape(args[0]), &a); err != nil {
				return err
			}
			return output.Print(a)
		},
	}
}

// RelationshipsEndpoint handles GET /api/articles/{id}/relationships.
type RelationshipsEndpoint struct{}

func (e *RelationshipsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/articles/{id}/relationships", e.handler
}

func (e *RelationshipsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Article relationships
//	@Description	Edges leaving and entering an article
//	@Tags			articles
//	@Produce		json
//	@Param			id	path		string	true	"Article ID"
//	@Success		200	{object}	store.ArticleRelations
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/articles/{id}/relationships [get]
func (e *RelationshipsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	rel, err := svcctx.StoreFrom(r.Context()).Relationships(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rel)
}

func (e *RelationshipsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "relationships <article-id>",
		Short: "Show edges leaving and entering an article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var rel store.ArticleRelations
			path := "/api/articles/" + url.PathEscape(args[0]) + "/relationships"
			if err := client.Get(cmd.Context(), path, &rel); err != nil {
				return err
			}
			return output.Print(rel)
		},
	}
}

// DocumentEdgesEndpoint handles GET /api/documents/{id}/edges.
type DocumentEdgesEndpoint struct{}

func (e *DocumentEdgesEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/documents/{id}/edges", e.handler
}

func (e *DocumentEdgesEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Document edges
//	@Description	Every edge produced while processing a document
//	@Tags			documents
//	@Produce		json
//	@Param			id	path		string	true	"Document ID"
//	@Success		200	{object}	EdgesResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/documents/{id}/edges [get]
func (e *DocumentEdgesEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	edges, err := svcctx.StoreFrom(r.Context()).DocumentEdges(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if edges == nil {
		edges = []legal.Edge{}
	}
	writeJSON(w, http.StatusOK, EdgesResponse{DocumentID: id, Edges: edges})
}

func (e *DocumentEdgesEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "edges <document-id>",
		Short: "List the edges produced for a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp EdgesResponse
			path := "/api/documents/" + url.PathEscape(args[0]) + "/edges"
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return output.Print(resp)
		},
	}
}
