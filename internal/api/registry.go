package api

import (
	"net/http"

	"github.com/spf13/cobra"
)

// Registry holds all registered endpoints.
type Registry struct {
	endpoints []Endpoint
}

// NewRegistry creates a new endpoint registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds an endpoint to the registry.
func (r *Registry) Register(ep Endpoint) {
	r.endpoints = append(r.endpoints, ep)
}

// RegisterRoutes registers all endpoint HTTP routes with the given mux.
// initMiddleware wraps handlers that require full server initialization.
func (r *Registry) RegisterRoutes(mux *http.ServeMux, initMiddleware func(http.HandlerFunc) http.HandlerFunc) {
	for _, ep := range r.endpoints {
		method, path, handler := ep.Route()
		if ep.RequiresInit() {
			handler = initMiddleware(handler)
		}
		mux.HandleFunc(method+" "+path, handler)
	}
}

// Group is a named set of endpoints that share a CLI parent command.
type Group struct {
	Use       string
	Short     string
	Endpoints []Endpoint
}

// BuildCommands returns the "api" command tree. Ungrouped endpoints become
// direct children; each group becomes a subcommand holding its endpoints.
// getServerURL is called at runtime to get the server URL.
func (r *Registry) BuildCommands(getServerURL func() string, groups ...Group) *cobra.Command {
	apiCmd := &cobra.Command{
		Use:   "api",
		Short: "Commands that call the running server",
		Long: `API commands call the running vbpl server via HTTP.

These commands require a running server (vbpl serve).
Use --server to specify a custom server URL.

Examples:
  vbpl api health                       # Check server health
  vbpl api documents process doc.json   # Process a crawled document
  vbpl api articles relationships 100_1 # Edges touching an article`,
	}

	grouped := make(map[Endpoint]bool)
	for _, g := range groups {
		cmd := &cobra.Command{Use: g.Use, Short: g.Short}
		for _, ep := range g.Endpoints {
			grouped[ep] = true
			cmd.AddCommand(ep.Command(getServerURL))
		}
		apiCmd.AddCommand(cmd)
	}
	for _, ep := range r.endpoints {
		if !grouped[ep] {
			apiCmd.AddCommand(ep.Command(getServerURL))
		}
	}

	return apiCmd
}

// Endpoints returns all registered endpoints.
func (r *Registry) Endpoints() []Endpoint {
	return r.endpoints
}
