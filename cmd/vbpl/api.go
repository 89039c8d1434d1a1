package main

import (
	"github.com/jackzampolin/vbpl/internal/api"
	"github.com/jackzampolin/vbpl/internal/server/endpoints"
)

var serverURL string

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func init() {
	reg := api.NewRegistry()
	all := endpoints.All(endpoints.Config{})
	for _, ep := range all {
		reg.Register(ep)
	}

	apiCmd := reg.BuildCommands(getServerURL, endpoints.Groups(all)...)
	// Persistent so all subcommands inherit it
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8080", "Server URL",
	)
	rootCmd.AddCommand(apiCmd)
}
