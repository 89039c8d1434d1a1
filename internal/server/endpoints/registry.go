package endpoints

import (
	"github.com/jackzampolin/vbpl/internal/api"
)

// Config holds dependencies needed by some endpoints.
type Config struct {
	SwaggerSpecPath string
}

// All returns all endpoint instances.
func All(cfg Config) []api.Endpoint {
	return []api.Endpoint{
		// Health
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&StatusEndpoint{},
		&StatsEndpoint{},

		// Documents
		&ProcessDocumentEndpoint{},
		&ListDocumentsEndpoint{},
		&GetDocumentEndpoint{},
		&DeleteDocumentEndpoint{},
		&DocumentEdgesEndpoint{},

		// Articles
		&ListArticlesEndpoint{},
		&GetArticleEndpoint{},
		&RelationshipsEndpoint{},
		&SearchEndpoint{},

		// Settings
		&ListSettingsEndpoint{},
		&GetSettingEndpoint{},
		&UpdateSettingEndpoint{},
		&ResetSettingEndpoint{},
		&DeleteSettingEndpoint{},

		// LLM call history
		&ListLLMCallsEndpoint{},
		&LLMCallStatsEndpoint{},
		&GetLLMCallEndpoint{},
		&LLMCallCountsEndpoint{},

		// Prompts
		&ListPromptsEndpoint{},
		&GetPromptEndpoint{},
		&ListOverridesEndpoint{},
		&SetOverrideEndpoint{},
		&ClearOverrideEndpoint{},

		// OpenAPI
		&SwaggerEndpoint{SpecPath: cfg.SwaggerSpecPath},
		&SwaggerUIEndpoint{},
	}
}

// Groups sorts endpoints into CLI command groups by their concrete type.
// Endpoints outside every group stay at the top of "vbpl api".
func Groups(eps []api.Endpoint) []api.Group {
	groups := []api.Group{
		{Use: "documents", Short: "Process and inspect documents"},
		{Use: "articles", Short: "Inspect articles and relationships"},
		{Use: "settings", Short: "Manage stored settings"},
		{Use: "llmcalls", Short: "Inspect LLM call history"},
		{Use: "prompts", Short: "Inspect and override prompts"},
	}
	for _, ep := range eps {
		var i int
		switch ep.(type) {
		case *ProcessDocumentEndpoint, *ListDocumentsEndpoint, *GetDocumentEndpoint,
			*DeleteDocumentEndpoint, *DocumentEdgesEndpoint:
			i = 0
		case *ListArticlesEndpoint, *GetArticleEndpoint, *RelationshipsEndpoint:
			i = 1
		case *ListSettingsEndpoint, *GetSettingEndpoint, *UpdateSettingEndpoint,
			*ResetSettingEndpoint, *DeleteSettingEndpoint:
			i = 2
		case *ListLLMCallsEndpoint, *LLMCallStatsEndpoint, *GetLLMCallEndpoint, *LLMCallCountsEndpoint:
			i = 3
		case *ListPromptsEndpoint, *GetPromptEndpoint, *ListOverridesEndpoint,
			*SetOverrideEndpoint, *ClearOverrideEndpoint:
			i = 4
		default:
			continue
		}
		groups[i].Endpoints = append(groups[i].Endpoints, ep)
	}
	return groups
}
