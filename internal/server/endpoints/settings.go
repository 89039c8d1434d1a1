package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/vbpl/internal/api"
	"github.com/jackzampolin/vbpl/internal/config"
	"github.com/jackzampolin/vbpl/internal/output"
	"github.com/jackzampolin/vbpl/internal/svcctx"
)

// SettingsResponse contains the stored config overrides.
type SettingsResponse struct {
	Settings map[string]config.Entry `json:"settings"`
}

// SettingResponse contains a single config entry.
type SettingResponse struct {
	Entry *config.Entry `json:"entry,omitempty"`
	Error string        `json:"error,omitempty"`
}

// UpdateSettingRequest is the request body for updating a setting.
type UpdateSettingRequest struct {
	Value       any    `json:"value"`
	Description string `json:"description,omitempty"`
}

// settingKey decodes and validates the {key...} path value.
func settingKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	key, err := url.PathUnescape(r.PathValue("key"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid key encoding")
		return "", false
	}
	if err := config.ValidateKey(key); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return key, true
}

// applySettings layers the store over the live config. A rejected config
// leaves the live config unchanged.
func applySettings(r *http.Request, store config.Store) error {
	mgr := svcctx.ConfigFrom(r.Context())
	if mgr == nil {
		return nil
	}
	if err := mgr.Apply(r.Context(), store); err != nil {
		svcctx.LoggerFrom(r.Context()).Warn("stored setting not applied", "error", err)
		return err
	}
	return nil
}

// ListSettingsEndpoint handles GET /api/settings.
type ListSettingsEndpoint struct{}

func (e *ListSettingsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/settings", e.handler
}

func (e *ListSettingsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List settings
//	@Description	Get every setting stored in the database
//	@Tags			settings
//	@Produce		json
//	@Success		200	{object}	SettingsResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/settings [get]
func (e *ListSettingsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.ConfigStoreFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusInternalServerError, "config store not available")
		return
	}

	entries, err := store.GetAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = map[string]config.Entry{}
	}

	writeJSON(w, http.StatusOK, SettingsResponse{Settings: entries})
}

func (e *ListSettingsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp SettingsResponse
			if err := client.Get(cmd.Context(), "/api/settings", &resp); err != nil {
				return err
			}

			if prefix != "" {
				filtered := make(map[string]config.Entry)
				for k, v := range resp.Settings {
					if strings.HasPrefix(k, prefix) {
						filtered[k] = v
					}
				}
				resp.Settings = filtered
			}
			// encoding/json and yaml.v3 both sort map keys.
			return output.Print(resp.Settings)
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "Filter by key prefix (e.g., 'resolver.')")
	return cmd
}

// GetSettingEndpoint handles GET /api/settings/{key...}.
type GetSettingEndpoint struct{}

func (e *GetSettingEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/settings/{key...}", e.handler
}

func (e *GetSettingEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get a setting
//	@Description	Get a single stored setting by key
//	@Tags			settings
//	@Produce		json
//	@Param			key	path		string	true	"Setting key (URL-encoded)"
//	@Success		200	{object}	SettingResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/settings/{key} [get]
func (e *GetSettingEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	key, ok := settingKey(w, r)
	if !ok {
		return
	}

	store := svcctx.ConfigStoreFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusInternalServerError, "config store not available")
		return
	}

	entry, err := store.Get(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entry == nil {
		writeError(w, http.StatusNotFound, "setting not found")
		return
	}

	writeJSON(w, http.StatusOK, SettingResponse{Entry: entry})
}

func (e *GetSettingEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a setting by key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp SettingResponse
			if err := client.Get(cmd.Context(), "/api/settings/"+url.PathEscape(args[0]), &resp); err != nil {
				return err
			}
			return output.Print(resp.Entry)
		},
	}
}

// UpdateSettingEndpoint handles PUT /api/settings/{key...}.
type UpdateSettingEndpoint struct{}

func (e *UpdateSettingEndpoint) Route() (string, string, http.HandlerFunc) {
	return "PUT", "/api/settings/{key...}", e.handler
}

func (e *UpdateSettingEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Update a setting
//	@Description	Store a setting and apply it to the running server
//	@Tags			settings
//	@Accept			json
//	@Produce		json
//	@Param			key		path		string					true	"Setting key (URL-encoded)"
//	@Param			body	body		UpdateSettingRequest	true	"New value"
//	@Success		200		{object}	SettingResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/api/settings/{key} [put]
func (e *UpdateSettingEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	key, ok := settingKey(w, r)
	if !ok {
		return
	}

	var req UpdateSettingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	store := svcctx.ConfigStoreFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusInternalServerError, "config store not available")
		return
	}

	existing, err := store.Get(r.Context(), key)
	if err != nil {
		svcctx.LoggerFrom(r.Context()).Warn("failed to fetch existing setting for description preservation",
			"key", key, "error", err)
	}
	description := req.Description
	if description == "" && existing != nil {
		description = existing.Description
	}
	if description == "" {
		if def := config.GetDefault(key); def != nil {
			description = def.Description
		}
	}

	if err := store.Set(r.Context(), key, req.Value, description); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := applySettings(r, store); err != nil {
		if rbErr := restoreSetting(r, store, key, existing); rbErr != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("config rejected %s (%v) and restore failed: %v", key, err, rbErr))
			return
		}
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("config rejected %s: %v", key, err))
		return
	}

	entry, err := store.Get(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, SettingResponse{Entry: entry})
}

// restoreSetting puts back the entry a rejected update replaced.
func restoreSetting(r *http.Request, store config.Store, key string, prev *config.Entry) error {
	var err error
	if prev != nil {
		err = store.Set(r.Context(), key, prev.Value, prev.Description)
	} else {
		err = store.Delete(r.Context(), key)
	}
	if err != nil {
		return err
	}
	return applySettings(r, store)
}

func (e *UpdateSettingEndpoint) Command(getServerURL func() string) *cobra.Command {
	var value string
	var description string
	cmd := &cobra.Command{
		Use:   "set <key>",
		Short: "Update a setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())

			var parsed any
			if err := json.Unmarshal([]byte(value), &parsed); err != nil {
				// Not JSON, keep as string.
				parsed = value
			}

			req := UpdateSettingRequest{Value: parsed, Description: description}
			var resp SettingResponse
			if err := client.Put(cmd.Context(), "/api/settings/"+url.PathEscape(args[0]), req, &resp); err != nil {
				return err
			}
			return output.Print(resp.Entry)
		},
	}
	cmd.Flags().StringVar(&value, "value", "", "New value (JSON or string)")
	cmd.Flags().StringVar(&description, "description", "", "Description (optional)")
	_ = cmd.MarkFlagRequired("value")
	return cmd
}

// ResetSettingEndpoint handles POST /api/settings/reset/{key...}.
type ResetSettingEndpoint struct{}

func (e *ResetSettingEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/settings/reset/{key...}", e.handler
}

func (e *ResetSettingEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Reset a setting to default
//	@Description	Pin a setting to its built-in default value
//	@Tags			settings
//	@Produce		json
//	@Param			key	path		string	true	"Setting key (URL-encoded)"
//	@Success		200	{object}	SettingResponse
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/settings/reset/{key} [post]
func (e *ResetSettingEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	key, ok := settingKey(w, r)
	if !ok {
		return
	}

	store := svcctx.ConfigStoreFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusInternalServerError, "config store not available")
		return
	}

	if err := config.ResetToDefault(r.Context(), store, key); err != nil {
		if errors.Is(err, config.ErrNoDefault) {
			writeError(w, http.StatusNotFound, err.Error())
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	entry, err := store.Get(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := applySettings(r, store); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, SettingResponse{Entry: entry})
}

func (e *ResetSettingEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <key>",
		Short: "Reset a setting to its default value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp SettingResponse
			if err := client.Post(cmd.Context(), "/api/settings/reset/"+url.PathEscape(args[0]), nil, &resp); err != nil {
				return err
			}
			return output.Print(resp.Entry)
		},
	}
}

// DeleteSettingEndpoint handles DELETE /api/settings/{key...}.
type DeleteSettingEndpoint struct{}

func (e *DeleteSettingEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/settings/{key...}", e.handler
}

func (e *DeleteSettingEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Unset a setting
//	@Description	Remove a stored setting so the file, environment or default applies again
//	@Tags			settings
//	@Param			key	path	string	true	"Setting key (URL-encoded)"
//	@Success		204
//	@Failure		400	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/settings/{key} [delete]
func (e *DeleteSettingEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	key, ok := settingKey(w, r)
	if !ok {
		return
	}

	store := svcctx.ConfigStoreFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusInternalServerError, "config store not available")
		return
	}
	if err := store.Delete(r.Context(), key); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// Viper keeps values set at runtime until the next restart; the
	// remaining stored entries are reapplied so dependants stay consistent.
	if err := applySettings(r, store); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (e *DeleteSettingEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "unset <key>",
		Short: "Remove a stored setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			if err := client.Delete(cmd.Context(), "/api/settings/"+url.PathEscape(args[0])); err != nil {
				return err
			}
			fmt.Printf("Unset %s\n", args[0])
			return nil
		},
	}
}
