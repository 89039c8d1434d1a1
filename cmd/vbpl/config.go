package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/vbpl/internal/config"
	"github.com/jackzampolin/vbpl/internal/home"
	"github.com/jackzampolin/vbpl/internal/output"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and change configuration",
	Long: `Configuration is layered: built-in defaults, then config.yaml, then
VBPL_* environment variables, then settings stored in the database.

"config set" writes to the database, which takes precedence over the file.
A running server picks up file edits on its own; use "vbpl api settings"
to change its stored settings live.`,
}

var initForce bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config.yaml to the home directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			h, err := home.New(homeDir)
			if err != nil {
				return err
			}
			path = h.ConfigPath()
		}
		if _, err := os.Stat(path); err == nil && !initForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		abs, _ := filepath.Abs(path)
		fmt.Printf("Wrote %s\n", abs)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		svcs, err := openServices(cmd)
		if err != nil {
			return err
		}
		defer svcs.Close()
		return output.Print(svcs.Config.Get().Redacted())
	},
}

var configDefaultsCmd = &cobra.Command{
	Use:   "defaults",
	Short: "List every known key with its default value",
	RunE: func(cmd *cobra.Command, args []string) error {
		return output.Print(config.DefaultEntries())
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List settings stored in the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		svcs, err := openServices(cmd)
		if err != nil {
			return err
		}
		defer svcs.Close()

		entries, err := svcs.ConfigStore.GetAll(cmd.Context())
		if err != nil {
			return err
		}
		return output.Print(entries)
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Show a stored setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.ValidateKey(args[0]); err != nil {
			return err
		}
		svcs, err := openServices(cmd)
		if err != nil {
			return err
		}
		defer svcs.Close()

		entry, err := svcs.ConfigStore.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if entry == nil {
			return fmt.Errorf("%s is not stored (see \"vbpl config show\" for the effective value)", args[0])
		}
		return output.Print(entry)
	},
}

var setDescription string

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store a setting (value parsed as JSON, else kept as a string)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		if err := config.ValidateKey(key); err != nil {
			return err
		}
		var value any
		if err := json.Unmarshal([]byte(args[1]), &value); err != nil {
			value = args[1]
		}

		svcs, err := openServices(cmd)
		if err != nil {
			return err
		}
		defer svcs.Close()

		ctx := cmd.Context()
		prev, err := svcs.ConfigStore.Get(ctx, key)
		if err != nil {
			return err
		}
		desc := setDescription
		if desc == "" && prev != nil {
			desc = prev.Description
		}
		if desc == "" {
			if def := config.GetDefault(key); def != nil {
				desc = def.Description
			}
		}
		if err := svcs.ConfigStore.Set(ctx, key, value, desc); err != nil {
			return err
		}
		if err := svcs.Config.Apply(ctx, svcs.ConfigStore); err != nil {
			// Keep the database loadable.
			if prev != nil {
				_ = svcs.ConfigStore.Set(ctx, key, prev.Value, prev.Description)
			} else {
				_ = svcs.ConfigStore.Delete(ctx, key)
			}
			return fmt.Errorf("rejected %s: %w", key, err)
		}
		fmt.Printf("Set %s\n", key)
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a stored setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.ValidateKey(args[0]); err != nil {
			return err
		}
		svcs, err := openServices(cmd)
		if err != nil {
			return err
		}
		defer svcs.Close()

		if err := svcs.ConfigStore.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Unset %s\n", args[0])
		return nil
	},
}

var configResetCmd = &cobra.Command{
	Use:   "reset <key>",
	Short: "Pin a setting to its default value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.ValidateKey(args[0]); err != nil {
			return err
		}
		svcs, err := openServices(cmd)
		if err != nil {
			return err
		}
		defer svcs.Close()

		if err := config.ResetToDefault(cmd.Context(), svcs.ConfigStore, args[0]); err != nil {
			return err
		}
		fmt.Printf("Reset %s\n", args[0])
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing file")
	configSetCmd.Flags().StringVar(&setDescription, "description", "", "Description (optional)")

	configCmd.AddCommand(configInitCmd, configShowCmd, configDefaultsCmd, configListCmd,
		configGetCmd, configSetCmd, configUnsetCmd, configResetCmd)
	rootCmd.AddCommand(configCmd)
}
