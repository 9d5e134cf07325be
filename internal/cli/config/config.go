package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pythautom/pythautom/internal/cli/shared"
	cfgpkg "github.com/pythautom/pythautom/internal/config"
	apperrors "github.com/pythautom/pythautom/internal/errors"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show and change configuration",
	Long: `Show and change pythautom configuration.

Settings are layered: built-in defaults, the user config
(~/.pythautom/config.json), the project config (.pythautom.json, or the file
given with --config) and PYTHAUTOM_* environment variables, later layers
winning.`,
	GroupID: shared.GroupConfiguration,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  `Show the effective configuration after all layers are merged. Secrets are masked.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user config, or with --local in the
project config. The value is validated against the key's type.`,
	Example: `  pythautom config set backend gemini
  pythautom config set gemini_api_key "$KEY"
  pythautom config set max_correction_attempts 5 --local`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List the configuration keys",
	Args:  cobra.NoArgs,
	RunE:  runConfigKeys,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file paths",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

func init() {
	configShowCmd.Flags().Bool("json", false, "Output in JSON format")
	configSetCmd.Flags().Bool("local", false, "Write to the project config instead of the user config")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configKeysCmd)
	configCmd.AddCommand(configPathCmd)
}

func localPath(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return cfgpkg.LocalConfigPath
	}
	return path
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	path := localPath(cmd)
	cfg, err := cfgpkg.Load(path)
	if err != nil {
		return apperrors.ConfigParseError(path, err)
	}
	entries := cfg.Entries()
	out := cmd.OutOrStdout()

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		values := make(map[string]string, len(entries))
		for _, e := range entries {
			values[e.Key] = e.Value
		}
		data, err := json.MarshalIndent(values, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling configuration: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	bold := color.New(color.Bold).SprintFunc()
	for _, e := range entries {
		fmt.Fprintf(out, "%s %s\n", bold(fmt.Sprintf("%-26s", e.Key+":")), e.Value)
	}
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	var path string
	if local, _ := cmd.Flags().GetBool("local"); local {
		path = localPath(cmd)
	} else {
		global, err := cfgpkg.GlobalConfigPath()
		if err != nil {
			return err
		}
		path = global
	}

	if _, err := cfgpkg.ParseValue(key, value); err != nil {
		var unknown cfgpkg.ErrUnknownKey
		if errors.As(err, &unknown) {
			return apperrors.NewArgumentError(err.Error(), "Run 'pythautom config keys' to list the valid keys")
		}
		return apperrors.NewArgumentError(err.Error())
	}
	if err := cfgpkg.SetConfigValue(path, key, value); err != nil {
		return apperrors.WrapWithMessage(err, apperrors.Configuration, fmt.Sprintf("could not update %s", path))
	}

	shown := value
	if cfgpkg.KnownKeys[key].Secret {
		shown = "(hidden)"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s in %s\n", key, shown, path)
	return nil
}

func runConfigKeys(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	cyan := color.New(color.FgCyan).SprintFunc()
	for _, key := range cfgpkg.SortedKeys() {
		schema := cfgpkg.KnownKeys[key]
		typ := schema.Type.String()
		if len(schema.AllowedValues) > 0 {
			typ = fmt.Sprintf("%s %v", typ, schema.AllowedValues)
		}
		fmt.Fprintf(out, "%s %-22s %s\n", cyan(fmt.Sprintf("%-26s", key)), typ, schema.Description)
	}
	return nil
}

func runConfigPath(cmd *cobra.Command, _ []string) error {
	global, err := cfgpkg.GlobalConfigPath()
	if err != nil {
		return err
	}
	local, err := filepath.Abs(localPath(cmd))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "user:    %s\nproject: %s\n", global, local)
	return nil
}
