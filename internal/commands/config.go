package commands

import (
	"fmt"
	"os"
	"reflect"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dotcommander/swarmyard/internal/app"
	"github.com/dotcommander/swarmyard/internal/models"
)

// repoConfigPath is the per-repository config file config set writes to;
// LoadSettings reads the same path, so a write here takes effect on the
// next command invocation (settings are cached per-process via sync.Once).
const repoConfigPath = ".swarmyard.yaml"

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and edit coordinator configuration",
	}
	cmd.AddCommand(newConfigListCmd())
	cmd.AddCommand(newConfigGetCmd())
	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigSchemaCmd())
	return cmd
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show every effective configuration value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printSuccess(schemaConfigList, settingsToMap(app.EffectiveSettings()))
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Show one effective configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values := settingsToMap(app.EffectiveSettings())
			value, ok := values[args[0]]
			if !ok {
				return cmdErr(schemaConfigGet, &models.NotFoundError{Kind: "config_key", ID: args[0]})
			}
			type resp struct {
				Key   string `json:"key"`
				Value any    `json:"value"`
			}
			return printSuccess(schemaConfigGet, resp{Key: args[0], Value: value})
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Write one configuration value to the per-repository config file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, raw := args[0], args[1]

			existing := app.Settings{}
			if b, err := os.ReadFile(repoConfigPath); err == nil {
				if err := yaml.Unmarshal(b, &existing); err != nil {
					return cmdErr(schemaConfigSet, err)
				}
			} else if !os.IsNotExist(err) {
				return cmdErr(schemaConfigSet, err)
			}

			if err := setSettingField(&existing, key, raw); err != nil {
				return cmdErr(schemaConfigSet, err)
			}

			out, err := yaml.Marshal(existing)
			if err != nil {
				return cmdErr(schemaConfigSet, err)
			}
			if err := os.WriteFile(repoConfigPath, out, 0o644); err != nil {
				return cmdErr(schemaConfigSet, err)
			}

			type resp struct {
				Key   string `json:"key"`
				Value string `json:"value"`
			}
			return printSuccess(schemaConfigSet, resp{Key: key, Value: raw})
		},
	}
}

func newConfigSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "List every known configuration key, its type, and its default",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printSuccessArray(schemaConfigSchema, configKeySchema())
		},
	}
}

func settingsToMap(s app.Settings) map[string]any {
	out := make(map[string]any)
	v := reflect.ValueOf(s)
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("yaml")
		if tag == "" {
			continue
		}
		out[tag] = v.Field(i).Interface()
	}
	return out
}

func setSettingField(s *app.Settings, key, raw string) error {
	v := reflect.ValueOf(s).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).Tag.Get("yaml") != key {
			continue
		}
		field := v.Field(i)
		switch field.Kind() {
		case reflect.String:
			field.SetString(raw)
		case reflect.Bool:
			b, err := strconv.ParseBool(raw)
			if err != nil {
				return &models.ValidationError{Field: key, Value: raw, Message: "must be a boolean"}
			}
			field.SetBool(b)
		case reflect.Int:
			n, err := strconv.Atoi(raw)
			if err != nil {
				return &models.ValidationError{Field: key, Value: raw, Message: "must be an integer"}
			}
			field.SetInt(int64(n))
		default:
			return fmt.Errorf("unsupported config field kind %s for key %s", field.Kind(), key)
		}
		return nil
	}
	return &models.NotFoundError{Kind: "config_key", ID: key}
}

type configKeyEntry struct {
	Key     string `json:"key"`
	Type    string `json:"type"`
	Default any    `json:"default"`
}

func configKeySchema() []configKeyEntry {
	defaults := app.EffectiveSettings()
	v := reflect.ValueOf(defaults)
	t := v.Type()
	entries := make([]configKeyEntry, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("yaml")
		if tag == "" {
			continue
		}
		entries = append(entries, configKeyEntry{
			Key:     tag,
			Type:    fieldKind(v.Field(i)),
			Default: v.Field(i).Interface(),
		})
	}
	return entries
}

func fieldKind(v reflect.Value) string {
	switch v.Kind() {
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "bool"
	case reflect.Int:
		return "int"
	default:
		return v.Kind().String()
	}
}
