// Package config provides centralized management for application settings, defaults, and the Viper-based configuration engine.
package config

import (
	"encoding/json"
	"strings"
	"text/template"

	"github.com/Atik203/animexin-player-controller-extension/constant"
	"github.com/Atik203/animexin-player-controller-extension/key"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

// Field represents a configuration field definition.
type Field struct {
	Key         string
	Value       any
	Description string
}

// Pretty returns a human-readable string representation of the field for display.
func (f *Field) Pretty() string {
	var b strings.Builder
	lo.Must0(prettyTemplate.Execute(&b, f))
	return b.String()
}

// Env returns the environment variable name for this field.
func (f *Field) Env() string {
	env := strings.ToUpper(EnvKeyReplacer.Replace(f.Key))
	prefix := strings.ToUpper(constant.Dir + "_")
	if strings.HasPrefix(env, prefix) {
		return env
	}
	return prefix + env
}

// MarshalJSON customizes JSON output to include current and default values.
func (f *Field) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Key         string `json:"key"`
		Value       any    `json:"value"`
		Default     any    `json:"default"`
		Description string `json:"description"`
	}{
		Key:         f.Key,
		Value:       viper.Get(f.Key),
		Default:     f.Value,
		Description: f.Description,
	})
}

// Default holds the map of all configuration fields.
var Default = make(map[string]Field)

// EnvExposed holds keys that are bound to environment variables.
var EnvExposed []string

func init() {
	// register validates and adds a new configuration field to the global registry.
	register := func(k string, v any, desc string) {
		if _, exists := Default[k]; exists {
			panic("Duplicate config key: " + k)
		}
		f := Field{Key: k, Value: v, Description: desc}
		Default[k] = f
		EnvExposed = append(EnvExposed, k)
	}

	register(key.LocatorMaxAttempts, 60, "Maximum number of polling attempts when searching the page for a player surface")
	register(key.LocatorIntervalMS, 200, "Spacing between surface polling attempts, in milliseconds")
	register(key.SkipEnabled, true, "Enable automatic intro/outro skipping")
	register(key.SkipGraceDelayMS, 1500, "Delay after playback starts before the intro seek is issued,\nallowing the surface to stabilize after a source change")
	register(key.SkipOutroEpsilonMS, 500, "Tolerance subtracted from the outro start to absorb time-update granularity, in milliseconds")
	register(key.ServerPriorities, []string{
		"hardsub english dailymotion",
		"hardsub english ok.ru",
		"hardsub english rumble",
		"hardsub indonesia dailymotion",
		"hardsub english",
		"hardsub indonesia",
	}, "Ordered server label patterns, most preferred first.\nMatched case-insensitively as substrings against the page's server dropdown")
	register(key.MonitorDebounceMS, 50, "Coalescing window for bursts of DOM mutations before a single resync pass runs, in milliseconds")
	register(key.ServerListen, "127.0.0.1:7496", "Listen address for the local control API consumed by the extension UI")
	register(key.HistorySaveOnAdvance, true, "Record every automatic episode advance in the watch history")
	register(key.LogsWrite, false, "Write logs")
	register(key.LogsLevel, "info", "Available options are: (from less to most verbose)\npanic, fatal, error, warn, info, debug, trace")
	register(key.LogsJson, false, "Use json format for logs")
	register(key.CliColored, true, "Enable colored CLI output")
	register(key.CliVersionCheck, true, "Periodically check for a newer release and notify")
	register(key.IconsVariant, "emoji", "Icon style for CLI feedback symbols.\nAvailable options are: emoji, nerd, plain, kaomoji, squares")
}

var prettyTemplate = lo.Must(template.New("pretty").Funcs(template.FuncMap{
	"value": func(k string) any { return viper.Get(k) },
}).Parse(`{{ .Description }}
Key:     {{ .Key }}
Env:     {{ .Env }}
Value:   {{ value .Key }}
Default: {{ .Value }}`))
