package config

import (
	"fmt"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag describes a CLI flag backed by a config key, so "ask" and "batch"
// expose identical --model, --host, ... flags.
type Flag struct {
	Name        string
	Shorthand   string
	ViperKey    string
	Description string
}

// FlagSet maps registry keys (the Flag* constants) to flag definitions.
type FlagSet map[string]Flag

const (
	FlagModel   = "model"
	FlagHost    = "host"
	FlagTimeout = "timeout"
	FlagWorkers = "workers"
	FlagOTLP    = "otlp-endpoint"
)

// ClientFlags is the shared registry for commands that issue completions.
var ClientFlags = FlagSet{
	FlagModel:   {Name: "model", Shorthand: "m", ViperKey: "client.model", Description: "Model to request completions from"},
	FlagHost:    {Name: "host", ViperKey: "client.host", Description: "Base URL of the OpenAI compatible API"},
	FlagTimeout: {Name: "timeout", ViperKey: "client.timeout", Description: "Overall time limit per completion (e.g. 30s, 2m)"},
	FlagWorkers: {Name: "workers", ViperKey: "batch.workers", Description: "Number of concurrent completions"},
	FlagOTLP:    {Name: "otlp-endpoint", ViperKey: "telemetry.otlp_endpoint", Description: "OTLP/HTTP trace endpoint URL (empty disables tracing)"},
}

// defaults holds NewDefaultConfig as viper values; flag help shows them.
var defaults = sync.OnceValue(func() *viper.Viper {
	v := viper.New()
	setViperDefaults(v)
	return v
})

func (fs FlagSet) lookup(key string) Flag {
	f, ok := fs[key]
	if !ok {
		panic(fmt.Sprintf("config: flag %q is not registered", key))
	}
	return f
}

// AddString registers the string flag for key on cmd. It panics when key is
// not in fs.
func (fs FlagSet) AddString(cmd *cobra.Command, key string, target *string) {
	f := fs.lookup(key)
	cmd.Flags().StringVarP(target, f.Name, f.Shorthand, defaults().GetString(f.ViperKey), f.Description)
}

// AddUint registers the uint flag for key on cmd. It panics when key is not
// in fs.
func (fs FlagSet) AddUint(cmd *cobra.Command, key string, target *uint) {
	f := fs.lookup(key)
	cmd.Flags().UintVarP(target, f.Name, f.Shorthand, defaults().GetUint(f.ViperKey), f.Description)
}

// Bind connects the flags for keys to their viper keys, completing the
// flag > env > config file > default chain. Keys that are unknown or not
// registered on cmd are skipped.
func (fs FlagSet) Bind(v *viper.Viper, cmd *cobra.Command, keys ...string) {
	for _, key := range keys {
		f, ok := fs[key]
		if !ok {
			continue
		}
		if pf := cmd.Flags().Lookup(f.Name); pf != nil {
			_ = v.BindPFlag(f.ViperKey, pf)
		}
	}
}
