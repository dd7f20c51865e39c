package config

const (
	defaultHost  = "https://api.openai.com"
	defaultModel = "gpt-4o-mini"

	defaultEventStreamProvider = "none"
	defaultBatchWorkers        = 4
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Client: ClientConfig{
			Host:  defaultHost,
			Model: defaultModel,
		},
		EventStream: EventStreamConfig{
			Provider: defaultEventStreamProvider,
		},
		Batch: BatchConfig{
			Workers: defaultBatchWorkers,
		},
	}
}
