package config

// ModelConfig describes one rung of the model ladder.
type ModelConfig struct {
	Name string `yaml:"name"`

	// ContextWindow in tokens; callers size prompts against it.
	ContextWindow int `yaml:"context_window"`

	// SupportsThinking marks models whose extended reasoning can be
	// toggled per call.
	SupportsThinking bool `yaml:"supports_thinking"`
}

// Fastest returns the first rung of the ladder.
func (c *Config) Fastest() ModelConfig {
	if len(c.Models) == 0 {
		return ModelConfig{}
	}
	return c.Models[0]
}

// Strongest returns the last rung of the ladder.
func (c *Config) Strongest() ModelConfig {
	if len(c.Models) == 0 {
		return ModelConfig{}
	}
	return c.Models[len(c.Models)-1]
}

// Intermediates returns every rung between fastest and strongest.
// Empty for ladders of one or two models.
func (c *Config) Intermediates() []ModelConfig {
	if len(c.Models) <= 2 {
		return nil
	}
	return c.Models[1 : len(c.Models)-1]
}

// ModelNames returns the ladder's model names in order.
func (c *Config) ModelNames() []string {
	names := make([]string, len(c.Models))
	for i, m := range c.Models {
		names[i] = m.Name
	}
	return names
}

// FindModel looks a model up by name.
func (c *Config) FindModel(name string) (ModelConfig, bool) {
	for _, m := range c.Models {
		if m.Name == name {
			return m, true
		}
	}
	return ModelConfig{}, false
}
