package types

// History strategy identifiers for Settings.HistoryStrategy.
const (
	HistoryStrategyCompression   = "compression"
	HistoryStrategySlidingWindow = "sliding_window"
)

// Settings is the runtime-mutable settings document persisted by the
// settings service. Unlike internal/config.Config (process configuration,
// loaded once from the environment), these fields can be changed through the
// settings API between requests and are re-read on every chat turn.
type Settings struct {
	Provider string `json:"provider"`
	BaseURL  string `json:"base_url"`
	APIKey   string `json:"api_key"`
	Model    string `json:"model"`

	SystemPrompt string `json:"system_prompt,omitempty"`

	MaxInputTokens  int     `json:"max_input_tokens"`
	MaxOutputTokens int     `json:"max_output_tokens"`
	Temperature     float64 `json:"temperature"`

	HistoryStrategy      string `json:"history_strategy"`
	CompressionThreshold int    `json:"compression_threshold"`
	CompressionTarget    int    `json:"compression_target"`
}

// DefaultSettings returns the settings document used before the user has
// configured anything. Provider credentials are intentionally empty: the
// agent short-circuits with a configuration message until they are set.
func DefaultSettings() Settings {
	return Settings{
		Provider:             "openai_compatible",
		MaxInputTokens:       2000,
		MaxOutputTokens:      400,
		Temperature:          0.7,
		HistoryStrategy:      HistoryStrategyCompression,
		CompressionThreshold: 1000,
		CompressionTarget:    200,
	}
}

// Configured reports whether the provider credentials required for an
// outbound call are all present.
func (s Settings) Configured() bool {
	return s.BaseURL != "" && s.APIKey != "" && s.Model != ""
}

// Masked returns a copy safe for read endpoints: the API key is replaced
// with a placeholder when set.
func (s Settings) Masked() Settings {
	if s.APIKey != "" {
		s.APIKey = "********"
	}
	return s
}

// Normalize fills zero-valued numeric fields and unknown strategy names with
// defaults so a partially-written settings document stays usable.
func (s *Settings) Normalize() {
	def := DefaultSettings()
	if s.Provider == "" {
		s.Provider = def.Provider
	}
	if s.MaxInputTokens <= 0 {
		s.MaxInputTokens = def.MaxInputTokens
	}
	if s.MaxOutputTokens <= 0 {
		s.MaxOutputTokens = def.MaxOutputTokens
	}
	if s.Temperature <= 0 {
		s.Temperature = def.Temperature
	}
	if s.HistoryStrategy != HistoryStrategyCompression && s.HistoryStrategy != HistoryStrategySlidingWindow {
		s.HistoryStrategy = def.HistoryStrategy
	}
	if s.CompressionThreshold <= 0 {
		s.CompressionThreshold = def.CompressionThreshold
	}
	if s.CompressionTarget <= 0 {
		s.CompressionTarget = def.CompressionTarget
	}
}
