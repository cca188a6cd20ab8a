package llm

import (
	"fmt"

	"github.com/kadirpekel/roshni/config"
)

// NewClient builds the Client for cfg.Type. cfg is expected to already
// have SetDefaults/Validate applied (config.Config.SetDefaults does this
// for every entry in its LLMs map).
func NewClient(cfg config.LLMProviderConfig) (Client, error) {
	switch cfg.Type {
	case "anthropic":
		return NewAnthropic(cfg), nil
	case "openai":
		return NewOpenAI(cfg), nil
	case "ollama":
		return NewOllama(cfg), nil
	default:
		return nil, fmt.Errorf("unknown llm provider type %q", cfg.Type)
	}
}
