package converter

import (
	"fmt"
	"strings"

	"notex/pkg/config"
	"notex/pkg/logger"
)

// New builds the converter selected by the configuration. The openrouter
// converter requires an API key; the dummy converter ignores it.
func New(cfg *config.ConverterConfig, apiKey string, log logger.Logger) (Converter, error) {
	switch strings.ToLower(cfg.Type) {
	case "openrouter":
		if apiKey == "" {
			return nil, fmt.Errorf("converter %q requires an API key (set %s or run `notex auth set`)", cfg.Type, cfg.APIKeyEnv)
		}
		return NewOpenRouter(cfg, apiKey, log), nil
	case "dummy":
		return NewDummy(), nil
	default:
		return nil, fmt.Errorf("unknown converter type: %s", cfg.Type)
	}
}
