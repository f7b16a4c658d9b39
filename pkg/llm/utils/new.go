// Package llmutils builds the configured completion service.
package llmutils

import (
	"fmt"
	"log/slog"

	"github.com/papercomputeco/docchat/pkg/llm"
	"github.com/papercomputeco/docchat/pkg/llm/ollama"
)

type NewCompleterOpts struct {
	ProviderType string
	TargetURL    string
	Model        string
	Logger       *slog.Logger
}

func NewCompleter(o *NewCompleterOpts) (llm.Completer, error) {
	switch o.ProviderType {
	case "ollama":
		return ollama.NewCompleter(ollama.Config{
			BaseURL: o.TargetURL,
			Model:   o.Model,
		}, o.Logger), nil
	default:
		return nil, fmt.Errorf("unsupported completion provider: %s", o.ProviderType)
	}
}
