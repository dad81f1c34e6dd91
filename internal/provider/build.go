package provider

import (
	"net/http"
	"sort"
	"strings"

	"github.com/alucardeht/triad/internal/config"
)

// FromConfig registers a guarded backend for every usable provider entry.
// Entries other than the built-in names that carry a base URL are treated
// as OpenAI-compatible servers registered under their own name.
func FromConfig(providers map[string]config.ProviderConfig) *Dispatcher {
	d := NewDispatcher()
	client := &http.Client{}

	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		pc := providers[name]
		var b Backend

		switch strings.ToLower(name) {
		case "openai":
			if pc.APIKey == "" && pc.BaseURL == "" {
				log.Debug("provider skipped, no credentials", "provider", name)
				continue
			}
			b = NewOpenAI("openai", pc.APIKey, pc.BaseURL)
		case "anthropic":
			if pc.APIKey == "" {
				log.Debug("provider skipped, no credentials", "provider", name)
				continue
			}
			b = NewAnthropic(pc.APIKey, pc.BaseURL, client)
		case "gemini":
			if pc.APIKey == "" {
				log.Debug("provider skipped, no credentials", "provider", name)
				continue
			}
			b = NewGemini(pc.APIKey)
		case "ollama":
			b = NewOllama(pc.BaseURL, client)
		case "static":
			b = NewStatic(pc.StaticText)
		default:
			if pc.BaseURL == "" {
				log.Warn("provider ignored, unknown name without base_url", "provider", name)
				continue
			}
			b = NewOpenAI(strings.ToLower(name), pc.APIKey, pc.BaseURL)
		}

		d.Register(Guard(b, GuardSettings{
			RequestsPerSecond: pc.RequestsPerSecond,
			Burst:             pc.Burst,
			FailureThreshold:  pc.FailureThreshold,
			OpenTimeout:       pc.OpenTimeout,
		}))
	}

	log.Info("providers registered", "providers", d.Providers())
	return d
}
