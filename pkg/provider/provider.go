// Package provider builds the language capability used for slot inference.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"tourdesk/pkg/config"
	"tourdesk/pkg/provider/fantasy"
	provideropenai "tourdesk/pkg/provider/openai"
	"tourdesk/pkg/provider/opencode"
	"tourdesk/pkg/secrets"
)

// ErrDisabled is returned by New when no capability is configured. Callers
// run extraction on pattern rules alone.
var ErrDisabled = errors.New("provider: language capability disabled")

type Client interface {
	Health(ctx context.Context) error
	Complete(ctx context.Context, instructions string, input string) (string, error)
}

type options struct {
	secrets secrets.Getter
}

type Option func(*options)

// WithSecrets sets the parameter store used for API keys not found in the
// environment.
func WithSecrets(g secrets.Getter) Option {
	return func(o *options) { o.secrets = g }
}

func New(ctx context.Context, cfg *config.Config, opts ...Option) (Client, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	providerID := strings.ToLower(strings.TrimSpace(cfg.Capability.Provider))
	slog.Default().With("component", "provider.factory").Debug("Resolving provider client", "provider", providerID)

	switch providerID {
	case "", "none":
		return nil, ErrDisabled
	case "opencode":
		return opencode.New(cfg)
	case "openai":
		apiKey, err := resolveAPIKey(ctx, cfg.Providers.OpenAI, o.secrets)
		if err != nil {
			return nil, err
		}
		return provideropenai.New(cfg, apiKey)
	case "fantasy":
		apiKey, err := resolveAPIKey(ctx, cfg.Providers.OpenAI, o.secrets)
		if err != nil {
			return nil, err
		}
		return fantasy.New(cfg, apiKey)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", providerID)
	}
}

// resolveAPIKey checks APIKeyEnv, then OPENAI_API_KEY, then the SSM
// parameter named by APIKeyParam.
func resolveAPIKey(ctx context.Context, cfg config.OpenAIProviderConfig, getter secrets.Getter) (string, error) {
	if apiKeyEnv := strings.TrimSpace(cfg.APIKeyEnv); apiKeyEnv != "" {
		if apiKey := strings.TrimSpace(os.Getenv(apiKeyEnv)); apiKey != "" {
			return apiKey, nil
		}
	}
	if apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); apiKey != "" {
		return apiKey, nil
	}

	param := strings.TrimSpace(cfg.APIKeyParam)
	if param == "" {
		return "", errors.New("providers.openai.api_key_env, OPENAI_API_KEY or providers.openai.api_key_param is required")
	}
	if getter == nil {
		client, err := secrets.NewFromRegion(ctx, cfg.AWSRegion)
		if err != nil {
			return "", err
		}
		getter = client
	}
	return getter.GetParameter(ctx, param)
}
