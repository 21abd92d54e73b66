package openai

import (
	"context"

	"zenix/internal/application/port/output"
)

var _ output.LLMFactory = (*Factory)(nil)

// Factory builds one adapter per request key.
type Factory struct {
	model   string
	baseURL string
	logger  output.LoggerPort
}

func NewFactory(model, baseURL string, logger output.LoggerPort) *Factory {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Factory{model: model, baseURL: baseURL, logger: logger}
}

func (f *Factory) New(_ context.Context, apiKey string) (output.LLMPort, error) {
	return NewAdapter(Config{APIKey: apiKey, Model: f.model, BaseURL: f.baseURL, Logger: f.logger}), nil
}

func (f *Factory) Model() string {
	return f.model
}
