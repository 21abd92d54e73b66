package gemini

import (
	"context"

	"zenix/internal/application/port/output"
)

var _ output.LLMFactory = (*Factory)(nil)

type Factory struct {
	model   string
	baseURL string
	logger  output.LoggerPort
}

func NewFactory(model, baseURL string, logger output.LoggerPort) *Factory {
	if model == "" {
		model = DefaultModel
	}
	return &Factory{model: model, baseURL: baseURL, logger: logger}
}

func (f *Factory) New(ctx context.Context, apiKey string) (output.LLMPort, error) {
	return NewAdapter(ctx, Config{APIKey: apiKey, Model: f.model, BaseURL: f.baseURL, Logger: f.logger})
}

func (f *Factory) Model() string {
	return f.model
}
