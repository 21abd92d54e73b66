package di

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"zenix/internal/adapter/tool"
	"zenix/internal/application/port/output"
	"zenix/internal/application/service"
	"zenix/internal/infrastructure/config"
	"zenix/internal/infrastructure/llm/gemini"
	"zenix/internal/infrastructure/llm/openai"
	"zenix/internal/infrastructure/llm/proxyclient"
	"zenix/internal/infrastructure/logger"
	"zenix/internal/infrastructure/messaging"
	"zenix/internal/infrastructure/metrics"
	"zenix/internal/infrastructure/prompts"
	"zenix/internal/infrastructure/server"
	"zenix/internal/infrastructure/storage/memory"
	"zenix/internal/infrastructure/storage/sqlite"
	"zenix/internal/usecase/chat"
)

// Store is what the panel and the background persist through.
type Store interface {
	output.ConversationStore
	output.SettingsStore
}

type Container struct {
	Config  config.Config
	Logger  output.LoggerPort
	Metrics *metrics.Metrics
	Store   Store
	Tools   output.ToolRegistry

	closers []func() error
}

func NewContainer(cfg config.Config) (*Container, error) {
	log, err := logger.NewLoggerAdapter(cfg.Log, uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	c := &Container{
		Config:  cfg,
		Logger:  log,
		Metrics: metrics.New(),
		closers: []func() error{log.Close},
	}

	if cfg.Storage.Path == "" || cfg.Storage.Path == config.MemoryStorage {
		c.Store = memory.NewStore()
	} else {
		db, err := sqlite.Open(cfg.Storage.Path)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to open storage: %w", err)
		}
		c.Store = db
		c.closers = append(c.closers, db.Close)
		log.Debug("Storage opened", "path", db.Path())
	}

	c.Tools = service.NewToolRegistry(tool.NewCurrentTimeTool(log))
	return c, nil
}

// LLMFactory builds per-request providers for the configured backend.
func (c *Container) LLMFactory() output.LLMFactory {
	llm := c.Config.LLM
	switch llm.Provider {
	case config.ProviderOpenAI:
		return openai.NewFactory(llm.Model, llm.BaseURL, c.Logger)
	default:
		return gemini.NewFactory(llm.Model, llm.BaseURL, c.Logger)
	}
}

func (c *Container) ChatService() *chat.Service {
	return chat.NewService(
		c.LLMFactory(),
		prompts.NewBuilder(prompts.SystemTemplate, c.Tools),
		c.Tools,
		c.Logger.WithField("component", "chat"),
		c.Config.Chat,
	)
}

func (c *Container) Server(opts ...server.Option) *server.Server {
	return server.New(c.Config.Server, c.ChatService(), c.Metrics, c.Logger, opts...)
}

// FrameSource is where the background gets model output from: the proxy
// over HTTP, or the chat service in process when local is set.
func (c *Container) FrameSource(local bool) output.FrameSource {
	if local {
		return c.ChatService()
	}
	return proxyclient.New(c.Config.Proxy, c.Logger.WithField("component", "proxy_client"))
}

// RemotePanelBus dials the panel bridge of a running browser session.
func (c *Container) RemotePanelBus(ctx context.Context, url string) (*messaging.RemoteBus, error) {
	bus, err := messaging.Dial(ctx, url, c.Logger.WithField("component", "remote_bus"))
	if err != nil {
		return nil, fmt.Errorf("failed to reach browser session at %s: %w", url, err)
	}
	c.closers = append(c.closers, bus.Close)
	return bus, nil
}

// Close releases resources in reverse order of acquisition.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		_ = c.closers[i]()
	}
	c.closers = nil
}
