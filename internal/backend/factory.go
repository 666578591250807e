package backend

import (
	"context"
	"fmt"
	"log/slog"

	"installments/internal/amqp"
	"installments/internal/ledger/memory"
	"installments/internal/storage"
)

// Factory creates backends from configuration.
type Factory struct {
	logger *slog.Logger
	// dial is swapped in tests.
	dial func(url, exchange, queue string) (*amqp.Client, error)
}

func NewFactory(logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{logger: logger, dial: amqp.NewClient}
}

func (f *Factory) Create(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	switch config.Type {
	case SQLiteBackend:
		return f.createSQLite(ctx, config)
	case MemoryBackend:
		return f.createMemory(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *Factory) createSQLite(ctx context.Context, config Config) (*Result, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	res := &Result{Store: repo, SQLite: repo, Ping: repo.Ping}
	amqpClient := f.connectAMQP(ctx, config)
	if amqpClient != nil {
		res.Events = amqpClient
	}
	res.Cleanup = func() error {
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				f.logger.Warn("Failed to close AMQP client", "error", err)
			}
		}
		return repo.Close()
	}

	f.logger.InfoContext(ctx, "Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"amqp_enabled", amqpClient != nil)
	return res, nil
}

func (f *Factory) createMemory(ctx context.Context, config Config) (*Result, error) {
	var store *memory.Store
	if config.DataDirectory != "" {
		store = memory.NewFromFiles(config.DataDirectory)
	} else {
		store = memory.New()
	}
	res := &Result{
		Store: store,
		Ping:  func(context.Context) error { return nil },
	}
	amqpClient := f.connectAMQP(ctx, config)
	if amqpClient != nil {
		res.Events = amqpClient
		res.Cleanup = amqpClient.Close
	}
	f.logger.InfoContext(ctx, "Initialized memory backend", "data_directory", config.DataDirectory)
	return res, nil
}

// connectAMQP returns nil when AMQP is off or unreachable; events are best
// effort and the app keeps running without them.
func (f *Factory) connectAMQP(ctx context.Context, config Config) *amqp.Client {
	if config.AMQPURL == "" {
		return nil
	}
	c, err := f.dial(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events", "error", err)
		return nil
	}
	f.logger.InfoContext(ctx, "Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return c
}
