package core

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// Service is the read-side facade over the message store: filtered and
// paginated listing plus the aggregate rollup. Ingestion goes through the
// webhooks pipeline, which shares the store, logger, and metrics sink.
type Service struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper
	secretSource    SecretSource
	messageStore    MessageStore
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
}

func NewService(cfg Config, options ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("intake", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("intake"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.messageStore == nil && builder.storeProvider != nil {
		builder.messageStore = builder.storeProvider.MessageStore()
	}
	if builder.secretSource == nil {
		builder.secretSource = StaticSecretSource(finalConfig.WebhookSecret)
	}

	return &Service{
		config:          finalConfig,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		errorMapper:     builder.errorMapper,
		secretSource:    builder.secretSource,
		messageStore:    builder.messageStore,
		configProvider:  builder.configProvider,
		optionsResolver: builder.optionsResolver,
	}, nil
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	if mapped := mapper(err); mapped != nil {
		return mapped
	}
	return err
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Logger() Logger {
	if s == nil {
		return glog.Nop()
	}
	return s.logger
}

func (s *Service) MetricsRecorder() MetricsRecorder {
	if s == nil {
		return NopMetricsRecorder{}
	}
	return s.metricsRecorder
}

func (s *Service) SecretSource() SecretSource {
	if s == nil {
		return nil
	}
	return s.secretSource
}

func (s *Service) Store() MessageStore {
	if s == nil {
		return nil
	}
	return s.messageStore
}

// ListMessages clamps pagination, composes the supplied filters with AND
// semantics, and returns the page plus the pre-pagination match count.
func (s *Service) ListMessages(ctx context.Context, req ListRequest) (Page, error) {
	startedAt := time.Now()
	if s == nil || s.messageStore == nil {
		return Page{}, goerrors.New("core: message store is not configured", goerrors.CategoryInternal).
			WithTextCode(IntakeErrorInternal)
	}

	req = req.Clamp()
	if req.Limit > s.config.Pagination.MaxLimit {
		req.Limit = s.config.Pagination.MaxLimit
	}

	items, total, err := s.messageStore.List(ctx, req)
	fields := map[string]any{
		"limit":  req.Limit,
		"offset": req.Offset,
		"total":  total,
	}
	if from := strings.TrimSpace(req.FromAddress); from != "" {
		fields["from"] = from
	}
	s.observeOperation(ctx, startedAt, "list_messages", err, fields)
	if err != nil {
		return Page{}, mapBuildError(s.errorMapper, err)
	}

	return Page{
		Items:  items,
		Total:  total,
		Limit:  req.Limit,
		Offset: req.Offset,
	}, nil
}

// MessageStats delegates to the store rollup. An empty store yields zero
// counts and nil timestamps rather than an error.
func (s *Service) MessageStats(ctx context.Context) (Stats, error) {
	startedAt := time.Now()
	if s == nil || s.messageStore == nil {
		return Stats{}, goerrors.New("core: message store is not configured", goerrors.CategoryInternal).
			WithTextCode(IntakeErrorInternal)
	}
	stats, err := s.messageStore.Stats(ctx)
	s.observeOperation(ctx, startedAt, "message_stats", err, map[string]any{
		"total_messages": stats.TotalMessages,
	})
	if err != nil {
		return Stats{}, mapBuildError(s.errorMapper, err)
	}
	return stats, nil
}

// Ready reports whether the service can accept traffic: storage reachable
// and the shared webhook secret configured.
func (s *Service) Ready(ctx context.Context) error {
	if s == nil || s.messageStore == nil {
		return NewNotConfiguredError("core: message store is not configured")
	}
	if err := s.messageStore.Ping(ctx); err != nil {
		return NewNotConfiguredError("core: storage is not reachable")
	}
	if s.secretSource == nil || strings.TrimSpace(s.secretSource.WebhookSecret()) == "" {
		return NewNotConfiguredError("core: webhook secret is not configured")
	}
	return nil
}
