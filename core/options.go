package core

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
	"gopkg.in/yaml.v3"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type runnerBuilder struct {
	runtimeConfig      Config
	logger             Logger
	loggerProvider     LoggerProvider
	metricsRecorder    MetricsRecorder
	errorFactory       ErrorFactory
	errorMapper        ErrorMapper
	configProvider     ConfigProvider
	optionsResolver    OptionsResolver
	transport          TransportAdapter
	credentialResolver CredentialResolver
	idGenerator        func() string
}

type Option func(*runnerBuilder)

func WithLogger(logger Logger) Option {
	return func(b *runnerBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *runnerBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *runnerBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorFactory(factory ErrorFactory) Option {
	return func(b *runnerBuilder) {
		b.errorFactory = factory
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *runnerBuilder) {
		b.errorMapper = mapper
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *runnerBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *runnerBuilder) {
		b.optionsResolver = resolver
	}
}

func WithTransport(adapter TransportAdapter) Option {
	return func(b *runnerBuilder) {
		b.transport = adapter
	}
}

func WithCredentialResolver(resolver CredentialResolver) Option {
	return func(b *runnerBuilder) {
		b.credentialResolver = resolver
	}
}

// WithBatchIDGenerator replaces the uuid based batch id source.
func WithBatchIDGenerator(fn func() string) Option {
	return func(b *runnerBuilder) {
		b.idGenerator = fn
	}
}

func defaultRunnerBuilder(runtime Config) runnerBuilder {
	loggerProvider, logger := glog.Resolve("vaultrest", nil, nil)
	return runnerBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorFactory:    goerrors.New,
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return serviceErrorMapper(err)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

// YAMLConfigLoader reads a raw config map from a YAML document on disk. A
// missing file yields an empty map unless Required is set.
type YAMLConfigLoader struct {
	Path     string
	Required bool
}

func NewYAMLConfigLoader(path string) *YAMLConfigLoader {
	return &YAMLConfigLoader{Path: strings.TrimSpace(path)}
}

func (l *YAMLConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if l == nil || strings.TrimSpace(l.Path) == "" {
		return map[string]any{}, nil
	}
	data, err := os.ReadFile(l.Path)
	if err != nil {
		if os.IsNotExist(err) && !l.Required {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("core: read config file %q: %w", l.Path, err)
	}
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("core: decode config file %q: %w", l.Path, err)
	}
	return raw, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults.Clone()),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// GoOptionsResolver layers defaults < loaded config < runtime config. The
// loaded layer already carries defaults, so it is taken whole; the runtime
// layer only contributes values that differ from the defaults.
type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, defaults, true)
	loadedLayer := configToLayerMap(loaded, defaults, true)
	runtimeLayer := map[string]any{}
	if runtime != (Config{}) {
		runtimeLayer = configToLayerMap(runtime, defaults, false)
	}

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults.Clone()),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, base Config, includeAll bool) map[string]any {
	layer := map[string]any{}
	if includeAll || (strings.TrimSpace(cfg.ServiceName) != "" && cfg.ServiceName != base.ServiceName) {
		layer["service_name"] = cfg.ServiceName
	}
	if includeAll || cfg.Batch != base.Batch {
		layer["batch"] = map[string]any{
			"continue_on_fail": cfg.Batch.ContinueOnFail,
		}
	}

	vault := map[string]any{}
	if includeAll || (strings.TrimSpace(cfg.Vault.BaseURL) != "" && cfg.Vault.BaseURL != base.Vault.BaseURL) {
		vault["base_url"] = cfg.Vault.BaseURL
	}
	if includeAll || (strings.TrimSpace(cfg.Vault.APIKey) != "" && cfg.Vault.APIKey != base.Vault.APIKey) {
		vault["api_key"] = cfg.Vault.APIKey
	}
	switch {
	case includeAll:
		vault["ignore_ssl_issues"] = cfg.Vault.SkipTLSVerification()
	case cfg.Vault.IgnoreSSLIssues != nil && *cfg.Vault.IgnoreSSLIssues != base.Vault.SkipTLSVerification():
		vault["ignore_ssl_issues"] = *cfg.Vault.IgnoreSSLIssues
	}
	if len(vault) > 0 {
		layer["vault"] = vault
	}
	return layer
}
