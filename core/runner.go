package core

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"
)

// Runner executes batches against the dispatch table, one item at a time.
type Runner struct {
	config             Config
	logger             Logger
	loggerProvider     LoggerProvider
	metricsRecorder    MetricsRecorder
	errorFactory       ErrorFactory
	errorMapper        ErrorMapper
	configProvider     ConfigProvider
	optionsResolver    OptionsResolver
	transport          TransportAdapter
	credentialResolver CredentialResolver
	dispatcher         *Dispatcher
	idGenerator        func() string
}

type RunnerDependencies struct {
	Logger             Logger
	LoggerProvider     LoggerProvider
	MetricsRecorder    MetricsRecorder
	ErrorFactory       ErrorFactory
	ErrorMapper        ErrorMapper
	ConfigProvider     ConfigProvider
	OptionsResolver    OptionsResolver
	Transport          TransportAdapter
	CredentialResolver CredentialResolver
}

func NewRunner(cfg Config, opts ...Option) (*Runner, error) {
	builder := defaultRunnerBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("vaultrest", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("vaultrest"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
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
	if builder.idGenerator == nil {
		builder.idGenerator = uuid.NewString
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

	if builder.credentialResolver == nil {
		builder.credentialResolver = NewConfigCredentialResolver(finalConfig.Vault)
	}

	return &Runner{
		config:             finalConfig,
		logger:             logger,
		loggerProvider:     provider,
		metricsRecorder:    builder.metricsRecorder,
		errorFactory:       builder.errorFactory,
		errorMapper:        builder.errorMapper,
		configProvider:     builder.configProvider,
		optionsResolver:    builder.optionsResolver,
		transport:          builder.transport,
		credentialResolver: builder.credentialResolver,
		dispatcher:         NewDispatcher(builder.transport),
		idGenerator:        builder.idGenerator,
	}, nil
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (r *Runner) Config() Config {
	if r == nil {
		return Config{}
	}
	return r.config
}

func (r *Runner) Dependencies() RunnerDependencies {
	if r == nil {
		return RunnerDependencies{}
	}
	return RunnerDependencies{
		Logger:             r.logger,
		LoggerProvider:     r.loggerProvider,
		MetricsRecorder:    r.metricsRecorder,
		ErrorFactory:       r.errorFactory,
		ErrorMapper:        r.errorMapper,
		ConfigProvider:     r.configProvider,
		OptionsResolver:    r.optionsResolver,
		Transport:          r.transport,
		CredentialResolver: r.credentialResolver,
	}
}

// ItemOutcome is the per-item result before it is rendered as a record.
// Exactly one of Response and Err is meaningful.
type ItemOutcome struct {
	ItemIndex int
	Key       OperationKey
	Response  Response
	Err       error
}

func (o ItemOutcome) Failed() bool {
	return o.Err != nil
}

func (o ItemOutcome) Record() ResultRecord {
	if o.Err != nil {
		message := ErrorMessage(o.Err)
		return ResultRecord{
			ItemIndex: o.ItemIndex,
			JSON:      map[string]any{"error": message},
			Error:     message,
		}
	}
	return ResultRecord{ItemIndex: o.ItemIndex, JSON: o.Response.JSON()}
}

// FailurePolicy reports whether a failed item is collected inline. Returning
// false aborts the batch.
type FailurePolicy func(outcome ItemOutcome) bool

func ContinueOnFailPolicy(continueOnFail bool) FailurePolicy {
	return func(ItemOutcome) bool {
		return continueOnFail
	}
}

func (r *Runner) failurePolicy(batch Batch) FailurePolicy {
	continueOnFail := r.config.Batch.ContinueOnFail
	if batch.ContinueOnFail != nil {
		continueOnFail = *batch.ContinueOnFail
	}
	return ContinueOnFailPolicy(continueOnFail)
}

// Run resolves credentials once and executes the batch.
func (r *Runner) Run(ctx context.Context, batch Batch) (BatchResult, error) {
	creds, err := r.resolveCredentials(ctx)
	if err != nil {
		return BatchResult{}, err
	}
	return r.RunWithCredentials(ctx, creds, batch)
}

// RunWithCredentials executes items strictly in input order. On abort no
// records are returned and the error is an *ItemError.
func (r *Runner) RunWithCredentials(ctx context.Context, creds Credentials, batch Batch) (BatchResult, error) {
	if r == nil {
		return BatchResult{}, dependencyError("core: runner is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := batch.Validate(); err != nil {
		return BatchResult{}, badInputError(err.Error())
	}

	startedAt := time.Now()
	key := batch.Key()
	policy := r.failurePolicy(batch)
	result := BatchResult{
		BatchID: r.nextBatchID(),
		Key:     key,
		Records: make([]ResultRecord, 0, len(batch.Items)),
	}

	for index, fields := range batch.Items {
		if err := ctx.Err(); err != nil {
			return r.abort(ctx, startedAt, result, &ItemError{ItemIndex: index, Key: key, Err: err})
		}
		outcome := r.runItem(ctx, result.BatchID, index, key, fields, creds)
		if outcome.Failed() {
			if !policy(outcome) {
				return r.abort(ctx, startedAt, result, &ItemError{ItemIndex: index, Key: key, Err: outcome.Err})
			}
			result.Failed++
		}
		result.Records = append(result.Records, outcome.Record())
	}

	r.observeBatch(ctx, startedAt, result, nil)
	return result, nil
}

// DispatchOne runs a single item with freshly resolved credentials. The
// returned record is populated even when err is set.
func (r *Runner) DispatchOne(ctx context.Context, key OperationKey, fields Fields) (ResultRecord, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	creds, err := r.resolveCredentials(ctx)
	if err != nil {
		return ItemOutcome{Key: key, Err: err}.Record(), err
	}
	outcome := r.runItem(ctx, "", 0, key, fields, creds)
	return outcome.Record(), outcome.Err
}

func (r *Runner) runItem(
	ctx context.Context,
	batchID string,
	index int,
	key OperationKey,
	fields Fields,
	creds Credentials,
) ItemOutcome {
	startedAt := time.Now()
	res, spec, err := r.dispatcher.dispatch(ctx, key, fields, creds)

	logFields := map[string]any{"item_index": index}
	if batchID != "" {
		logFields["batch_id"] = batchID
	}
	if spec.Method != "" {
		logFields["method"] = spec.Method
		logFields["path"] = spec.Path
	}
	if err == nil {
		logFields["status_code"] = res.StatusCode
	}
	r.observeDispatch(ctx, startedAt, key, err, logFields)

	return ItemOutcome{ItemIndex: index, Key: key, Response: res, Err: err}
}

func (r *Runner) abort(ctx context.Context, startedAt time.Time, partial BatchResult, err *ItemError) (BatchResult, error) {
	r.observeBatch(ctx, startedAt, partial, err)
	return BatchResult{}, err
}

func (r *Runner) resolveCredentials(ctx context.Context) (Credentials, error) {
	if r == nil {
		return Credentials{}, dependencyError("core: runner is nil")
	}
	if r.credentialResolver == nil {
		return Credentials{}, dependencyError("core: credential resolver is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	creds, err := r.credentialResolver.Resolve(ctx)
	if err != nil {
		return Credentials{}, mapBuildError(r.errorMapper, err)
	}
	return creds.Normalize(), nil
}

func (r *Runner) nextBatchID() string {
	if r.idGenerator != nil {
		if id := strings.TrimSpace(r.idGenerator()); id != "" {
			return id
		}
	}
	return uuid.NewString()
}
