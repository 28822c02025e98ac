package vaultrest

import (
	"github.com/goliatone/go-vaultrest/core"
	"github.com/goliatone/go-vaultrest/transport"
)

type Config = core.Config

type Option = core.Option

type Runner = core.Runner

type RunnerDependencies = core.RunnerDependencies

type Batch = core.Batch
type BatchResult = core.BatchResult
type Fields = core.Fields
type OperationKey = core.OperationKey
type ResultRecord = core.ResultRecord
type Credentials = core.Credentials
type CredentialResolver = core.CredentialResolver
type SecretProvider = core.SecretProvider
type MetricsRecorder = core.MetricsRecorder
type TransportAdapter = core.TransportAdapter

var (
	WithLogger             = core.WithLogger
	WithLoggerProvider     = core.WithLoggerProvider
	WithMetricsRecorder    = core.WithMetricsRecorder
	WithErrorFactory       = core.WithErrorFactory
	WithErrorMapper        = core.WithErrorMapper
	WithConfigProvider     = core.WithConfigProvider
	WithOptionsResolver    = core.WithOptionsResolver
	WithTransport          = core.WithTransport
	WithCredentialResolver = core.WithCredentialResolver
	WithBatchIDGenerator   = core.WithBatchIDGenerator
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// NewRunner builds a runner that talks to the vault over HTTPS unless a
// WithTransport option supplies another adapter.
func NewRunner(cfg Config, opts ...Option) (*Runner, error) {
	withDefaults := make([]Option, 0, len(opts)+1)
	withDefaults = append(withDefaults, core.WithTransport(transport.NewRESTAdapter(nil)))
	withDefaults = append(withDefaults, opts...)
	return core.NewRunner(cfg, withDefaults...)
}
