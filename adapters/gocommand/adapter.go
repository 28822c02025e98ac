package gocommand

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
	vaultcommand "github.com/goliatone/go-vaultrest/command"
	"github.com/goliatone/go-vaultrest/core"
	vaultquery "github.com/goliatone/go-vaultrest/query"
)

// ValidateMessageContract requires a non-empty Type() and runs Validate()
// when the message declares one.
func ValidateMessageContract(msg any) error {
	if err := command.ValidateMessage(msg); err != nil {
		return err
	}
	m, ok := msg.(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	if strings.TrimSpace(m.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}

type RegistryAdapter struct {
	registry *command.Registry
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) Registry() *command.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

func (a *RegistryAdapter) register(handler any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(handler)
}

func (a *RegistryAdapter) AddResolver(key string, resolver command.Resolver) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.AddResolver(strings.TrimSpace(key), resolver)
}

// AddQueueResolver mirrors every registered handler into queueRegistry on
// Initialize so queue workers can execute them by message type.
func (a *RegistryAdapter) AddQueueResolver(key string, queueRegistry *jobqueuecommand.Registry) error {
	if queueRegistry == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	return a.AddResolver(key, jobqueuecommand.QueueResolver(queueRegistry))
}

func (a *RegistryAdapter) HasResolver(key string) bool {
	if a == nil || a.registry == nil {
		return false
	}
	return a.registry.HasResolver(strings.TrimSpace(key))
}

func (a *RegistryAdapter) Initialize() error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.Initialize()
}

// Subscriptions groups the dispatcher subscriptions created for one executor.
type Subscriptions []commanddispatcher.Subscription

func (s Subscriptions) Unsubscribe() {
	for _, sub := range s {
		if sub != nil {
			sub.Unsubscribe()
		}
	}
}

// RegisterDispatcherHandlers subscribes the batch and dispatch commands plus the
// status and catalog queries, all backed by executor, and registers them with
// adapter. On failure every subscription made so far is released.
func RegisterDispatcherHandlers(
	adapter *RegistryAdapter,
	executor core.BatchExecutor,
	runnerOpts ...runner.Option,
) (Subscriptions, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if executor == nil {
		return nil, fmt.Errorf("gocommand: batch executor is required")
	}

	subs := Subscriptions{}
	steps := []func() (commanddispatcher.Subscription, error){
		func() (commanddispatcher.Subscription, error) {
			return registerCommand[vaultcommand.RunBatchMessage](adapter, vaultcommand.NewRunBatchCommand(executor), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return registerCommand[vaultcommand.DispatchMessage](adapter, vaultcommand.NewDispatchCommand(executor), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return registerQuery[vaultquery.GetStatusMessage, core.ResultRecord](adapter, vaultquery.NewGetStatusQuery(executor), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return registerQuery[vaultquery.ListOperationsMessage, []core.OperationDescriptor](adapter, vaultquery.NewListOperationsQuery(), runnerOpts...)
		},
	}
	for _, step := range steps {
		sub, err := step()
		if err != nil {
			subs.Unsubscribe()
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

func registerCommand[T any](
	adapter *RegistryAdapter,
	cmd command.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	subscription := commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
	if err := adapter.register(cmd); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

func registerQuery[T any, R any](
	adapter *RegistryAdapter,
	qry command.Querier[T, R],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	subscription := commanddispatcher.SubscribeQuery(qry, runnerOpts...)
	if err := adapter.register(qry); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

// RunBatch dispatches a RunBatchMessage and returns the stored batch result.
func RunBatch(ctx context.Context, batch core.Batch) (core.BatchResult, error) {
	collector := command.NewResult[core.BatchResult]()
	if err := commanddispatcher.Dispatch(command.ContextWithResult(ctx, collector), vaultcommand.RunBatchMessage{Batch: batch}); err != nil {
		return core.BatchResult{}, err
	}
	out, _ := collector.Load()
	return out, nil
}

func DispatchOne(ctx context.Context, key core.OperationKey, fields core.Fields) (core.ResultRecord, error) {
	collector := command.NewResult[core.ResultRecord]()
	msg := vaultcommand.DispatchMessage{Key: key, Fields: fields}
	if err := commanddispatcher.Dispatch(command.ContextWithResult(ctx, collector), msg); err != nil {
		return core.ResultRecord{}, err
	}
	out, _ := collector.Load()
	return out, nil
}

func GetStatus(ctx context.Context) (core.ResultRecord, error) {
	return commanddispatcher.Query[vaultquery.GetStatusMessage, core.ResultRecord](ctx, vaultquery.GetStatusMessage{})
}

func ListOperations(ctx context.Context, resource core.Resource) ([]core.OperationDescriptor, error) {
	return commanddispatcher.Query[vaultquery.ListOperationsMessage, []core.OperationDescriptor](
		ctx,
		vaultquery.ListOperationsMessage{Resource: resource},
	)
}
