package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-vaultrest/core"
)

type RunBatchCommand struct {
	executor core.BatchExecutor
}

func NewRunBatchCommand(executor core.BatchExecutor) *RunBatchCommand {
	return &RunBatchCommand{executor: executor}
}

// Execute stores the core.BatchResult in the result collector carried by ctx.
func (c *RunBatchCommand) Execute(ctx context.Context, msg RunBatchMessage) error {
	if c == nil || c.executor == nil {
		return commandDependencyError("command: batch executor is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.executor.Run(ctx, msg.Batch)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DispatchCommand struct {
	executor core.BatchExecutor
}

func NewDispatchCommand(executor core.BatchExecutor) *DispatchCommand {
	return &DispatchCommand{executor: executor}
}

func (c *DispatchCommand) Execute(ctx context.Context, msg DispatchMessage) error {
	if c == nil || c.executor == nil {
		return commandDependencyError("command: batch executor is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.executor.DispatchOne(ctx, msg.Key, msg.Fields)
	if err != nil {
		return commandWrapDispatch(err)
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
