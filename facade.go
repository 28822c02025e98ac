package vaultrest

import (
	"fmt"

	vaultcommand "github.com/goliatone/go-vaultrest/command"
	"github.com/goliatone/go-vaultrest/core"
	vaultquery "github.com/goliatone/go-vaultrest/query"
)

type Commands struct {
	RunBatch *vaultcommand.RunBatchCommand
	Dispatch *vaultcommand.DispatchCommand
}

type Queries struct {
	GetStatus      *vaultquery.GetStatusQuery
	ListOperations *vaultquery.ListOperationsQuery
}

// Facade exposes the runner through go-command handlers.
type Facade struct {
	executor core.BatchExecutor
	commands Commands
	queries  Queries
}

func NewFacade(executor core.BatchExecutor) (*Facade, error) {
	if executor == nil {
		return nil, fmt.Errorf("vaultrest: batch executor is required")
	}
	facade := &Facade{executor: executor}
	facade.commands = Commands{
		RunBatch: vaultcommand.NewRunBatchCommand(executor),
		Dispatch: vaultcommand.NewDispatchCommand(executor),
	}
	facade.queries = Queries{
		GetStatus:      vaultquery.NewGetStatusQuery(executor),
		ListOperations: vaultquery.NewListOperationsQuery(),
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Executor() core.BatchExecutor {
	if f == nil {
		return nil
	}
	return f.executor
}
