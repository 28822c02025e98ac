package command

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-vaultrest/core"
)

const (
	TypeRunBatch = "vaultrest.command.batch.run"
	TypeDispatch = "vaultrest.command.dispatch"
)

// RunBatchMessage executes every item of Batch against one resource and
// operation pair.
type RunBatchMessage struct {
	Batch core.Batch
}

func (RunBatchMessage) Type() string { return TypeRunBatch }

func (m RunBatchMessage) Validate() error {
	return validateKey(m.Batch.Key())
}

type DispatchMessage struct {
	Key    core.OperationKey
	Fields core.Fields
}

func (DispatchMessage) Type() string { return TypeDispatch }

func (m DispatchMessage) Validate() error {
	return validateKey(m.Key)
}

func validateKey(key core.OperationKey) error {
	if strings.TrimSpace(string(key.Resource)) == "" {
		return commandValidationError("resource", "resource is required")
	}
	if strings.TrimSpace(string(key.Operation)) == "" {
		return commandValidationError("operation", "operation is required")
	}
	if !core.Supports(key) {
		return commandInvalidInputError(fmt.Sprintf("command: operation %q is not supported for resource %q", key.Operation, key.Resource))
	}
	return nil
}
