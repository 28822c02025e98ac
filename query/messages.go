package query

import (
	"strings"

	"github.com/goliatone/go-vaultrest/core"
)

const (
	TypeGetStatus      = "vaultrest.query.status.get"
	TypeListOperations = "vaultrest.query.operations.list"
)

type GetStatusMessage struct{}

func (GetStatusMessage) Type() string { return TypeGetStatus }

func (GetStatusMessage) Validate() error { return nil }

// ListOperationsMessage optionally narrows the catalog to one resource.
type ListOperationsMessage struct {
	Resource core.Resource
}

func (ListOperationsMessage) Type() string { return TypeListOperations }

func (m ListOperationsMessage) Validate() error {
	resource := core.Resource(strings.TrimSpace(string(m.Resource)))
	if resource == "" {
		return nil
	}
	for _, op := range core.Operations() {
		if op.Resource == resource {
			return nil
		}
	}
	return queryValidationError("resource", "unknown resource "+string(resource))
}
