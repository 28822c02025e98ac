package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-vaultrest/core"
)

var (
	_ gocmd.Querier[GetStatusMessage, core.ResultRecord]               = (*GetStatusQuery)(nil)
	_ gocmd.Querier[ListOperationsMessage, []core.OperationDescriptor] = (*ListOperationsQuery)(nil)
)
