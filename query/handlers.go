package query

import (
	"context"
	"strings"

	"github.com/goliatone/go-vaultrest/core"
)

type ItemDispatcher interface {
	DispatchOne(ctx context.Context, key core.OperationKey, fields core.Fields) (core.ResultRecord, error)
}

// GetStatusQuery runs system.getStatus and returns the decoded status body.
type GetStatusQuery struct {
	dispatcher ItemDispatcher
}

func NewGetStatusQuery(dispatcher ItemDispatcher) *GetStatusQuery {
	return &GetStatusQuery{dispatcher: dispatcher}
}

func (q *GetStatusQuery) Query(ctx context.Context, _ GetStatusMessage) (core.ResultRecord, error) {
	if q == nil || q.dispatcher == nil {
		return core.ResultRecord{}, queryDependencyError("query: item dispatcher is required")
	}
	return q.dispatcher.DispatchOne(ctx, core.Key(core.ResourceSystem, core.OperationGetStatus), core.Fields{})
}

type ListOperationsQuery struct{}

func NewListOperationsQuery() *ListOperationsQuery {
	return &ListOperationsQuery{}
}

func (q *ListOperationsQuery) Query(_ context.Context, msg ListOperationsMessage) ([]core.OperationDescriptor, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	resource := core.Resource(strings.TrimSpace(string(msg.Resource)))
	all := core.Operations()
	if resource == "" {
		return all, nil
	}
	out := make([]core.OperationDescriptor, 0, len(all))
	for _, op := range all {
		if op.Resource == resource {
			out = append(out, op)
		}
	}
	return out, nil
}
