package fleet

import (
	"context"

	"github.com/google/uuid"

	"fleetd/internal/hub"
)

var (
	queryHandlerID        = uuid.MustParse("0b8f3d52-7c1a-4e2b-9f6d-1a3c5e7f9b01")
	reportHandlerID       = uuid.MustParse("0b8f3d52-7c1a-4e2b-9f6d-1a3c5e7f9b02")
	updateFieldHandlerID  = uuid.MustParse("0b8f3d52-7c1a-4e2b-9f6d-1a3c5e7f9b03")
	updateFieldsHandlerID = uuid.MustParse("0b8f3d52-7c1a-4e2b-9f6d-1a3c5e7f9b04")
	removeHandlerID       = uuid.MustParse("0b8f3d52-7c1a-4e2b-9f6d-1a3c5e7f9b05")
)

func (r *Registry) register() {
	hub.Handle(r.hub, queryHandlerID, "query nodes", hub.LogNone, func(_ context.Context, c QueryNodesCommand) error {
		resp := r.QueryNodes(c.Caller, c.Request)
		if c.Reply != nil {
			*c.Reply = resp
		}
		return nil
	})
	hub.Handle(r.hub, reportHandlerID, "node report", hub.LogNone, func(ctx context.Context, c ReportNodeCommand) error {
		return r.Report(ctx, c.Node)
	})
	hub.Handle(r.hub, updateFieldHandlerID, "update node field", hub.LogInfo, func(ctx context.Context, c UpdateNodeFieldCommand) error {
		return r.UpdateField(ctx, c.ID, c.Field, c.Value)
	})
	hub.Handle(r.hub, updateFieldsHandlerID, "update node field in batch", hub.LogInfo, func(ctx context.Context, c UpdateNodeFieldsCommand) error {
		return r.UpdateFieldBatch(ctx, c.Field, c.Values)
	})
	hub.Handle(r.hub, removeHandlerID, "remove node", hub.LogInfo, func(ctx context.Context, c RemoveNodeCommand) error {
		return r.RemoveByID(ctx, c.ID)
	})
}
