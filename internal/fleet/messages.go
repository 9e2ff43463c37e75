package fleet

import (
	"fleetd/internal/hub"
	"fleetd/pkg/types"
)

// Caller identifies who issues a query. A nil *Caller is the coordinator
// itself and sees every node.
type Caller struct {
	LoginName string
	IsAdmin   bool
}

// QueryNodesCommand runs QueryNodes and stores the result in Reply.
type QueryNodesCommand struct {
	Caller  *Caller
	Request types.QueryNodesRequest
	Reply   *types.QueryNodesResponse
}

// ReportNodeCommand upserts the state pushed by an agent.
type ReportNodeCommand struct {
	Node types.Node
}

type UpdateNodeFieldCommand struct {
	ID    string
	Field string
	Value any
}

type UpdateNodeFieldsCommand struct {
	Field  string
	Values map[string]any
}

type RemoveNodeCommand struct {
	ID string
}

func (QueryNodesCommand) Critical() bool       { return true }
func (ReportNodeCommand) Critical() bool       { return true }
func (UpdateNodeFieldCommand) Critical() bool  { return true }
func (UpdateNodeFieldsCommand) Critical() bool { return true }
func (RemoveNodeCommand) Critical() bool       { return true }

// Commands lists one instance of every fleet command, for hub.Verify.
func Commands() []any {
	return []any{
		QueryNodesCommand{}, ReportNodeCommand{}, UpdateNodeFieldCommand{},
		UpdateNodeFieldsCommand{}, RemoveNodeCommand{},
	}
}

// NodeSetInitializedEvent follows the completion of the bulk load.
type NodeSetInitializedEvent struct {
	hub.EventMeta
	Count int
}

type NodeAddedEvent struct {
	hub.EventMeta
	Node types.Node
}

type NodeUpdatedEvent struct {
	hub.EventMeta
	Node types.Node
	// Field is empty when the update came from an agent report.
	Field string
}

// NodesUpdatedEvent follows a batch field update.
type NodesUpdatedEvent struct {
	hub.EventMeta
	Field string
	IDs   []string
}

type NodeRemovedEvent struct {
	hub.EventMeta
	Node types.Node
}
