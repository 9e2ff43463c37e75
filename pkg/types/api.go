package types

import "github.com/google/uuid"

// MineState filters nodes by mining status.
type MineState string

const (
	MineAll       MineState = ""
	MineMining    MineState = "mining"
	MineNotMining MineState = "not_mining"
)

// SortDirection orders query results by miner name.
type SortDirection string

const (
	SortNone       SortDirection = ""
	SortAscending  SortDirection = "asc"
	SortDescending SortDirection = "desc"
)

// QueryNodesRequest is the body of POST /api/nodes/query. Empty or zero
// fields do not filter.
type QueryNodesRequest struct {
	GroupID   uuid.UUID `json:"group_id"`
	MineState MineState `json:"mine_state,omitempty" example:"mining"`
	// Exact IP match.
	MinerIP string `json:"miner_ip,omitempty"`
	// Case-insensitive substring of miner name or worker name.
	MinerName string `json:"miner_name,omitempty" example:"rig"`
	// Version prefix.
	Version string `json:"version,omitempty" example:"2.6"`
	// When set, Coin, Pool, Wallet and Kernel are ignored.
	WorkID uuid.UUID `json:"work_id"`
	Coin   string    `json:"coin,omitempty" example:"ETH"`
	Pool   string    `json:"pool,omitempty"`
	Wallet string    `json:"wallet,omitempty"`
	// Case-insensitive kernel name prefix.
	Kernel        string        `json:"kernel,omitempty"`
	SortDirection SortDirection `json:"sort_direction,omitempty" example:"asc"`
	// 1-based page index.
	// example: 1
	PageIndex int `json:"page_index" example:"1"`
	// example: 20
	PageSize int `json:"page_size" example:"20"`
}

// QueryNodesResponse is returned by POST /api/nodes/query.
type QueryNodesResponse struct {
	Nodes []Node `json:"nodes"`
	// Matched nodes before pagination.
	// example: 42
	Total         int            `json:"total" example:"42"`
	CoinSnapshots []CoinSnapshot `json:"coin_snapshots"`
	OnlineCount   int            `json:"online_count"`
	MiningCount   int            `json:"mining_count"`
}

// UpdateNodeFieldRequest is the body of PATCH /api/nodes/{id}.
type UpdateNodeFieldRequest struct {
	// example: MinerName
	Field string `json:"field" example:"MinerName"`
	Value any    `json:"value"`
}

// UpdateNodesFieldRequest is the body of PATCH /api/nodes.
type UpdateNodesFieldRequest struct {
	// example: GroupID
	Field  string         `json:"field" example:"GroupID"`
	Values map[string]any `json:"values"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// example: 400
	Code int `json:"code" example:"400"`
}

// HandlerInfo describes one hub registration for GET /debug/handlers.
type HandlerInfo struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Message     string `json:"message"`
	Description string `json:"description"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	Ready          bool      `json:"ready"`
	InitedOnUnix   int64     `json:"inited_on_unix,omitempty"`
	Nodes          NodeCount `json:"nodes"`
	UptimeSeconds  int64     `json:"uptime_seconds"`
	ServerTimeUnix int64     `json:"server_time_unix"`
}
