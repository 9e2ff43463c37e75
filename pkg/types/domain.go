package types

import (
	"time"

	"github.com/google/uuid"
)

// Node is one mining rig known to the coordinator.
type Node struct {
	// Storage identifier.
	// example: 5f0b7c3e-9a1d-4c8e-8d5b-2e9f1a7c6b40
	ID string `json:"id" cbor:"1,keyasint" example:"5f0b7c3e-9a1d-4c8e-8d5b-2e9f1a7c6b40"`
	// Stable client identifier kept by the agent across sessions.
	ClientID uuid.UUID `json:"client_id" cbor:"2,keyasint"`
	// Owner login; non-admin callers only see their own nodes.
	// example: alice
	LoginName string    `json:"login_name" cbor:"3,keyasint" example:"alice"`
	GroupID   uuid.UUID `json:"group_id" cbor:"4,keyasint"`
	// Work (template) assignment; zero when the node runs an ad hoc config.
	WorkID    uuid.UUID `json:"work_id" cbor:"5,keyasint"`
	IsMining  bool      `json:"is_mining" cbor:"6,keyasint"`
	IsOnline  bool      `json:"is_online" cbor:"7,keyasint"`
	// example: rig-01
	MinerName string `json:"miner_name" cbor:"8,keyasint" example:"rig-01"`
	// example: rig01
	WorkerName string `json:"worker_name" cbor:"9,keyasint" example:"rig01"`
	// example: 192.168.1.21
	MinerIP string `json:"miner_ip" cbor:"10,keyasint" example:"192.168.1.21"`
	// example: 2.6.1
	Version string `json:"version" cbor:"11,keyasint" example:"2.6.1"`

	MainCoinCode   string  `json:"main_coin_code" cbor:"12,keyasint" example:"ETH"`
	MainCoinPool   string  `json:"main_coin_pool" cbor:"13,keyasint"`
	MainCoinWallet string  `json:"main_coin_wallet" cbor:"14,keyasint"`
	MainCoinSpeed  float64 `json:"main_coin_speed" cbor:"15,keyasint"`

	IsDualCoinEnabled bool    `json:"is_dual_coin_enabled" cbor:"16,keyasint"`
	DualCoinCode      string  `json:"dual_coin_code" cbor:"17,keyasint"`
	DualCoinPool      string  `json:"dual_coin_pool" cbor:"18,keyasint"`
	DualCoinWallet    string  `json:"dual_coin_wallet" cbor:"19,keyasint"`
	DualCoinSpeed     float64 `json:"dual_coin_speed" cbor:"20,keyasint"`

	// Kernel name and version, e.g. "PhoenixMiner5.5c".
	Kernel string `json:"kernel" cbor:"21,keyasint" example:"PhoenixMiner5.5c"`
	// Credential used to encrypt coordinator-to-agent traffic. Never leaves
	// the coordinator through a fleet query.
	AESPassword string `json:"aes_password,omitempty" cbor:"22,keyasint,omitempty"`

	CreatedOn  time.Time `json:"created_on" cbor:"23,keyasint"`
	ReportedOn time.Time `json:"reported_on" cbor:"24,keyasint"`
}

// CoinSnapshot aggregates one coin over a set of nodes.
type CoinSnapshot struct {
	// example: ETH
	CoinCode            string  `json:"coin_code" example:"ETH"`
	MainCoinOnlineCount int     `json:"main_coin_online_count"`
	MainCoinMiningCount int     `json:"main_coin_mining_count"`
	DualCoinOnlineCount int     `json:"dual_coin_online_count"`
	DualCoinMiningCount int     `json:"dual_coin_mining_count"`
	Speed               float64 `json:"speed"`
}

// NodeCount summarizes the whole fleet.
type NodeCount struct {
	Total       int `json:"total"`
	OnlineCount int `json:"online_count"`
	MiningCount int `json:"mining_count"`
}
