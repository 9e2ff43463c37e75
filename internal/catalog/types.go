package catalog

import "github.com/google/uuid"

// KernelInput describes how arguments are passed to a mining kernel.
type KernelInput struct {
	ID                uuid.UUID `json:"id" cbor:"1,keyasint"`
	Name              string    `json:"name" cbor:"2,keyasint"`
	Args              string    `json:"args" cbor:"3,keyasint"`
	IsSupportDualMine bool      `json:"is_support_dual_mine" cbor:"4,keyasint"`
	DualFullArgs      string    `json:"dual_full_args,omitempty" cbor:"5,keyasint,omitempty"`
	DualWeightMin     float64   `json:"dual_weight_min,omitempty" cbor:"6,keyasint,omitempty"`
	DualWeightMax     float64   `json:"dual_weight_max,omitempty" cbor:"7,keyasint,omitempty"`
	IsAutoDualWeight  bool      `json:"is_auto_dual_weight,omitempty" cbor:"8,keyasint,omitempty"`
	DevicePrefix      string    `json:"device_prefix,omitempty" cbor:"9,keyasint,omitempty"`
	DeviceSeparator   string    `json:"device_separator,omitempty" cbor:"10,keyasint,omitempty"`
	DeviceBaseIndex   int       `json:"device_base_index,omitempty" cbor:"11,keyasint,omitempty"`
}

func (k *KernelInput) EntityID() uuid.UUID { return k.ID }
func (k *KernelInput) EntityName() string  { return k.Name }
func (k *KernelInput) Clone() *KernelInput { c := *k; return &c }
func (k *KernelInput) Apply(src *KernelInput) {
	id := k.ID
	*k = *src
	k.ID = id
}

// Group is an operator-defined bucket of nodes.
type Group struct {
	ID         uuid.UUID `json:"id" cbor:"1,keyasint"`
	Name       string    `json:"name" cbor:"2,keyasint"`
	SortNumber int       `json:"sort_number" cbor:"3,keyasint"`
}

func (g *Group) EntityID() uuid.UUID { return g.ID }
func (g *Group) EntityName() string  { return g.Name }
func (g *Group) Clone() *Group       { c := *g; return &c }
func (g *Group) Apply(src *Group) {
	g.Name = src.Name
	g.SortNumber = src.SortNumber
}

// Work is a mining configuration template assigned to nodes.
type Work struct {
	ID          uuid.UUID `json:"id" cbor:"1,keyasint"`
	Name        string    `json:"name" cbor:"2,keyasint"`
	Description string    `json:"description,omitempty" cbor:"3,keyasint,omitempty"`
}

func (w *Work) EntityID() uuid.UUID { return w.ID }
func (w *Work) EntityName() string  { return w.Name }
func (w *Work) Clone() *Work        { c := *w; return &c }
func (w *Work) Apply(src *Work) {
	w.Name = src.Name
	w.Description = src.Description
}

// Coin is a mineable coin definition. Code acts as the required name.
type Coin struct {
	ID         uuid.UUID `json:"id" cbor:"1,keyasint"`
	Code       string    `json:"code" cbor:"2,keyasint"`
	Algo       string    `json:"algo" cbor:"3,keyasint"`
	TestWallet string    `json:"test_wallet,omitempty" cbor:"4,keyasint,omitempty"`
	SortNumber int       `json:"sort_number" cbor:"5,keyasint"`
}

func (c *Coin) EntityID() uuid.UUID { return c.ID }
func (c *Coin) EntityName() string  { return c.Code }
func (c *Coin) Clone() *Coin        { cp := *c; return &cp }
func (c *Coin) Apply(src *Coin) {
	c.Code = src.Code
	c.Algo = src.Algo
	c.TestWallet = src.TestWallet
	c.SortNumber = src.SortNumber
}
