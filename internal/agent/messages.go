package agent

// KernelSpec is the mining job handed to a JobRunner. The runner owns the
// meaning of Command and Args.
type KernelSpec struct {
	Kernel     string   `json:"kernel"`
	Command    string   `json:"command"`
	Args       []string `json:"args"`
	CoinCode   string   `json:"coin_code"`
	Pool       string   `json:"pool"`
	Wallet     string   `json:"wallet"`
	DualCoin   string   `json:"dual_coin,omitempty"`
	DualPool   string   `json:"dual_pool,omitempty"`
	DualWallet string   `json:"dual_wallet,omitempty"`
}

// StartMiningCommand replaces the running job with Spec.
type StartMiningCommand struct {
	Spec KernelSpec
}

// StopMiningCommand stops the running job, if any.
type StopMiningCommand struct{}

// CloseAgentCommand shuts the agent down. It runs on the UI loop and the
// issuer does not wait for it.
type CloseAgentCommand struct {
	Reason string
}

func (StartMiningCommand) Critical() bool { return true }
func (StopMiningCommand) Critical() bool  { return true }
func (CloseAgentCommand) UIAffine() bool  { return true }

// MiningStartedEvent is published after the runner accepted a job.
type MiningStartedEvent struct {
	Spec KernelSpec
}

// MiningStoppedEvent is published after the runner stopped.
type MiningStoppedEvent struct{}
