package fleet

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"fleetd/pkg/types"
)

// QueryNodes filters, sorts and paginates the fleet for caller. A nil caller
// sees every node; a non-admin caller sees only nodes of its own login.
// Totals, coin snapshots and counts cover the whole filtered set, while the
// returned page has its credentials blanked and is handed to the online
// policy. Before the bulk load completes the result is empty.
func (r *Registry) QueryNodes(caller *Caller, req types.QueryNodesRequest) types.QueryNodesResponse {
	resp := types.QueryNodesResponse{Nodes: []types.Node{}, CoinSnapshots: []types.CoinSnapshot{}}
	if !r.IsReady() {
		return resp
	}
	start := time.Now()
	defer func() { queryDuration.Observe(time.Since(start).Seconds()) }()

	now := r.now()
	matched := filterNodes(r.snapshot(), caller, req)
	resp.Total = len(matched)

	switch req.SortDirection {
	case types.SortAscending:
		sort.SliceStable(matched, func(i, j int) bool { return matched[i].MinerName < matched[j].MinerName })
	case types.SortDescending:
		sort.SliceStable(matched, func(i, j int) bool { return matched[i].MinerName > matched[j].MinerName })
	}

	resp.CoinSnapshots, resp.OnlineCount, resp.MiningCount = coinSnapshots(matched, r.policy, now)

	for _, n := range page(matched, req.PageIndex, req.PageSize) {
		resp.Nodes = append(resp.Nodes, scrub(*n))
	}
	r.policy.CheckIsOnline(resp.Nodes, now)
	return resp
}

// page returns the 1-based pageIndex of size pageSize. A non-positive size
// selects nothing.
func page(nodes []*types.Node, pageIndex, pageSize int) []*types.Node {
	if pageSize <= 0 {
		return nil
	}
	if pageIndex < 1 {
		pageIndex = 1
	}
	skip := (pageIndex - 1) * pageSize
	if skip >= len(nodes) {
		return nil
	}
	end := skip + pageSize
	if end > len(nodes) {
		end = len(nodes)
	}
	return nodes[skip:end]
}

func filterNodes(nodes []*types.Node, caller *Caller, req types.QueryNodesRequest) []*types.Node {
	name := strings.ToLower(req.MinerName)
	kernel := strings.ToLower(req.Kernel)
	out := make([]*types.Node, 0, len(nodes))
	for _, n := range nodes {
		if caller != nil && !caller.IsAdmin && n.LoginName != caller.LoginName {
			continue
		}
		if req.GroupID != uuid.Nil && n.GroupID != req.GroupID {
			continue
		}
		switch req.MineState {
		case types.MineMining:
			if !n.IsMining {
				continue
			}
		case types.MineNotMining:
			if n.IsMining {
				continue
			}
		}
		if req.MinerIP != "" && n.MinerIP != req.MinerIP {
			continue
		}
		if name != "" && !strings.Contains(strings.ToLower(n.MinerName), name) &&
			!strings.Contains(strings.ToLower(n.WorkerName), name) {
			continue
		}
		if req.Version != "" && !strings.HasPrefix(n.Version, req.Version) {
			continue
		}
		if req.WorkID != uuid.Nil {
			if n.WorkID != req.WorkID {
				continue
			}
		} else if !matchMining(n, req, kernel) {
			continue
		}
		out = append(out, n)
	}
	return out
}

// matchMining applies the coin, pool, wallet and kernel filters of a query
// without a work.
func matchMining(n *types.Node, req types.QueryNodesRequest, kernel string) bool {
	if req.Coin != "" && n.MainCoinCode != req.Coin && n.DualCoinCode != req.Coin {
		return false
	}
	if req.Pool != "" && n.MainCoinPool != req.Pool && n.DualCoinPool != req.Pool {
		return false
	}
	if req.Wallet != "" && n.MainCoinWallet != req.Wallet && n.DualCoinWallet != req.Wallet {
		return false
	}
	if kernel != "" && !strings.HasPrefix(strings.ToLower(n.Kernel), kernel) {
		return false
	}
	return true
}
