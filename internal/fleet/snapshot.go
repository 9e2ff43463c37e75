package fleet

import (
	"sort"
	"time"

	"fleetd/pkg/types"
)

// coinSnapshots aggregates nodes per coin code. A node mines only while it is
// online; speed sums cover mining nodes. Snapshots are ordered by coin code.
func coinSnapshots(nodes []*types.Node, policy OnlinePolicy, now time.Time) (snaps []types.CoinSnapshot, online, mining int) {
	byCoin := make(map[string]*types.CoinSnapshot)
	get := func(code string) *types.CoinSnapshot {
		s, ok := byCoin[code]
		if !ok {
			s = &types.CoinSnapshot{CoinCode: code}
			byCoin[code] = s
		}
		return s
	}
	for _, n := range nodes {
		if !policy.IsOnline(n, now) {
			continue
		}
		online++
		isMining := n.IsMining
		if isMining {
			mining++
		}
		if n.MainCoinCode != "" {
			s := get(n.MainCoinCode)
			s.MainCoinOnlineCount++
			if isMining {
				s.MainCoinMiningCount++
				s.Speed += n.MainCoinSpeed
			}
		}
		if n.IsDualCoinEnabled && n.DualCoinCode != "" {
			s := get(n.DualCoinCode)
			s.DualCoinOnlineCount++
			if isMining {
				s.DualCoinMiningCount++
				s.Speed += n.DualCoinSpeed
			}
		}
	}
	snaps = make([]types.CoinSnapshot, 0, len(byCoin))
	for _, s := range byCoin {
		snaps = append(snaps, *s)
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].CoinCode < snaps[j].CoinCode })
	return snaps, online, mining
}

func count(nodes []*types.Node, policy OnlinePolicy, now time.Time) types.NodeCount {
	_, online, mining := coinSnapshots(nodes, policy, now)
	return types.NodeCount{Total: len(nodes), OnlineCount: online, MiningCount: mining}
}
