// internal/poller/planner.go
package poller

import (
	"sort"

	"github.com/tamzrod/modbus-monitor/internal/model"
)

const (
	// MaxRead is the largest block read in words. The protocol allows 125.
	MaxRead = 120
	// MaxGap is the largest run of unused addresses absorbed into a block.
	MaxGap = 20
)

// Plan groups registers into contiguous read blocks. Input order does not
// matter: a stable copy sorted by address is scanned greedily.
func Plan(regs []*model.Register) []ReadBlock {
	if len(regs) == 0 {
		return nil
	}

	sorted := make([]*model.Register, len(regs))
	copy(sorted, regs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Address < sorted[j].Address
	})

	var (
		blocks  []ReadBlock
		members = []*model.Register{sorted[0]}
		start   = int(sorted[0].Address)
		end     = sorted[0].End()
	)

	for _, r := range sorted[1:] {
		gap := int(r.Address) - end
		if gap <= MaxGap && r.End()-start <= MaxRead {
			members = append(members, r)
			end = max(end, r.End())
			continue
		}
		blocks = append(blocks, newBlock(start, end, members))
		members = []*model.Register{r}
		start = int(r.Address)
		end = r.End()
	}
	return append(blocks, newBlock(start, end, members))
}

func newBlock(start, end int, members []*model.Register) ReadBlock {
	return ReadBlock{
		Address:  uint16(start),
		Quantity: uint16(end - start),
		Members:  members,
	}
}

// buildPlans flattens registers into one record per polled slave, in
// ascending slave order. An empty slave set polls every slave that owns
// a register.
func buildPlans(regs []*model.Register, slaves []uint8) []devicePlan {
	bySlave := make(map[uint8][2][]*model.Register)
	for _, r := range regs {
		tiers := bySlave[r.Slave]
		tiers[r.Tier] = append(tiers[r.Tier], r)
		bySlave[r.Slave] = tiers
	}

	ids := slaves
	if len(ids) == 0 {
		for id := range bySlave {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}

	plans := make([]devicePlan, 0, len(ids))
	for _, id := range ids {
		tiers, ok := bySlave[id]
		if !ok {
			continue
		}
		plans = append(plans, devicePlan{
			slave: id,
			fast:  Plan(tiers[model.TierFast]),
			slow:  Plan(tiers[model.TierSlow]),
		})
	}
	return plans
}

// PlanAll plans defs the way the engine does and returns the blocks of
// each slave and tier, fast tier first.
func PlanAll(defs []model.Register) [][]ReadBlock {
	regs := make([]*model.Register, len(defs))
	for i := range defs {
		regs[i] = &defs[i]
	}

	var out [][]ReadBlock
	for _, p := range buildPlans(regs, nil) {
		out = append(out, p.fast, p.slow)
	}
	return out
}
