package strategy

import (
	"sort"

	"github.com/tw2kbot/tw2kbot/internal/knowledge"
)

// Pair is one precomputed (buy port, sell port, commodity) triple.
type Pair struct {
	BuySector  int
	SellSector int
	Commodity  knowledge.Commodity
	Profit     int
	Hops       int
}

// TravelCostFn estimates the travel cost (in the same unit as Profit)
// between two sectors, supplied by the caller so this package stays
// independent of the navigation package's graph-walk cost model.
type TravelCostFn func(from, to int) (cost int, hops int)

// BuildPairs scans shared.Graph for every (buy, sell, commodity) triple
// whose profit clears threshold within maxHops, sorted most profitable
// first (spec.md section 4.8).
func BuildPairs(graph *knowledge.Graph, prices map[int]map[knowledge.Commodity]int, holds int, travelCost TravelCostFn, threshold, maxHops int) []Pair {
	var pairs []Pair
	sectors := graph.SectorIDs()
	for _, buy := range sectors {
		buySK := graph.Get(buy)
		if buySK == nil || !buySK.HasPort {
			continue
		}
		for commodity := range buySK.PortSellsSet {
			buyPrice, ok := prices[buy][commodity]
			if !ok {
				continue
			}
			for _, sell := range sectors {
				if sell == buy {
					continue
				}
				sellSK := graph.Get(sell)
				if sellSK == nil || !sellSK.HasPort {
					continue
				}
				if _, buys := sellSK.PortBuysSet[commodity]; !buys {
					continue
				}
				sellPrice, ok := prices[sell][commodity]
				if !ok {
					continue
				}
				cost, hops := travelCost(buy, sell)
				if hops > maxHops {
					continue
				}
				profit := (sellPrice-buyPrice)*holds - cost
				if profit <= threshold {
					continue
				}
				pairs = append(pairs, Pair{
					BuySector:  buy,
					SellSector: sell,
					Commodity:  commodity,
					Profit:     profit,
					Hops:       hops,
				})
			}
		}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Profit > pairs[j].Profit })
	return pairs
}
