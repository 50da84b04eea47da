package knowledge

// CommodityFloor is the configured constant valuation table used as the
// last-resort term of net-worth accounting (spec.md section 9 open
// question: "the precise commodity-floor valuations... are not fixed in
// the source; treat as a configured constant table").
var CommodityFloor = map[Commodity]int{
	CommodityFuel:      4,
	CommodityOrganics:  6,
	CommodityEquipment: 12,
}

// QuoteSource ranks where a per-unit valuation came from, highest
// precedence first (spec.md section 8, P10).
type QuoteSource int

const (
	QuoteObserved QuoteSource = iota
	QuoteParsedHint
	QuoteFloor
)

// Valuation picks the highest-precedence available quote for a
// commodity: an observed port price, else a parsed quote hint, else the
// commodity floor. Every term is guaranteed nonnegative.
func Valuation(commodity Commodity, observed, parsedHint *int) int {
	if observed != nil && *observed >= 0 {
		return *observed
	}
	if parsedHint != nil && *parsedHint >= 0 {
		return *parsedHint
	}
	if v, ok := CommodityFloor[commodity]; ok && v >= 0 {
		return v
	}
	return 0
}

// Holding is one commodity quantity carried in the bot's cargo holds.
type Holding struct {
	Commodity Commodity
	Qty       int
	Observed  *int
	Parsed    *int
}

// NetWorthEstimate computes credits + sum(qty * valuation) per spec.md
// section 8, P10.
func NetWorthEstimate(credits int, holdings []Holding) int {
	total := credits
	for _, h := range holdings {
		if h.Qty <= 0 {
			continue
		}
		total += h.Qty * Valuation(h.Commodity, h.Observed, h.Parsed)
	}
	return total
}

// Apply runs the full extraction catalog against screenText and merges
// discovered information into gs and the sector graph. It returns the
// sector id it attributed the update to, and whether a sector header was
// found at all (spec.md section 4.6).
func Apply(graph *Graph, gs *GameState, screenText string) (sector int, oriented bool) {
	sector, ok := ExtractSector(screenText)
	if !ok {
		gs.CurrentSectorConfirmed = false
		return gs.CurrentSector, false
	}

	scan := Scan{Warps: ExtractWarps(screenText)}
	if pc, ok := ExtractPortClass(screenText); ok {
		scan.HasPort = true
		scan.PortClass = pc
		for c := range commodityIndex {
			if PortBuys(pc, c) {
				scan.Buys = append(scan.Buys, c)
			}
			if PortSells(pc, c) {
				scan.Sells = append(scan.Sells, c)
			}
		}
	}
	if !scan.IsEmpty() {
		graph.MarkScanned(sector, scan)
	} else {
		graph.MarkVisited(sector)
	}

	gs.CurrentSector = sector
	gs.CurrentSectorConfirmed = true

	if credits, ok := ExtractCredits(screenText); ok {
		gs.Credits = credits
		gs.CreditsVerified = true
	}
	if used, total, ok := ExtractHolds(screenText); ok {
		gs.HoldsUsed = used
		gs.HoldsTotal = total
	}
	if turns, ok := ExtractTurns(screenText); ok {
		gs.TurnsRemaining = turns
	}

	return sector, true
}
