// Package knowledge implements orientation extraction, sector knowledge
// accumulation, loop detection, and net-worth accounting (spec.md
// section 4.6), grounded on the teacher's map-keyed-by-int storage idiom
// used in internal/conference for room registries — the sector graph is
// likewise an arena keyed by integer id rather than an object graph, so
// the cyclic warp structure never creates ownership cycles.
package knowledge

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Commodity enumerates the three tradeable goods spec-wide.
type Commodity string

const (
	CommodityFuel      Commodity = "fuel"
	CommodityOrganics  Commodity = "organics"
	CommodityEquipment Commodity = "equipment"
)

// PortClass is one of the eight TW2002 buy/sell mask codes plus "special".
type PortClass string

const (
	PortClassBBS     PortClass = "BBS"
	PortClassBSB     PortClass = "BSB"
	PortClassSBB     PortClass = "SBB"
	PortClassSSB     PortClass = "SSB"
	PortClassSBS     PortClass = "SBS"
	PortClassBSS     PortClass = "BSS"
	PortClassSSS     PortClass = "SSS"
	PortClassBBB     PortClass = "BBB"
	PortClassSpecial PortClass = "special"
)

// portClassMasks maps each class's positions (fuel, organics, equipment)
// to 'B' (port buys from the bot) or 'S' (port sells to the bot).
var portClassMasks = map[PortClass][3]byte{
	PortClassBBS: {'B', 'B', 'S'},
	PortClassBSB: {'B', 'S', 'B'},
	PortClassSBB: {'S', 'B', 'B'},
	PortClassSSB: {'S', 'S', 'B'},
	PortClassSBS: {'S', 'B', 'S'},
	PortClassBSS: {'B', 'S', 'S'},
	PortClassSSS: {'S', 'S', 'S'},
	PortClassBBB: {'B', 'B', 'B'},
}

var commodityIndex = map[Commodity]int{
	CommodityFuel:      0,
	CommodityOrganics:  1,
	CommodityEquipment: 2,
}

// PortBuys reports whether the port (of class pc) buys commodity c from
// the bot — the side on which a `sell` action is legal.
func PortBuys(pc PortClass, c Commodity) bool {
	mask, ok := portClassMasks[pc]
	if !ok {
		return false
	}
	return mask[commodityIndex[c]] == 'B'
}

// PortSells reports whether the port sells commodity c to the bot — the
// side on which a `buy` action is legal.
func PortSells(pc PortClass, c Commodity) bool {
	mask, ok := portClassMasks[pc]
	if !ok {
		return false
	}
	return mask[commodityIndex[c]] == 'S'
}

// SectorKnowledge is one node of the sector graph arena (spec.md section 3).
type SectorKnowledge struct {
	SectorID      int
	Warps         map[int]struct{}
	HasPort       bool
	PortClass     PortClass
	PortBuysSet   map[Commodity]struct{}
	PortSellsSet  map[Commodity]struct{}
	LastVisitedTS time.Time
	LastScannedTS time.Time
	DangerLevel   int
}

func newSectorKnowledge(id int) *SectorKnowledge {
	return &SectorKnowledge{
		SectorID:     id,
		Warps:        make(map[int]struct{}),
		PortBuysSet:  make(map[Commodity]struct{}),
		PortSellsSet: make(map[Commodity]struct{}),
	}
}

// Scan is the discovered-data payload passed to MarkScanned; it must
// never be the zero value (spec.md section 4.6: "never an empty marker").
type Scan struct {
	Warps     []int
	HasPort   bool
	PortClass PortClass
	Buys      []Commodity
	Sells     []Commodity
	Danger    int
}

// IsEmpty reports whether a Scan carries no discovered information,
// guarding against poisoning the cache with a knows-nothing mark.
func (s Scan) IsEmpty() bool {
	return len(s.Warps) == 0 && !s.HasPort && len(s.Buys) == 0 && len(s.Sells) == 0
}

// Graph is the arena of SectorKnowledge records, keyed by integer sector
// id (spec.md section 9: "bypasses ownership cycles entirely").
type Graph struct {
	sectors map[int]*SectorKnowledge
}

// NewGraph returns an empty sector graph.
func NewGraph() *Graph {
	return &Graph{sectors: make(map[int]*SectorKnowledge)}
}

// Get returns the knowledge record for id, or nil if it has never been
// observed.
func (g *Graph) Get(id int) *SectorKnowledge {
	return g.sectors[id]
}

// MarkScanned merges scan into the record for sectorID, creating it if
// necessary. It is monotonic (spec.md section 8, P6): warps/buys/sells
// sets only grow, and port_class only transitions from unset to set or
// stays equal. Calling with an empty Scan is a caller error and is a
// no-op here rather than a poisoning write.
func (g *Graph) MarkScanned(sectorID int, scan Scan) {
	if scan.IsEmpty() {
		return
	}
	sk, ok := g.sectors[sectorID]
	if !ok {
		sk = newSectorKnowledge(sectorID)
		g.sectors[sectorID] = sk
	}
	now := time.Now()
	for _, w := range scan.Warps {
		sk.Warps[w] = struct{}{}
	}
	if scan.HasPort {
		sk.HasPort = true
	}
	if scan.PortClass != "" && sk.PortClass == "" {
		sk.PortClass = scan.PortClass
	}
	for _, c := range scan.Buys {
		sk.PortBuysSet[c] = struct{}{}
	}
	for _, c := range scan.Sells {
		sk.PortSellsSet[c] = struct{}{}
	}
	if scan.Danger > sk.DangerLevel {
		sk.DangerLevel = scan.Danger
	}
	sk.LastScannedTS = now
	sk.LastVisitedTS = now
}

// MarkVisited records a visit to sectorID without asserting any new
// knowledge (e.g. passing through without a scan).
func (g *Graph) MarkVisited(sectorID int) {
	sk, ok := g.sectors[sectorID]
	if !ok {
		sk = newSectorKnowledge(sectorID)
		g.sectors[sectorID] = sk
	}
	sk.LastVisitedTS = time.Now()
}

// SectorIDs returns every sector id with a knowledge record, in no
// particular order.
func (g *Graph) SectorIDs() []int {
	ids := make([]int, 0, len(g.sectors))
	for id := range g.sectors {
		ids = append(ids, id)
	}
	return ids
}

// Neighbors returns the known warp targets from sectorID, or nil if the
// sector has never been observed; a sector only visited, never scanned,
// yields an empty non-nil slice.
func (g *Graph) Neighbors(sectorID int) []int {
	sk, ok := g.sectors[sectorID]
	if !ok {
		return nil
	}
	out := make([]int, 0, len(sk.Warps))
	for w := range sk.Warps {
		out = append(out, w)
	}
	return out
}

// GameState is the bot's live, authoritative game state (spec.md section 3).
type GameState struct {
	CurrentSector          int
	CurrentSectorConfirmed bool
	Credits                int
	HoldsUsed              int
	HoldsTotal             int
	TurnsRemaining         int
	CreditsVerified        bool
	CreditsLastVerifiedTS  time.Time
	NetWorthEstimate       int
	PendingTrade           bool
	RecentActions          []ActionOutcome
	DangerCooldowns        map[int]time.Time
}

// ActionOutcome is one entry of the bounded recent-actions history.
type ActionOutcome struct {
	Action  string
	Outcome string
	At      time.Time
}

const maxRecentActions = 50

// RecordOutcome appends to RecentActions, dropping the oldest entry once
// the bounded-sequence capacity is exceeded.
func (gs *GameState) RecordOutcome(action, outcome string) {
	gs.RecentActions = append(gs.RecentActions, ActionOutcome{Action: action, Outcome: outcome, At: time.Now()})
	if len(gs.RecentActions) > maxRecentActions {
		gs.RecentActions = gs.RecentActions[len(gs.RecentActions)-maxRecentActions:]
	}
}

// Extraction patterns (spec.md section 4.6).
var (
	sectorHeaderRe = regexp.MustCompile(`Sector\s*[:\[]?\s*(\d+)`)
	warpListRe     = regexp.MustCompile(`(?i)Warps to Sector\(s\)\s*:\s*([0-9 \-]+)`)
	portClassRe    = regexp.MustCompile(`Class\s+(\d)\s*\(([A-Za-z]+)\)`)
	creditsRe      = regexp.MustCompile(`Credits\s*:?\s*([\d,]+)`)
	holdsRe        = regexp.MustCompile(`Holds\s*:?\s*(\d+)\s*/\s*(\d+)`)
	turnsRe        = regexp.MustCompile(`Turns\s*(?:left|remaining)?\s*:?\s*(\d+)`)
)

// ExtractSector returns the last `Sector [<n>]`-shaped occurrence in text
// (spec.md section 8, P5: "current_sector equals the last integer found").
func ExtractSector(text string) (int, bool) {
	matches := sectorHeaderRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return 0, false
	}
	last := matches[len(matches)-1]
	n, err := strconv.Atoi(last[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// ExtractWarps parses a "Warps to Sector(s) : 12 - 45 - 88" line into its
// integer sector ids.
func ExtractWarps(text string) []int {
	m := warpListRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	fields := strings.FieldsFunc(m[1], func(r rune) bool {
		return r == '-' || r == ' '
	})
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		if n, err := strconv.Atoi(f); err == nil {
			out = append(out, n)
		}
	}
	return out
}

// ExtractPortClass parses a "Class 4 (BSB)" line into a PortClass.
func ExtractPortClass(text string) (PortClass, bool) {
	m := portClassRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	pc := PortClass(strings.ToUpper(m[2]))
	if _, ok := portClassMasks[pc]; !ok {
		return "", false
	}
	return pc, true
}

// ExtractCredits parses a "Credits : 12,345" style status line.
func ExtractCredits(text string) (int, bool) {
	m := creditsRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return 0, false
	}
	return n, true
}

// ExtractHolds parses a "Holds : 12/20" style line into used/total.
func ExtractHolds(text string) (used, total int, ok bool) {
	m := holdsRe.FindStringSubmatch(text)
	if m == nil {
		return 0, 0, false
	}
	u, err1 := strconv.Atoi(m[1])
	t, err2 := strconv.Atoi(m[2])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return u, t, true
}

// ExtractTurns parses a "Turns left : 150" style line.
func ExtractTurns(text string) (int, bool) {
	m := turnsRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
