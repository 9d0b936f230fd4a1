package domain

// Direction is the directional bias of an event or signal.
type Direction string

// Direction constants.
const (
	DirectionBullish Direction = "bullish"
	DirectionBearish Direction = "bearish"
)

// Opposite returns the opposite direction.
func (d Direction) Opposite() Direction {
	if d == DirectionBullish {
		return DirectionBearish
	}
	return DirectionBullish
}

// SwingKind distinguishes swing highs from swing lows.
type SwingKind string

// Swing kind constants.
const (
	SwingHigh SwingKind = "high"
	SwingLow  SwingKind = "low"
)

// TrendState is the market structure trend derived from confirmed swings.
type TrendState string

// Trend state constants.
const (
	TrendUp           TrendState = "up"
	TrendDown         TrendState = "down"
	TrendUndetermined TrendState = "undetermined"
)

// SwingPoint is a confirmed local price extremum.
// A swing at bar index i is only confirmable once the symmetric window
// extends n bars past i, so ConfirmedAt >= Index + n.
type SwingPoint struct {
	Index       int // bar index of the extremum
	ConfirmedAt int // bar index at which the swing became known
	Price       float64
	Kind        SwingKind
}

// StructureEventKind distinguishes continuation breaks from reversals.
type StructureEventKind string

// Structure event kinds.
const (
	StructureBOS   StructureEventKind = "BOS"
	StructureChoCH StructureEventKind = "ChoCH"
)

// StructureEvent records a break of structure or change of character.
// Immutable once created.
type StructureEvent struct {
	Index     int // bar index of the breaking close
	Direction Direction
	Kind      StructureEventKind
	Swing     SwingPoint // the swing level that was broken
}

// ZoneKind distinguishes order blocks from fair value gaps.
type ZoneKind string

// Zone kinds.
const (
	ZoneOrderBlock   ZoneKind = "order_block"
	ZoneFairValueGap ZoneKind = "fair_value_gap"
)

// Zone is a price band of interest (order block or fair value gap).
// The band invariant PriceLow <= PriceHigh holds at all times. Only the
// derived fields (TouchCount, Filled, Consumed) evolve after creation;
// a zone is never deleted.
type Zone struct {
	Kind       ZoneKind
	Direction  Direction
	StartIndex int // first bar of the origin range
	EndIndex   int // last bar of the origin range
	CreatedAt  int // bar index at which the zone became known
	PriceLow   float64
	PriceHigh  float64
	Impulse    float64 // expansion amount in ATR units

	TouchCount int
	Filled     bool // price traded back through the full band (FVG)
	Consumed   bool // used for an entry, no longer eligible
}

// Contains reports whether price lies inside the zone band.
func (z *Zone) Contains(price float64) bool {
	return price >= z.PriceLow && price <= z.PriceHigh
}

// Intersects reports whether the [low, high] range overlaps the band.
func (z *Zone) Intersects(low, high float64) bool {
	return low <= z.PriceHigh && high >= z.PriceLow
}

// Strength is recomputed from the zone's impulse, touches and age.
// Older zones decay, touched zones gain weight.
func (z *Zone) Strength(currentIndex int) float64 {
	age := currentIndex - z.CreatedAt
	if age < 0 {
		age = 0
	}
	return z.Impulse * (1 + 0.1*float64(z.TouchCount)) / float64(age+1)
}

// LiquidityGrabEvent records a wick beyond a swing level that reclaimed
// within the configured window. Created only once both conditions hold.
type LiquidityGrabEvent struct {
	Direction    Direction
	SwingIndex   int // bar index of the swept swing
	WickIndex    int // bar whose wick extended beyond the level
	ReclaimIndex int // bar whose close reclaimed the level
	SwingPrice   float64
	WickPrice    float64 // the wick extreme
	Extension    float64 // distance beyond the swing level
}
