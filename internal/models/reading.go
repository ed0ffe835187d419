package models

// ReadingKind identifies the peripheral a reading came from.
type ReadingKind string

const (
	KindTank     ReadingKind = "tank"
	KindGrow     ReadingKind = "grow"
	KindNutrient ReadingKind = "nutrient"
	KindFeed     ReadingKind = "feed"
)

// Reading is one decoded peripheral measurement. Produced once per decoded
// frame and consumed immediately to update the snapshot; not retained.
type Reading interface {
	Kind() ReadingKind
}

// TankReading carries the water-tank sensor set.
type TankReading struct {
	Temperature     float32 `json:"temp"`      // °C
	Level           float32 `json:"level"`     // mm
	PH              float32 `json:"ph"`        //
	TDS             float32 `json:"tds"`       // ppm
	Turbidity       float32 `json:"turb"`      // NTU
	DissolvedOxygen float32 `json:"do"`        // %
}

func (TankReading) Kind() ReadingKind { return KindTank }

// GrowReading carries grow-bed climate, the leak-sensor bitfield and the
// currently applied plant LED brightness.
type GrowReading struct {
	Temperature   float32 `json:"temp"` // °C
	Humidity      float32 `json:"hum"`  // %
	LeakBits      uint8   `json:"leak"` // one bit per leak sensor
	LEDBrightness uint8   `json:"led"`  // 0-100
}

func (GrowReading) Kind() ReadingKind { return KindGrow }

// NutrientChannels is the number of dosing channels (A-D).
const NutrientChannels = 4

// NutrientReading carries per-channel mixing ratios and remaining volume.
type NutrientReading struct {
	Ratios    [NutrientChannels]uint8  `json:"ratio"`  // relative parts
	Remaining [NutrientChannels]uint16 `json:"remain"` // ml
}

func (NutrientReading) Kind() ReadingKind { return KindNutrient }

// FeedReading carries the feeder hopper fill level.
type FeedReading struct {
	RemainingGrams uint16 `json:"remain_g"`
}

func (FeedReading) Kind() ReadingKind { return KindFeed }
