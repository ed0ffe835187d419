package sim

import (
	"encoding/binary"
	"math"

	"github.com/HydroNutri/Hardware/internal/models"
)

// EncodeTank packs a tank reading into the on-bus sensor payload.
func EncodeTank(r models.TankReading) []byte {
	payload := make([]byte, 0, 24)
	for _, v := range []float32{r.Temperature, r.Level, r.PH, r.TDS, r.Turbidity, r.DissolvedOxygen} {
		payload = binary.LittleEndian.AppendUint32(payload, math.Float32bits(v))
	}
	return payload
}

// EncodeGrow packs a grow chamber reading into the on-bus sensor payload.
func EncodeGrow(r models.GrowReading) []byte {
	payload := make([]byte, 0, 10)
	payload = binary.LittleEndian.AppendUint32(payload, math.Float32bits(r.Temperature))
	payload = binary.LittleEndian.AppendUint32(payload, math.Float32bits(r.Humidity))
	return append(payload, r.LeakBits, r.LEDBrightness)
}

// EncodeNutrient packs a nutrient reservoir reading into the on-bus sensor payload.
func EncodeNutrient(r models.NutrientReading) []byte {
	payload := make([]byte, 0, 12)
	payload = append(payload, r.Ratios[:]...)
	for _, remaining := range r.Remaining {
		payload = binary.LittleEndian.AppendUint16(payload, remaining)
	}
	return payload
}

// EncodeFeed packs a feeder reading into the on-bus sensor payload.
func EncodeFeed(r models.FeedReading) []byte {
	return binary.LittleEndian.AppendUint16(nil, r.RemainingGrams)
}
