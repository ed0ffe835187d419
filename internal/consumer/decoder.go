package consumer

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/HydroNutri/Hardware/internal/models"
	"github.com/HydroNutri/Hardware/internal/protocol"
)

// PayloadDecoder turns a raw frame payload into a typed reading.
type PayloadDecoder func(payload []byte) (models.Reading, error)

type decodeKey struct {
	source  byte
	command byte
}

// decodeTable maps (source, command) to its payload decoder. Peripheral
// evolution adds table entries; unknown pairs are dropped by the caller.
var decodeTable = map[decodeKey]PayloadDecoder{
	{protocol.ModuleTank, protocol.CmdSensor}:     decodeTankSensor,
	{protocol.ModuleGrow, protocol.CmdSensor}:     decodeGrowSensor,
	{protocol.ModuleNutrient, protocol.CmdSensor}: decodeNutrientSensor,
	{protocol.ModuleFeed, protocol.CmdSensor}:     decodeFeedSensor,
}

// DecodeReading looks up the payload decoder for the frame. known=false
// means the (source, command) pair has no table entry and the frame should
// be dropped silently.
func DecodeReading(f *protocol.Frame) (reading models.Reading, known bool, err error) {
	dec, ok := decodeTable[decodeKey{f.Source, f.Command}]
	if !ok {
		return nil, false, nil
	}
	r, err := dec(f.Payload)
	if err != nil {
		return nil, true, err
	}
	return r, true, nil
}

func float32At(payload []byte, offset int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(payload[offset : offset+4]))
}

// Tank sensor payload: six little-endian float32 values (24 bytes).
func decodeTankSensor(payload []byte) (models.Reading, error) {
	if len(payload) < 24 {
		return nil, fmt.Errorf("tank sensor payload too short: %d bytes", len(payload))
	}
	return models.TankReading{
		Temperature:     float32At(payload, 0),
		Level:           float32At(payload, 4),
		PH:              float32At(payload, 8),
		TDS:             float32At(payload, 12),
		Turbidity:       float32At(payload, 16),
		DissolvedOxygen: float32At(payload, 20),
	}, nil
}

// Grow sensor payload: two float32 plus leak bitfield and LED brightness (10 bytes).
func decodeGrowSensor(payload []byte) (models.Reading, error) {
	if len(payload) < 10 {
		return nil, fmt.Errorf("grow sensor payload too short: %d bytes", len(payload))
	}
	return models.GrowReading{
		Temperature:   float32At(payload, 0),
		Humidity:      float32At(payload, 4),
		LeakBits:      payload[8],
		LEDBrightness: payload[9],
	}, nil
}

// Nutrient sensor payload: four ratio bytes then four little-endian uint16
// remaining volumes (12 bytes).
func decodeNutrientSensor(payload []byte) (models.Reading, error) {
	if len(payload) < 12 {
		return nil, fmt.Errorf("nutrient sensor payload too short: %d bytes", len(payload))
	}
	var r models.NutrientReading
	copy(r.Ratios[:], payload[:4])
	for i := 0; i < models.NutrientChannels; i++ {
		r.Remaining[i] = binary.LittleEndian.Uint16(payload[4+2*i : 6+2*i])
	}
	return r, nil
}

// Feed sensor payload: one little-endian uint16 remaining mass (2 bytes).
func decodeFeedSensor(payload []byte) (models.Reading, error) {
	if len(payload) < 2 {
		return nil, fmt.Errorf("feed sensor payload too short: %d bytes", len(payload))
	}
	return models.FeedReading{
		RemainingGrams: binary.LittleEndian.Uint16(payload[:2]),
	}, nil
}
