package consumer

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HydroNutri/Hardware/internal/models"
	"github.com/HydroNutri/Hardware/internal/protocol"
)

func putFloat32(buf []byte, offset int, v float32) {
	binary.LittleEndian.PutUint32(buf[offset:offset+4], math.Float32bits(v))
}

func TestDecodeReading_Tank(t *testing.T) {
	payload := make([]byte, 24)
	putFloat32(payload, 0, 24.5)
	putFloat32(payload, 4, 60.0)
	putFloat32(payload, 8, 7.2)
	putFloat32(payload, 12, 350)
	putFloat32(payload, 16, 2.5)
	putFloat32(payload, 20, 85.0)

	frame := &protocol.Frame{Source: protocol.ModuleTank, Command: protocol.CmdSensor, Payload: payload}
	reading, known, err := DecodeReading(frame)

	require.NoError(t, err)
	require.True(t, known)
	tank, ok := reading.(models.TankReading)
	require.True(t, ok)
	assert.InDelta(t, 24.5, tank.Temperature, 0.001)
	assert.InDelta(t, 7.2, tank.PH, 0.001)
	assert.InDelta(t, 85.0, tank.DissolvedOxygen, 0.001)
}

func TestDecodeReading_Grow(t *testing.T) {
	payload := make([]byte, 10)
	putFloat32(payload, 0, 23.0)
	putFloat32(payload, 4, 55.5)
	payload[8] = 0b0101
	payload[9] = 40

	frame := &protocol.Frame{Source: protocol.ModuleGrow, Command: protocol.CmdSensor, Payload: payload}
	reading, known, err := DecodeReading(frame)

	require.NoError(t, err)
	require.True(t, known)
	grow := reading.(models.GrowReading)
	assert.Equal(t, uint8(0b0101), grow.LeakBits)
	assert.Equal(t, uint8(40), grow.LEDBrightness)
	assert.InDelta(t, 55.5, grow.Humidity, 0.001)
}

func TestDecodeReading_Nutrient(t *testing.T) {
	payload := []byte{10, 10, 0, 0, 0xB8, 0x0B, 0xB8, 0x0B, 0xB8, 0x0B, 0x96, 0x00}

	frame := &protocol.Frame{Source: protocol.ModuleNutrient, Command: protocol.CmdSensor, Payload: payload}
	reading, known, err := DecodeReading(frame)

	require.NoError(t, err)
	require.True(t, known)
	nutri := reading.(models.NutrientReading)
	assert.Equal(t, [4]uint8{10, 10, 0, 0}, nutri.Ratios)
	assert.Equal(t, uint16(3000), nutri.Remaining[0])
	assert.Equal(t, uint16(150), nutri.Remaining[3])
}

func TestDecodeReading_Feed(t *testing.T) {
	frame := &protocol.Frame{
		Source:  protocol.ModuleFeed,
		Command: protocol.CmdSensor,
		Payload: []byte{0xF4, 0x01},
	}
	reading, known, err := DecodeReading(frame)

	require.NoError(t, err)
	require.True(t, known)
	assert.Equal(t, uint16(500), reading.(models.FeedReading).RemainingGrams)
}

func TestDecodeReading_UnknownPairIsSilent(t *testing.T) {
	frame := &protocol.Frame{Source: 0x77, Command: protocol.CmdSensor}

	reading, known, err := DecodeReading(frame)

	assert.NoError(t, err)
	assert.False(t, known)
	assert.Nil(t, reading)
}

func TestDecodeReading_ShortPayloadErrors(t *testing.T) {
	frame := &protocol.Frame{
		Source:  protocol.ModuleTank,
		Command: protocol.CmdSensor,
		Payload: []byte{1, 2, 3},
	}
	_, known, err := DecodeReading(frame)

	assert.True(t, known)
	assert.Error(t, err)
}
