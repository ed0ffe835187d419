package models

import "time"

// ModuleHealth tracks per-peripheral liveness. One instance exists per known
// peripheral kind for the controller's whole lifetime.
type ModuleHealth struct {
	ModuleID byte      `json:"module_id"`
	LastSeen time.Time `json:"last_seen"`
	OK       bool      `json:"ok"`
}

// SystemSnapshot is the latest known reading per peripheral kind plus the
// aggregate indicators derived from them. It is the single source of truth
// for reporting.
type SystemSnapshot struct {
	Tank     *TankReading     `json:"tank,omitempty"`
	Grow     *GrowReading     `json:"grow,omitempty"`
	Nutrient *NutrientReading `json:"nutrient,omitempty"`
	Feed     *FeedReading     `json:"feed,omitempty"`

	PeripheralsOK   bool `json:"peripherals_ok"`
	UplinkConnected bool `json:"uplink_connected"`
}

// Alarm is one active fault condition, keyed by Code.
type Alarm struct {
	Code     string    `json:"code"`
	Message  string    `json:"message"`
	RaisedAt time.Time `json:"raised_at"`
	Sticky   bool      `json:"sticky"`
}

// StatusRecord is the body of an uplink status packet (type 0x01).
type StatusRecord struct {
	TimestampMs     int64          `json:"ts"`
	Snapshot        SystemSnapshot `json:"state"`
	Alarms          []Alarm        `json:"alarms"`
	FirmwareVersion string         `json:"fw"`
}
