package models

// FeedScheduleEntry dispenses Grams of feed when the wall clock reaches At.
type FeedScheduleEntry struct {
	At    string `json:"hh"` // "HH:MM"
	Grams int    `json:"g"`
}

// LightScheduleEntry switches the grow LED on at On with Brightness and off at Off.
type LightScheduleEntry struct {
	On         string `json:"on"`  // "HH:MM"
	Off        string `json:"off"` // "HH:MM"
	Brightness int    `json:"brightness"`
}

// Settings is the persisted controller configuration. Mirrors the NVS layout
// of the device firmware.
type Settings struct {
	FeedSchedule      []FeedScheduleEntry  `json:"feed_schedule"`
	NutrientRatio     map[string]int       `json:"nutrient_ratio"`
	NutrientAmountML  map[string]int       `json:"nutrient_amount_ml"`
	GrowLEDBrightness int                  `json:"grow_led_brightness"` // 0-100
	GrowLEDSchedule   []LightScheduleEntry `json:"grow_led_schedule"`
	ScreenOff         string               `json:"screen_off"` // "30s"|"60s"|"300s"|"none"
	ModuleEnable      map[string]bool      `json:"module_enable"`
	TimeSyncFromSrv   bool                 `json:"time_sync_from_server"`
	FirmwareVersion   string               `json:"fw_version"`
}

// DefaultSettings returns the factory configuration.
func DefaultSettings() Settings {
	return Settings{
		FeedSchedule:     []FeedScheduleEntry{},
		NutrientRatio:    map[string]int{"A": 0, "B": 0, "C": 0, "D": 0},
		NutrientAmountML: map[string]int{"A": 0, "B": 0, "C": 0, "D": 0},
		GrowLEDSchedule:  []LightScheduleEntry{},
		ScreenOff:        "60s",
		ModuleEnable: map[string]bool{
			"tank": true, "grow": true, "nutri": true, "feed": true,
		},
		TimeSyncFromSrv: true,
		FirmwareVersion: "0.1.0",
	}
}

// LogEntry is one audit record appended to the settings/log store.
type LogEntry struct {
	ID          string                 `json:"id"`
	Type        string                 `json:"type"`
	TimestampMs int64                  `json:"ts"`
	Fields      map[string]interface{} `json:"fields,omitempty"`
}

// Audit record types.
const (
	LogTypeAlarm      = "ALARM"
	LogTypeAlarmClear = "ALARM_CLEAR"
	LogTypeFeed       = "FEED"
	LogTypeGrowLight  = "GROW_LIGHT"
)
