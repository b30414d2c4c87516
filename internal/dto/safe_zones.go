package dto

import "encoding/json"

// SafeZones carries the opaque zone definitions drawn on the dashboard.
type SafeZones struct {
	Zones []json.RawMessage `json:"zones"`
}
