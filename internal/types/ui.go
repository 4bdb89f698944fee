package types

type StageStats struct {
	Pushed  uint64 `json:"pushed"`
	Dropped uint64 `json:"dropped"`
	Sent    uint64 `json:"sent"`
}

type UIStatus struct {
	Type    string                `json:"type"`
	Session string                `json:"session"`
	Stages  map[string]StageStats `json:"stages"`
	Control *ControlState         `json:"control,omitempty"`
}
