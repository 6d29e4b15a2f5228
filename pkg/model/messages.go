//nolint:tagliatelle // wire compatibility
package model

type RaceControlMessage struct {
	Utc          string `json:"Utc,omitempty"`
	Category     string `json:"Category"`
	Message      string `json:"Message"`
	Flag         string `json:"Flag,omitempty"`
	Scope        string `json:"Scope,omitempty"`
	RacingNumber string `json:"RacingNumber,omitempty"`
	Sector       int    `json:"Sector,omitempty"`
	Lap          int    `json:"Lap,omitempty"`
	Status       string `json:"Status,omitempty"`
	Mode         string `json:"Mode,omitempty"`
}

type TeamRadioCapture struct {
	Utc          string `json:"Utc,omitempty"`
	RacingNumber string `json:"RacingNumber"`
	Path         string `json:"Path"`
}

// Stream describes an entry of AudioStreams or ContentStreams.
type Stream struct {
	Type     string `json:"Type,omitempty"`
	Name     string `json:"Name,omitempty"`
	Language string `json:"Language,omitempty"`
	Uri      string `json:"Uri"`
	Path     string `json:"Path,omitempty"`
	Utc      string `json:"Utc,omitempty"`
}
