//nolint:tagliatelle // wire compatibility
package model

import "fmt"

type ExtrapolatedClock struct {
	Utc           string `json:"Utc,omitempty"`
	Remaining     string `json:"Remaining,omitempty"`
	Extrapolating bool   `json:"Extrapolating"`
}

type LapCount struct {
	CurrentLap int `json:"CurrentLap,omitempty"`
	TotalLaps  int `json:"TotalLaps,omitempty"`
}

type TrackStatus struct {
	Status  string `json:"Status"`
	Message string `json:"Message,omitempty"`
}

var trackStatusText = map[string]string{
	"1": "All Clear",
	"2": "Yellow",
	"3": "Green",
	"4": "Safety Car Deployed",
	"5": "Red",
	"6": "Virtual Safety Car Deployed",
	"7": "Virtual Safety Car Ending",
}

// Description returns a readable text for the status code.
// Unknown codes are returned as is.
func (t TrackStatus) Description() string {
	if s, ok := trackStatusText[t.Status]; ok {
		return s
	}
	return t.Status
}

type ArchiveStatus struct {
	Status string `json:"Status"`
}

type SessionStatus struct {
	Status string `json:"Status"`
}

type SessionInfo struct {
	Meeting       Meeting       `json:"Meeting"`
	ArchiveStatus ArchiveStatus `json:"ArchiveStatus"`
	Key           int           `json:"Key,omitempty"`
	Type          string        `json:"Type,omitempty"`
	Name          string        `json:"Name,omitempty"`
	StartDate     string        `json:"StartDate,omitempty"`
	EndDate       string        `json:"EndDate,omitempty"`
	GmtOffset     string        `json:"GmtOffset,omitempty"`
	Path          string        `json:"Path,omitempty"`
}

type Meeting struct {
	Key          int     `json:"Key,omitempty"`
	Name         string  `json:"Name,omitempty"`
	OfficialName string  `json:"OfficialName,omitempty"`
	Location     string  `json:"Location,omitempty"`
	Country      Country `json:"Country"`
	Circuit      Circuit `json:"Circuit"`
}

type Country struct {
	Key  int    `json:"Key,omitempty"`
	Code string `json:"Code,omitempty"`
	Name string `json:"Name,omitempty"`
}

type Circuit struct {
	Key       int    `json:"Key,omitempty"`
	ShortName string `json:"ShortName,omitempty"`
}

func (s SessionInfo) String() string {
	return fmt.Sprintf("%s - %s (%s)", s.Meeting.Name, s.Name, s.Type)
}
