//nolint:tagliatelle // wire compatibility
package model

import "fmt"

type Driver struct {
	RacingNumber  string `json:"RacingNumber"`
	BroadcastName string `json:"BroadcastName,omitempty"`
	FullName      string `json:"FullName,omitempty"`
	Tla           string `json:"Tla,omitempty"`
	Line          int    `json:"Line,omitempty"`
	TeamName      string `json:"TeamName,omitempty"`
	TeamColour    string `json:"TeamColour,omitempty"`
	FirstName     string `json:"FirstName,omitempty"`
	LastName      string `json:"LastName,omitempty"`
	Reference     string `json:"Reference,omitempty"`
	HeadshotUrl   string `json:"HeadshotUrl,omitempty"`
	CountryCode   string `json:"CountryCode,omitempty"`
}

func (d Driver) String() string {
	if d.Tla == "" {
		return d.RacingNumber
	}
	return fmt.Sprintf("%s (%s)", d.Tla, d.RacingNumber)
}
