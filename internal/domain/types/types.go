// Package types contains common types used across the application
package types

// Standing represents one row of the league standings.
type Standing struct {
	Rank         int     `json:"rank"`
	TeamID       string  `json:"team_id"`
	Rating       float64 `json:"rating"`
	LastMatchKey string  `json:"last_match_key,omitempty"`
}
