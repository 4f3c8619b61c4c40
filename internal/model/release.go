package model

import "time"

// ReleaseEvent describes a completed release cascade. It is handed to the
// notification side after the owner's status change has committed.
type ReleaseEvent struct {
	OwnerID          string     `json:"owner_id"`
	OwnerDisplayName string     `json:"owner_display_name"`
	ConfirmedBy      string     `json:"confirmed_by"`
	ConfirmedAt      time.Time  `json:"confirmed_at"`
	Videos           []*Video   `json:"-"`
	VideoCount       int        `json:"video_count"`
	Grants           int        `json:"grants"`
	Trusted          []*Contact `json:"-"`
	Regular          []*Contact `json:"-"`
}
