package dto

import "time"

// Snapshot is the pull-based dashboard payload. Callers own the refresh
// schedule; the core keeps no timers.
type Snapshot struct {
	GeneratedAt       time.Time      `json:"generated_at"`
	Incidents         map[string]int `json:"incidents"`
	Animals           map[string]int `json:"animals"`
	ActiveAssignments int            `json:"active_assignments"`
	OpenIncidents     int            `json:"open_incidents"`
	InCustody         int            `json:"in_custody"`
}

// MapMarker positions one open incident on the dispatch map.
type MapMarker struct {
	ID           string  `db:"id" json:"id"`
	IncidentType string  `db:"incident_type" json:"incident_type"`
	Priority     string  `db:"priority" json:"priority"`
	Status       string  `db:"status" json:"status"`
	Latitude     float64 `db:"latitude" json:"latitude"`
	Longitude    float64 `db:"longitude" json:"longitude"`
}

// TrendPoint is one month of incident activity.
type TrendPoint struct {
	Month     string `db:"month" json:"month"`
	Submitted int    `db:"submitted" json:"submitted"`
	Resolved  int    `db:"resolved" json:"resolved"`
}

// TrendResponse wraps the monthly activity series.
type TrendResponse struct {
	Months []TrendPoint `json:"months"`
}

// RFIDLookupResponse is returned when a tag resolves.
type RFIDLookupResponse struct {
	RFID       string `json:"rfid"`
	PetName    string `json:"pet_name"`
	Species    string `json:"species"`
	Breed      string `json:"breed"`
	OwnerID    string `json:"owner_id"`
	OwnerName  string `json:"owner_name"`
	OwnerPhone string `json:"owner_phone"`
	OwnerEmail string `json:"owner_email"`
}
