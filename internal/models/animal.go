package models

import "time"

// AnimalStatus is the closed set of captured-animal lifecycle states.
type AnimalStatus string

const (
	AnimalCaptured         AnimalStatus = "captured"
	AnimalUnderObservation AnimalStatus = "under_observation"
	AnimalAvailable        AnimalStatus = "available_for_adoption"
	AnimalRedeemed         AnimalStatus = "redeemed"
	AnimalAdopted          AnimalStatus = "adopted"
)

// Terminal reports whether the animal has left custody.
func (s AnimalStatus) Terminal() bool {
	return s == AnimalRedeemed || s == AnimalAdopted
}

// AnimalSex is recorded at intake.
type AnimalSex string

const (
	AnimalSexMale    AnimalSex = "male"
	AnimalSexFemale  AnimalSex = "female"
	AnimalSexUnknown AnimalSex = "unknown"
)

// Animal is a stray taken into custody.
type Animal struct {
	ID              string       `db:"id" json:"id"`
	RFID            *string      `db:"rfid" json:"rfid,omitempty"`
	Name            string       `db:"name" json:"name"`
	Species         string       `db:"species" json:"species"`
	Breed           string       `db:"breed" json:"breed"`
	Sex             AnimalSex    `db:"sex" json:"sex"`
	Color           string       `db:"color" json:"color"`
	Markings        string       `db:"markings" json:"markings"`
	Neutered        bool         `db:"neutered" json:"neutered"`
	Status          AnimalStatus `db:"status" json:"status"`
	CaptureDate     time.Time    `db:"capture_date" json:"capture_date"`
	CaptureLocation string       `db:"capture_location" json:"capture_location"`
	CapturedBy      string       `db:"captured_by" json:"captured_by"`
	IncidentID      *string      `db:"incident_id" json:"incident_id,omitempty"`
	OwnerContact    *string      `db:"owner_contact" json:"owner_contact,omitempty"`
	TransitionedAt  time.Time    `db:"transitioned_at" json:"transitioned_at"`
	CreatedAt       time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at" json:"updated_at"`
}

// ObservationEntry is one append-only observation log record. Corrections are
// made by appending a new entry, never by editing history.
type ObservationEntry struct {
	ID         string       `db:"id" json:"id"`
	AnimalID   string       `db:"animal_id" json:"animal_id"`
	Date       time.Time    `db:"date" json:"date"`
	Notes      string       `db:"notes" json:"notes"`
	Status     AnimalStatus `db:"status" json:"status"`
	RecordedBy string       `db:"recorded_by" json:"recorded_by"`
	CreatedAt  time.Time    `db:"created_at" json:"created_at"`
}

// AnimalFilter captures listing criteria for animals.
type AnimalFilter struct {
	Statuses []AnimalStatus
	Species  string
	RFIDOnly bool
	Page     int
	PageSize int
}
