package models

import "time"

// RFIDBinding associates a 9-digit tag with a registered pet and its owner.
type RFIDBinding struct {
	ID         string    `db:"id" json:"id"`
	RFID       string    `db:"rfid" json:"rfid"`
	PetName    string    `db:"pet_name" json:"pet_name"`
	Species    string    `db:"species" json:"species"`
	Breed      string    `db:"breed" json:"breed"`
	OwnerID    string    `db:"owner_id" json:"owner_id"`
	OwnerName  string    `db:"owner_name" json:"owner_name"`
	OwnerPhone string    `db:"owner_phone" json:"owner_phone"`
	OwnerEmail string    `db:"owner_email" json:"owner_email"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
