package models

import "go.mongodb.org/mongo-driver/bson"

const (
	DonationAvailable = "available"
	DonationPending   = "pending"
	DonationCompleted = "completed"

	MaxDonationImages = 5
)

type Donation struct {
	Base         `bson:",inline"`
	Type         string        `bson:"type" json:"type" validate:"required,oneof=Food Clothes Books Other"`
	Title        string        `bson:"title" json:"title" validate:"required,max=120"`
	Description  string        `bson:"description" json:"description" validate:"required,max=2000"`
	Quantity     string        `bson:"quantity" json:"quantity" validate:"required,max=100"`
	FoodType     string        `bson:"food_type,omitempty" json:"food_type,omitempty" validate:"max=50"`
	DonorName    string        `bson:"donor_name,omitempty" json:"donor_name,omitempty" validate:"max=100"`
	Status       string        `bson:"status" json:"status" validate:"required,oneof=available pending completed"`
	Availability *Availability `bson:"availability,omitempty" json:"availability,omitempty" validate:"omitempty"`
	Location     *Location     `bson:"location" json:"location" validate:"required"`
	Images       []MediaRef    `bson:"images" json:"images" validate:"max=5"`
}

func (d *Donation) Media() map[string][]MediaRef {
	return map[string][]MediaRef{"images": d.Images}
}

func (d *Donation) SetMedia(field string, refs []MediaRef) {
	if field == "images" {
		d.Images = append([]MediaRef(nil), refs...)
	}
}

var Donations = &Kind[*Donation]{
	Name:       "donation",
	Path:       "donations",
	Collection: "donations",
	New: func() *Donation {
		return &Donation{Type: "Food", Status: DonationAvailable}
	},
	Slots: []Slot{{Field: "images", Policy: "donations", Max: MaxDonationImages}},
	Mutable: []string{
		"type", "title", "description", "quantity", "food_type", "donor_name",
		"status", "availability", "location",
	},
	JSONFields:  []string{"availability", "location"},
	Filterable:  []string{"type", "status", "food_type", "location.city", "location.state"},
	PublicScope: bson.M{"status": DonationAvailable},
}
