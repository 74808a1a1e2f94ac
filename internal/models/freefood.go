package models

type FreeFoodListing struct {
	Base         `bson:",inline"`
	Type         string        `bson:"type,omitempty" json:"type,omitempty" validate:"max=50"`
	Venue        string        `bson:"venue" json:"venue" validate:"required,max=200"`
	FoodType     string        `bson:"food_type" json:"food_type" validate:"required,max=50"`
	OrganizedBy  string        `bson:"organized_by,omitempty" json:"organized_by,omitempty" validate:"max=100"`
	Availability *Availability `bson:"availability,omitempty" json:"availability,omitempty" validate:"omitempty"`
	Location     *Location     `bson:"location,omitempty" json:"location,omitempty" validate:"omitempty"`
	VenueImage   *MediaRef     `bson:"venue_image,omitempty" json:"venue_image,omitempty"`
}

func (f *FreeFoodListing) Media() map[string][]MediaRef {
	return map[string][]MediaRef{"venue_image": one(f.VenueImage)}
}

func (f *FreeFoodListing) SetMedia(field string, refs []MediaRef) {
	if field == "venue_image" {
		f.VenueImage = first(refs)
	}
}

var FreeFood = &Kind[*FreeFoodListing]{
	Name:       "free food listing",
	Path:       "free-food",
	Collection: "free_food",
	New:        func() *FreeFoodListing { return &FreeFoodListing{} },
	Slots:      []Slot{{Field: "venue_image", Policy: "free-food", Max: 1}},
	Mutable:    []string{"type", "venue", "food_type", "organized_by", "availability", "location"},
	JSONFields: []string{"availability", "location"},
	Filterable: []string{"type", "food_type", "location.city", "location.state"},
}
