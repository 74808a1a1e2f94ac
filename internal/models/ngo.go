package models

type NGO struct {
	Base               `bson:",inline"`
	OrganizationName   string    `bson:"organization_name" json:"organization_name" validate:"required,max=200"`
	OrganizationEmail  string    `bson:"organization_email" json:"organization_email" validate:"required,email"`
	Phone              string    `bson:"phone,omitempty" json:"phone,omitempty" validate:"max=20"`
	Description        string    `bson:"description,omitempty" json:"description,omitempty" validate:"max=2000"`
	RegistrationNumber string    `bson:"registration_number,omitempty" json:"registration_number,omitempty" validate:"max=100"`
	Website            string    `bson:"website,omitempty" json:"website,omitempty" validate:"omitempty,url"`
	FocusAreas         []string  `bson:"focus_areas,omitempty" json:"focus_areas,omitempty" validate:"max=10"`
	Location           *Location `bson:"location,omitempty" json:"location,omitempty" validate:"omitempty"`
	Logo               *MediaRef `bson:"logo,omitempty" json:"logo,omitempty"`
	Certificate        *MediaRef `bson:"certificate,omitempty" json:"certificate,omitempty"`
}

func (n *NGO) Media() map[string][]MediaRef {
	return map[string][]MediaRef{
		"logo":        one(n.Logo),
		"certificate": one(n.Certificate),
	}
}

func (n *NGO) SetMedia(field string, refs []MediaRef) {
	switch field {
	case "logo":
		n.Logo = first(refs)
	case "certificate":
		n.Certificate = first(refs)
	}
}

var NGOs = &Kind[*NGO]{
	Name:       "ngo",
	Path:       "ngos",
	Collection: "ngos",
	New:        func() *NGO { return &NGO{} },
	Slots: []Slot{
		{Field: "logo", Policy: "ngo-logos", Max: 1},
		{Field: "certificate", Policy: "ngo-certificates", Max: 1},
	},
	Mutable: []string{
		"organization_name", "organization_email", "phone", "description",
		"registration_number", "website", "focus_areas", "location",
	},
	JSONFields: []string{"focus_areas", "location"},
	Filterable: []string{"location.city", "location.state"},
	Private:    []string{"registration_number"},
	Unique: []Unique{
		{Field: "organization_email", Message: "An NGO with this email address already exists. Please use a different email."},
	},
}
