package models

const (
	RoleDonor     = "donor"
	RoleNGO       = "ngo"
	RoleVolunteer = "volunteer"
)

type Profile struct {
	Base   `bson:",inline"`
	Name   string    `bson:"name" json:"name" validate:"required,max=100"`
	Email  string    `bson:"email" json:"email" validate:"required,email"`
	Phone  string    `bson:"phone,omitempty" json:"phone,omitempty" validate:"max=20"`
	Bio    string    `bson:"bio,omitempty" json:"bio,omitempty" validate:"max=1000"`
	Role   string    `bson:"role" json:"role" validate:"required,oneof=donor ngo volunteer"`
	Avatar *MediaRef `bson:"avatar,omitempty" json:"avatar,omitempty"`
}

func (p *Profile) Media() map[string][]MediaRef {
	return map[string][]MediaRef{"avatar": one(p.Avatar)}
}

func (p *Profile) SetMedia(field string, refs []MediaRef) {
	if field == "avatar" {
		p.Avatar = first(refs)
	}
}

var Profiles = &Kind[*Profile]{
	Name:       "profile",
	Path:       "profiles",
	Collection: "profiles",
	New:        func() *Profile { return &Profile{Role: RoleDonor} },
	Slots:      []Slot{{Field: "avatar", Policy: "avatars", Max: 1}},
	Mutable:    []string{"name", "email", "phone", "bio", "role"},
	Filterable: []string{"role"},
	Private:    []string{"email", "phone"},
	Unique: []Unique{
		{Field: "owner_id", Message: "A profile already exists for this account."},
		{Field: "email", Message: "A profile with this email address already exists."},
	},
}
