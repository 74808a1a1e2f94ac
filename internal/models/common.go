package models

type Location struct {
	Address string `bson:"address" json:"address" validate:"required,max=200"`
	Area    string `bson:"area,omitempty" json:"area,omitempty" validate:"max=100"`
	City    string `bson:"city" json:"city" validate:"required,max=100"`
	State   string `bson:"state" json:"state" validate:"required,max=100"`
}

type Availability struct {
	Type         string `bson:"type" json:"type" validate:"required,oneof=specific weekdays weekend allDays"`
	SpecificDate string `bson:"specific_date,omitempty" json:"specific_date,omitempty" validate:"required_if=Type specific"`
	StartTime    string `bson:"start_time,omitempty" json:"start_time,omitempty"`
	StartPeriod  string `bson:"start_period,omitempty" json:"start_period,omitempty" validate:"omitempty,oneof=AM PM"`
	EndTime      string `bson:"end_time,omitempty" json:"end_time,omitempty"`
	EndPeriod    string `bson:"end_period,omitempty" json:"end_period,omitempty" validate:"omitempty,oneof=AM PM"`
	Notes        string `bson:"notes,omitempty" json:"notes,omitempty" validate:"max=500"`
}
