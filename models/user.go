package models

import "github.com/shopspring/decimal"

type Role string

const (
	RoleAttendee  Role = "attendee"
	RoleOrganizer Role = "organizer"
	RoleAdmin     Role = "admin"
)

type User struct {
	ID         string           `json:"id"`
	Email      string           `json:"email"`
	Name       string           `json:"name"`
	Role       Role             `json:"role"`
	FeePercent *decimal.Decimal `json:"fee_percent"` // organizers only; nil means platform default
}

// FeeSchedule is the platform fee percentage that applies to a user's sales.
type FeeSchedule struct {
	Role    Role            `json:"role"`
	Percent decimal.Decimal `json:"percent"`
}

// FeeScheduleFor resolves the effective schedule. Only organizers pay a platform
// fee; a negotiated percent, zero included, replaces the default.
func FeeScheduleFor(u User, defaultPercent decimal.Decimal) FeeSchedule {
	if u.Role != RoleOrganizer {
		return FeeSchedule{Role: u.Role, Percent: decimal.Zero}
	}
	if u.FeePercent != nil {
		return FeeSchedule{Role: u.Role, Percent: *u.FeePercent}
	}
	return FeeSchedule{Role: u.Role, Percent: defaultPercent}
}
