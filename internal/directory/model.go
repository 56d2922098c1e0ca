// Package directory holds the people the scheduling core books time for:
// patients and the hospital staff roles that act on appointments.
package directory

import (
	"fmt"
	"time"

	"github.com/clinova/appointment-booking/internal/schedule"
)

// Role is the closed set of actor roles known to the platform.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleNurse   Role = "nurse"
	RoleAdmin   Role = "admin" // approval authority
)

// ParseRole maps a wire string onto the Role enum. Unknown roles are an
// explicit error, never a silent fallthrough.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RolePatient, RoleDoctor, RoleNurse, RoleAdmin:
		return Role(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

type ContactInfo struct {
	Email string
	Phone string
}

// Party is the capability shared by every role variant: it can be
// identified and contacted. Variants carry only their own fields.
type Party interface {
	Identity() (id string, role Role)
	Contact() ContactInfo
}

type Patient struct {
	ID          string
	Name        string
	ContactInfo ContactInfo
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (p *Patient) Identity() (string, Role) { return p.ID, RolePatient }
func (p *Patient) Contact() ContactInfo     { return p.ContactInfo }

type Doctor struct {
	ID              string
	Name            string
	Specialty       string
	ConsultationFee int64 // cents
	Availability    schedule.Weekly
	ContactInfo     ContactInfo
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (d *Doctor) Identity() (string, Role) { return d.ID, RoleDoctor }
func (d *Doctor) Contact() ContactInfo     { return d.ContactInfo }

var (
	_ Party = (*Patient)(nil)
	_ Party = (*Doctor)(nil)
)
