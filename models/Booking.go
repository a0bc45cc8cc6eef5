package models

import (
	"gorm.io/gorm"
)

// Booking workflow statuses. "approved" is accepted as input but rewritten to
// "booked" before it is stored: approval implies booking.
const (
	BookingStatusPending   = "pending"
	BookingStatusApproved  = "approved"
	BookingStatusBooked    = "booked"
	BookingStatusRejected  = "rejected"
	BookingStatusCancelled = "cancelled"
)

type Booking struct {
	gorm.Model
	UnitID       uint   `json:"unitID" gorm:"index"`
	UserID       uint   `json:"userID" gorm:"index"`
	Status       string `json:"status" gorm:"type:varchar(16);default:'pending';index"`
	AgencyName   string `json:"agencyName"`
	AgentName    string `json:"agentName"`
	CustomerName string `json:"customerName"`
	IC           string `json:"ic"`
	Contact      string `json:"contact"`
	Address      string `json:"address"`

	// Relative paths under the uploads directory, e.g. "uploads/ab12cd.pdf"
	ProofOfPayment string `json:"proofOfPayment"`
	ICSoftcopy     string `json:"icSoftcopy"`

	Unit *Unit `json:"unit,omitempty" gorm:"foreignKey:UnitID"`
	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// TerminalBookingStatus reports whether no further transition is permitted
// from the given status.
func TerminalBookingStatus(status string) bool {
	return status == BookingStatusBooked ||
		status == BookingStatusRejected ||
		status == BookingStatusCancelled
}
