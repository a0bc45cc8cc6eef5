package models

import (
	"golang.org/x/exp/slices"
	"gorm.io/gorm"
)

// Sales-phase statuses for a unit. PRESENT is the only status under which a
// unit can be reserved.
const (
	UnitStatusPresent         = "PRESENT"
	UnitStatusAdvise          = "ADVISE"
	UnitStatusNewBook         = "NEW BOOK"
	UnitStatusLASigned        = "LA SIGNED"
	UnitStatusSPASigned       = "SPA SIGNED"
	UnitStatusLoanApproved    = "LOAN APPROVED"
	UnitStatusLoanInProcess   = "LOAN IN PROCESS"
	UnitStatusPendingBuyerDoc = "PENDING BUYER DOC"
	UnitStatusLandownerUnit   = "LANDOWNER UNIT"
)

var UnitStatuses = []string{
	UnitStatusPresent,
	UnitStatusAdvise,
	UnitStatusNewBook,
	UnitStatusLASigned,
	UnitStatusSPASigned,
	UnitStatusLoanApproved,
	UnitStatusLoanInProcess,
	UnitStatusPendingBuyerDoc,
	UnitStatusLandownerUnit,
}

// UnitFacings is the fixed grouping order used by the unit listing.
var UnitFacings = []string{
	"Lake View",
	"Facility View North",
	"Facility View East",
	"Facility View South",
	"Facility View West",
}

type Unit struct {
	gorm.Model
	UnitNumber    string  `json:"unitNumber" gorm:"uniqueIndex;size:32"`
	LotNo         string  `json:"lotNo" gorm:"uniqueIndex;size:32"`
	Phase         string  `json:"phase" gorm:"size:32"` // TERES FASA 1, TERES FASA 2, SEMI-D
	Type          string  `json:"type" gorm:"size:8"`   // B1, B, C1, C
	Facing        string  `json:"facing" gorm:"size:32;index"`
	BuiltUpArea   float64 `json:"builtUpArea"`
	LandArea      string  `json:"landArea" gorm:"size:32"`
	Bedrooms      int     `json:"bedrooms"`
	Bathrooms     int     `json:"bathrooms"`
	SPAPrice      float64 `json:"spaPrice"`
	PricePerSqFt  float64 `json:"pricePerSqFt"`
	TotalCarParks int     `json:"totalCarParks"`
	Status        string  `json:"status" gorm:"type:varchar(32);default:'PRESENT';index"`
	IsAvailable   bool    `json:"isAvailable" gorm:"default:true"`
}

func ValidUnitStatus(status string) bool {
	return slices.Contains(UnitStatuses, status)
}

// BeforeSave keeps the denormalized availability flag in lockstep with the
// status column. Conditional bulk updates bypass this hook and must write
// both columns themselves.
func (u *Unit) BeforeSave(tx *gorm.DB) error {
	u.IsAvailable = u.Status == UnitStatusPresent
	return nil
}
