package models

import (
	"gorm.io/gorm"
)

type Notification struct {
	gorm.Model
	UserID  uint   `json:"userID" gorm:"index"`
	Title   string `json:"title" gorm:"size:128"`
	Message string `json:"message" gorm:"type:text"`
	Type    string `json:"type" gorm:"size:32"` // booking_created, booking_status, booking_cancelled
	RefID   uint   `json:"refID"`
	RefType string `json:"refType" gorm:"size:32"` // booking, unit
	IsRead  bool   `json:"isRead" gorm:"default:false;index"`
}
