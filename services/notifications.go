package services

import (
	"fmt"
	"log"

	"gorm.io/gorm"

	"rompin-booking-server/models"
)

// NotificationService records in-app notification rows for booking lifecycle
// events. Failures are logged, never surfaced: a missed notification must not
// fail the transition that triggered it.
type NotificationService struct {
	db *gorm.DB
}

func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{db: db}
}

func (ns *NotificationService) notify(userID uint, title, message, kind string, refID uint, refType string) {
	n := models.Notification{
		UserID:  userID,
		Title:   title,
		Message: message,
		Type:    kind,
		RefID:   refID,
		RefType: refType,
	}
	if err := ns.db.Create(&n).Error; err != nil {
		log.Printf("notification for user %d failed: %v", userID, err)
	}
}

func (ns *NotificationService) ReservationCreated(booking *models.Booking, unit *models.Unit) {
	ns.notify(booking.UserID, "Reservation Received",
		fmt.Sprintf("Your reservation for unit %s has been received and is pending review", unit.UnitNumber),
		"booking_created", booking.ID, "booking")
}

func (ns *NotificationService) BookingStatusChanged(booking *models.Booking) {
	unitNumber := ""
	if booking.Unit != nil {
		unitNumber = booking.Unit.UnitNumber
	}
	ns.notify(booking.UserID, "Booking Status Updated",
		fmt.Sprintf("Your booking for unit %s is now %s", unitNumber, booking.Status),
		"booking_status", booking.ID, "booking")
}

func (ns *NotificationService) BookingCancelled(booking *models.Booking) {
	unitNumber := ""
	if booking.Unit != nil {
		unitNumber = booking.Unit.UnitNumber
	}
	ns.notify(booking.UserID, "Reservation Cancelled",
		fmt.Sprintf("Your reservation for unit %s has been cancelled", unitNumber),
		"booking_cancelled", booking.ID, "booking")
}
