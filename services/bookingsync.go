package services

import (
	"errors"

	"gorm.io/gorm"

	"rompin-booking-server/models"
)

// Domain errors returned by the synchronization core. The HTTP layer is the
// sole translator to status codes.
var (
	ErrUnitNotFound    = errors.New("unit not found")
	ErrBookingNotFound = errors.New("booking not found")
	ErrUnitUnavailable = errors.New("unit is not available for reservation")
	ErrTerminalStatus  = errors.New("booking status is terminal")
	ErrNotPending      = errors.New("only pending bookings can be cancelled")
	ErrInvalidStatus   = errors.New("invalid booking status")
)

// BookingSync keeps Unit.Status/IsAvailable consistent with Booking.Status
// across every transition path. Each operation runs its dual writes inside a
// single transaction so the two records can never diverge.
type BookingSync struct {
	db *gorm.DB
}

func NewBookingSync(db *gorm.DB) *BookingSync {
	return &BookingSync{db: db}
}

// unitStateFor maps an admin decision to the unit status it implies. pending
// is not a decision: a booking enters it once, at reservation time, and never
// returns to it.
//
//	booked    -> NEW BOOK
//	rejected  -> PRESENT   (unit released)
//	cancelled -> PRESENT
func unitStateFor(bookingStatus string) (string, bool) {
	switch bookingStatus {
	case models.BookingStatusBooked:
		return models.UnitStatusNewBook, true
	case models.BookingStatusRejected, models.BookingStatusCancelled:
		return models.UnitStatusPresent, true
	default:
		return "", false
	}
}

// ReservationDetails carries the buyer and agent fields captured when a unit
// is reserved.
type ReservationDetails struct {
	AgencyName   string
	AgentName    string
	CustomerName string
	IC           string
	Contact      string
	Address      string
}

// Reserve flips an available unit to ADVISE and inserts a pending booking,
// atomically. The unit flip is a conditional update keyed on the current
// status, so two concurrent reservations against the same PRESENT read cannot
// both succeed. Admins may reserve a unit regardless of its current phase.
func (s *BookingSync) Reserve(unitID uint, userID uint, details ReservationDetails, isAdmin bool) (*models.Booking, *models.Unit, error) {
	var booking models.Booking
	var unit models.Unit

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&unit, unitID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUnitNotFound
			}
			return err
		}

		res := tx.Model(&models.Unit{}).
			Where("id = ? AND status = ?", unitID, models.UnitStatusPresent).
			Updates(map[string]interface{}{
				"status":       models.UnitStatusAdvise,
				"is_available": false,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if !isAdmin {
				return ErrUnitUnavailable
			}
			// Admin override: take the unit whatever its current phase.
			if err := tx.Model(&models.Unit{}).
				Where("id = ?", unitID).
				Updates(map[string]interface{}{
					"status":       models.UnitStatusAdvise,
					"is_available": false,
				}).Error; err != nil {
				return err
			}
		}

		booking = models.Booking{
			UnitID:       unitID,
			UserID:       userID,
			Status:       models.BookingStatusPending,
			AgencyName:   details.AgencyName,
			AgentName:    details.AgentName,
			CustomerName: details.CustomerName,
			IC:           details.IC,
			Contact:      details.Contact,
			Address:      details.Address,
		}
		if err := tx.Create(&booking).Error; err != nil {
			return err
		}

		return tx.First(&unit, unitID).Error
	})
	if err != nil {
		return nil, nil, err
	}

	return &booking, &unit, nil
}

// UpdateStatus applies an admin transition to a booking and moves its unit
// per the transition table. "approved" is rewritten to "booked" before it is
// stored: approval implies booking. A booking in a terminal status refuses
// any further transition. The returned prior snapshot is taken inside the
// transaction, so it is the exact state the transition replaced.
func (s *BookingSync) UpdateStatus(bookingID uint, newStatus string) (*models.Booking, models.Booking, error) {
	var booking models.Booking
	var prior models.Booking

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&booking, bookingID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookingNotFound
			}
			return err
		}
		prior = booking

		if models.TerminalBookingStatus(booking.Status) {
			return ErrTerminalStatus
		}

		if newStatus == models.BookingStatusApproved {
			newStatus = models.BookingStatusBooked
		}

		unitStatus, ok := unitStateFor(newStatus)
		if !ok {
			return ErrInvalidStatus
		}

		var unit models.Unit
		if err := tx.First(&unit, booking.UnitID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUnitNotFound
			}
			return err
		}

		booking.Status = newStatus
		if err := tx.Save(&booking).Error; err != nil {
			return err
		}

		unit.Status = unitStatus
		return tx.Save(&unit).Error
	})
	if err != nil {
		return nil, models.Booking{}, err
	}

	s.db.Preload("Unit").Preload("User").First(&booking, booking.ID)
	return &booking, prior, nil
}

// Cancel lets the booking owner withdraw a pending reservation, releasing the
// unit back to PRESENT. Bookings not owned by userID are reported as not
// found rather than forbidden, so ownership is never leaked.
func (s *BookingSync) Cancel(bookingID uint, userID uint) (*models.Booking, error) {
	var booking models.Booking

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND user_id = ?", bookingID, userID).First(&booking).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookingNotFound
			}
			return err
		}

		if booking.Status != models.BookingStatusPending {
			return ErrNotPending
		}

		booking.Status = models.BookingStatusCancelled
		if err := tx.Save(&booking).Error; err != nil {
			return err
		}

		var unit models.Unit
		if err := tx.First(&unit, booking.UnitID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUnitNotFound
			}
			return err
		}

		unit.Status = models.UnitStatusPresent
		return tx.Save(&unit).Error
	})
	if err != nil {
		return nil, err
	}

	s.db.Preload("Unit").Preload("User").First(&booking, booking.ID)
	return &booking, nil
}
