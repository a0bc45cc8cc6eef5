package routes

import (
	"errors"
	"net/http"

	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"

	"rompin-booking-server/models"
	"rompin-booking-server/services"
	"rompin-booking-server/storage"
	"rompin-booking-server/utils"
)

// GetBookings lists all bookings for admins, and the caller's own otherwise.
func GetBookings(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	q := storage.DB.Preload("Unit").Preload("User").Order("created_at DESC")
	if claims.Role != "admin" {
		q = q.Where("user_id = ?", claims.ID)
	}

	var bookings []models.Booking
	if err := q.Find(&bookings).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(bookings)
}

// GetUserBookings returns the caller's booking history, newest first.
func GetUserBookings(ctx iris.Context) {
	userID := ctx.Values().Get("userID").(uint)

	var bookings []models.Booking
	err := storage.DB.Preload("Unit").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&bookings).Error
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(bookings)
}

func GetBooking(ctx iris.Context) {
	id, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "Invalid booking ID.", ctx)
		return
	}

	claims := jwt.Get(ctx).(*utils.AccessToken)

	var booking models.Booking
	if err := storage.DB.Preload("Unit").Preload("User").First(&booking, id).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Booking not found", ctx)
		return
	}

	if claims.Role != "admin" && booking.UserID != claims.ID {
		utils.CreateForbidden(ctx)
		return
	}

	ctx.JSON(booking)
}

// UpdateBookingStatus applies an admin decision to a booking. The unit moves
// with it: approval books the unit, rejection or cancellation releases it.
func UpdateBookingStatus(ctx iris.Context) {
	id, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "Invalid booking ID.", ctx)
		return
	}

	var input UpdateBookingStatusInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	sync := services.NewBookingSync(storage.DB)
	booking, prior, updateErr := sync.UpdateStatus(id, input.Status)

	switch {
	case errors.Is(updateErr, services.ErrBookingNotFound):
		utils.CreateError(iris.StatusNotFound, "Not Found", "Booking not found", ctx)
		return
	case errors.Is(updateErr, services.ErrUnitNotFound):
		utils.CreateError(iris.StatusNotFound, "Not Found", "Unit not found", ctx)
		return
	case errors.Is(updateErr, services.ErrTerminalStatus):
		utils.CreateError(iris.StatusConflict, "Conflict", "Booking is already in a final status", ctx)
		return
	case errors.Is(updateErr, services.ErrInvalidStatus):
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "Unknown booking status: "+input.Status, ctx)
		return
	case updateErr != nil:
		utils.CreateInternalServerError(ctx)
		return
	}

	utils.Audit(ctx, "booking_status", "booking", booking.ID, prior, booking)
	services.NewNotificationService(storage.DB).BookingStatusChanged(booking)

	ctx.JSON(booking)
}

// CancelBooking withdraws the caller's own pending reservation.
func CancelBooking(ctx iris.Context) {
	id, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "Invalid booking ID.", ctx)
		return
	}

	userID := ctx.Values().Get("userID").(uint)

	sync := services.NewBookingSync(storage.DB)
	booking, cancelErr := sync.Cancel(id, userID)

	switch {
	case errors.Is(cancelErr, services.ErrBookingNotFound):
		utils.CreateError(iris.StatusNotFound, "Not Found", "Booking not found", ctx)
		return
	case errors.Is(cancelErr, services.ErrNotPending):
		utils.CreateError(iris.StatusConflict, "Conflict", "Only pending bookings can be cancelled", ctx)
		return
	case cancelErr != nil:
		utils.CreateInternalServerError(ctx)
		return
	}

	services.NewNotificationService(storage.DB).BookingCancelled(booking)

	ctx.JSON(booking)
}

// UploadBookingFiles attaches documents to a booking by ID. Only the booking
// owner or an admin may upload.
func UploadBookingFiles(ctx iris.Context) {
	id, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "Invalid booking ID.", ctx)
		return
	}

	claims := jwt.Get(ctx).(*utils.AccessToken)

	var booking models.Booking
	if err := storage.DB.First(&booking, id).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Booking not found", ctx)
		return
	}

	if claims.Role != "admin" && booking.UserID != claims.ID {
		utils.CreateForbidden(ctx)
		return
	}

	attachBookingFiles(ctx, &booking)
}

// saveBookingFile stores the single file posted under the given multipart
// field. A missing field is not an error; it returns "".
func saveBookingFile(ctx iris.Context, field string) (string, error) {
	_, fh, err := ctx.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", nil
		}
		return "", err
	}
	return storage.SaveUploadedFile(fh, utils.GenerateShortToken(8))
}

// attachBookingFiles reads the icSoftcopy and proofOfPayment slots, writes
// whichever are present to disk and records their paths on the booking. Any
// failure removes the files written so far before reporting the error.
func attachBookingFiles(ctx iris.Context, booking *models.Booking) {
	var written []string
	cleanup := func() {
		for _, p := range written {
			storage.RemoveUploadedFile(p)
		}
	}

	updates := map[string]interface{}{}

	icPath, err := saveBookingFile(ctx, "icSoftcopy")
	if err != nil {
		cleanup()
		utils.CreateInternalServerError(ctx)
		return
	}
	if icPath != "" {
		written = append(written, icPath)
		updates["ic_softcopy"] = icPath
	}

	popPath, err := saveBookingFile(ctx, "proofOfPayment")
	if err != nil {
		cleanup()
		utils.CreateInternalServerError(ctx)
		return
	}
	if popPath != "" {
		written = append(written, popPath)
		updates["proof_of_payment"] = popPath
	}

	if len(updates) == 0 {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "No files were provided", ctx)
		return
	}

	if err := storage.DB.Model(booking).Updates(updates).Error; err != nil {
		cleanup()
		utils.CreateInternalServerError(ctx)
		return
	}

	storage.DB.Preload("Unit").First(booking, booking.ID)
	ctx.JSON(booking)
}

type UpdateBookingStatusInput struct {
	Status string `json:"status" validate:"required,oneof=approved rejected cancelled booked"`
}
