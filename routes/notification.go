package routes

import (
	"github.com/kataras/iris/v12"

	"rompin-booking-server/models"
	"rompin-booking-server/storage"
	"rompin-booking-server/utils"
)

// GetNotifications returns the caller's notifications, newest first.
func GetNotifications(ctx iris.Context) {
	userID := ctx.Values().Get("userID").(uint)

	var notifications []models.Notification
	err := storage.DB.
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&notifications).Error
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(notifications)
}

// MarkNotificationRead flags one of the caller's notifications as read.
func MarkNotificationRead(ctx iris.Context) {
	id, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "Invalid notification ID.", ctx)
		return
	}

	userID := ctx.Values().Get("userID").(uint)

	var notification models.Notification
	if err := storage.DB.First(&notification, id).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	if notification.UserID != userID {
		utils.CreateForbidden(ctx)
		return
	}

	notification.IsRead = true
	if err := storage.DB.Save(&notification).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(notification)
}
