package routes

import (
	"errors"
	"strings"

	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"

	"rompin-booking-server/models"
	"rompin-booking-server/services"
	"rompin-booking-server/storage"
	"rompin-booking-server/utils"
)

// GetUnits lists inventory with optional filters, ascending by unit number,
// grouped by facing alongside the flat list.
func GetUnits(ctx iris.Context) {
	q := storage.DB.Model(&models.Unit{})

	if facing := ctx.URLParamDefault("facing", ""); facing != "" {
		q = q.Where("facing = ?", facing)
	}
	if status := ctx.URLParamDefault("status", ""); status != "" {
		q = q.Where("status = ?", status)
	}
	if unitType := ctx.URLParamDefault("type", ""); unitType != "" {
		q = q.Where("type = ?", unitType)
	}
	if minPrice, err := ctx.URLParamFloat64("minPrice"); err == nil {
		q = q.Where("spa_price >= ?", minPrice)
	}
	if maxPrice, err := ctx.URLParamFloat64("maxPrice"); err == nil {
		q = q.Where("spa_price <= ?", maxPrice)
	}
	if minArea, err := ctx.URLParamFloat64("minArea"); err == nil {
		q = q.Where("built_up_area >= ?", minArea)
	}
	if maxArea, err := ctx.URLParamFloat64("maxArea"); err == nil {
		q = q.Where("built_up_area <= ?", maxArea)
	}

	var units []models.Unit
	if err := q.Order("unit_number ASC").Find(&units).Error; err != nil {
		utils.CreateError(iris.StatusInternalServerError, "Error", err.Error(), ctx)
		return
	}

	groupedUnits := make(map[string][]models.Unit, len(models.UnitFacings))
	for _, facing := range models.UnitFacings {
		groupedUnits[facing] = []models.Unit{}
	}
	for _, unit := range units {
		groupedUnits[unit.Facing] = append(groupedUnits[unit.Facing], unit)
	}

	ctx.JSON(iris.Map{
		"total":        len(units),
		"groupedUnits": groupedUnits,
		"units":        units,
	})
}

type unitFacingStats struct {
	Facing         string  `json:"facing"`
	TotalUnits     int64   `json:"totalUnits"`
	AvailableUnits int64   `json:"availableUnits"`
	AveragePrice   float64 `json:"averagePrice"`
	MinPrice       float64 `json:"minPrice"`
	MaxPrice       float64 `json:"maxPrice"`
}

// GetUnitStats aggregates inventory counts and price spread per facing.
func GetUnitStats(ctx iris.Context) {
	var stats []unitFacingStats
	err := storage.DB.Model(&models.Unit{}).
		Select("facing, " +
			"COUNT(*) AS total_units, " +
			"SUM(CASE WHEN is_available THEN 1 ELSE 0 END) AS available_units, " +
			"AVG(spa_price) AS average_price, " +
			"MIN(spa_price) AS min_price, " +
			"MAX(spa_price) AS max_price").
		Group("facing").
		Scan(&stats).Error
	if err != nil {
		utils.CreateError(iris.StatusInternalServerError, "Error", err.Error(), ctx)
		return
	}

	ctx.JSON(stats)
}

func GetUnit(ctx iris.Context) {
	id, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "Invalid unit ID.", ctx)
		return
	}

	var unit models.Unit
	if err := storage.DB.First(&unit, id).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Unit not found", ctx)
		return
	}

	ctx.JSON(unit)
}

// CreateUnit inserts a new inventory record (admin only).
func CreateUnit(ctx iris.Context) {
	var input UnitInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	status := input.Status
	if status == "" {
		status = models.UnitStatusPresent
	}
	if !models.ValidUnitStatus(status) {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "Unknown unit status: "+status, ctx)
		return
	}

	var duplicates int64
	storage.DB.Model(&models.Unit{}).
		Where("unit_number = ? OR lot_no = ?", input.UnitNumber, input.LotNo).
		Count(&duplicates)
	if duplicates > 0 {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "unitNumber or lotNo already exists", ctx)
		return
	}

	unit := models.Unit{
		UnitNumber:    input.UnitNumber,
		LotNo:         input.LotNo,
		Phase:         input.Phase,
		Type:          input.Type,
		Facing:        input.Facing,
		BuiltUpArea:   input.BuiltUpArea,
		LandArea:      input.LandArea,
		Bedrooms:      input.Bedrooms,
		Bathrooms:     input.Bathrooms,
		SPAPrice:      input.SPAPrice,
		PricePerSqFt:  input.PricePerSqFt,
		TotalCarParks: input.TotalCarParks,
		Status:        status,
	}

	if err := storage.DB.Create(&unit).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.StatusCode(iris.StatusCreated)
	ctx.JSON(unit)
}

// UpdateUnit merges a partial patch into an existing unit (admin only).
// IsAvailable is always recomputed from the resulting status.
func UpdateUnit(ctx iris.Context) {
	id, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "Invalid unit ID.", ctx)
		return
	}

	var unit models.Unit
	if err := storage.DB.First(&unit, id).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Unit not found", ctx)
		return
	}

	var input UpdateUnitInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	before := unit

	if input.Status != nil {
		status := strings.TrimSpace(*input.Status)
		if !models.ValidUnitStatus(status) {
			utils.CreateError(iris.StatusBadRequest, "Validation Error", "Unknown unit status: "+status, ctx)
			return
		}
		unit.Status = status
	}
	if input.Phase != nil {
		unit.Phase = *input.Phase
	}
	if input.Type != nil {
		unit.Type = *input.Type
	}
	if input.Facing != nil {
		unit.Facing = *input.Facing
	}
	if input.BuiltUpArea != nil {
		unit.BuiltUpArea = *input.BuiltUpArea
	}
	if input.LandArea != nil {
		unit.LandArea = *input.LandArea
	}
	if input.Bedrooms != nil {
		unit.Bedrooms = *input.Bedrooms
	}
	if input.Bathrooms != nil {
		unit.Bathrooms = *input.Bathrooms
	}
	if input.SPAPrice != nil {
		unit.SPAPrice = *input.SPAPrice
	}
	if input.PricePerSqFt != nil {
		unit.PricePerSqFt = *input.PricePerSqFt
	}
	if input.TotalCarParks != nil {
		unit.TotalCarParks = *input.TotalCarParks
	}

	if err := storage.DB.Save(&unit).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	utils.Audit(ctx, "unit_update", "unit", unit.ID, before, unit)
	ctx.JSON(unit)
}

// DeleteUnit removes a unit (admin only). Deletion is refused while a pending
// booking still references the unit.
func DeleteUnit(ctx iris.Context) {
	id, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "Invalid unit ID.", ctx)
		return
	}

	var unit models.Unit
	if err := storage.DB.First(&unit, id).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Unit not found", ctx)
		return
	}

	var active int64
	storage.DB.Model(&models.Booking{}).
		Where("unit_id = ? AND status = ?", unit.ID, models.BookingStatusPending).
		Count(&active)
	if active > 0 {
		utils.CreateError(iris.StatusConflict, "Conflict", "Unit has a pending booking and cannot be deleted", ctx)
		return
	}

	if err := storage.DB.Delete(&unit).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	utils.Audit(ctx, "unit_delete", "unit", unit.ID, unit, nil)
	ctx.JSON(iris.Map{"message": "Unit removed"})
}

// ReserveUnit creates a pending booking for an available unit and holds the
// unit, via the synchronization core. Admins may reserve any unit.
func ReserveUnit(ctx iris.Context) {
	id, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "Invalid unit ID.", ctx)
		return
	}

	claims := jwt.Get(ctx).(*utils.AccessToken)

	var input ReserveUnitInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	sync := services.NewBookingSync(storage.DB)
	booking, unit, reserveErr := sync.Reserve(id, claims.ID, services.ReservationDetails{
		AgencyName:   input.AgencyName,
		AgentName:    input.AgentName,
		CustomerName: input.Name,
		IC:           input.IC,
		Contact:      input.Contact,
		Address:      input.Address,
	}, claims.Role == "admin")

	switch {
	case errors.Is(reserveErr, services.ErrUnitNotFound):
		utils.CreateError(iris.StatusNotFound, "Not Found", "Unit not found", ctx)
		return
	case errors.Is(reserveErr, services.ErrUnitUnavailable):
		utils.CreateError(iris.StatusConflict, "Conflict", "Unit is not available for reservation", ctx)
		return
	case reserveErr != nil:
		utils.CreateInternalServerError(ctx)
		return
	}

	services.NewNotificationService(storage.DB).ReservationCreated(booking, unit)

	ctx.JSON(iris.Map{
		"booking": booking,
		"unit":    unit,
	})
}

// UploadUnitBookingFiles attaches documents to the caller's most recent
// pending booking on the unit.
func UploadUnitBookingFiles(ctx iris.Context) {
	id, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "Invalid unit ID.", ctx)
		return
	}

	userID := ctx.Values().Get("userID").(uint)

	var booking models.Booking
	findErr := storage.DB.
		Where("unit_id = ? AND user_id = ? AND status = ?", id, userID, models.BookingStatusPending).
		Order("created_at DESC").
		First(&booking).Error
	if findErr != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Booking not found", ctx)
		return
	}

	attachBookingFiles(ctx, &booking)
}

type UnitInput struct {
	UnitNumber    string  `json:"unitNumber" validate:"required,max=32"`
	LotNo         string  `json:"lotNo" validate:"required,max=32"`
	Phase         string  `json:"phase" validate:"required,max=32"`
	Type          string  `json:"type" validate:"required,max=8"`
	Facing        string  `json:"facing" validate:"required,max=32"`
	BuiltUpArea   float64 `json:"builtUpArea" validate:"required,gt=0"`
	LandArea      string  `json:"landArea" validate:"required,max=32"`
	Bedrooms      int     `json:"bedrooms" validate:"gte=0"`
	Bathrooms     int     `json:"bathrooms" validate:"gte=0"`
	SPAPrice      float64 `json:"spaPrice" validate:"required,gt=0"`
	PricePerSqFt  float64 `json:"pricePerSqFt" validate:"gte=0"`
	TotalCarParks int     `json:"totalCarParks" validate:"gte=0"`
	Status        string  `json:"status"`
}

type UpdateUnitInput struct {
	Phase         *string  `json:"phase"`
	Type          *string  `json:"type"`
	Facing        *string  `json:"facing"`
	BuiltUpArea   *float64 `json:"builtUpArea"`
	LandArea      *string  `json:"landArea"`
	Bedrooms      *int     `json:"bedrooms"`
	Bathrooms     *int     `json:"bathrooms"`
	SPAPrice      *float64 `json:"spaPrice"`
	PricePerSqFt  *float64 `json:"pricePerSqFt"`
	TotalCarParks *int     `json:"totalCarParks"`
	Status        *string  `json:"status"`
}

type ReserveUnitInput struct {
	AgencyName string `json:"agencyName" validate:"required,max=256"`
	AgentName  string `json:"agentName" validate:"required,max=256"`
	Name       string `json:"name" validate:"required,max=256"`
	IC         string `json:"ic" validate:"required,max=64"`
	Contact    string `json:"contact" validate:"required,max=64"`
	Address    string `json:"address" validate:"required,max=512"`
}
