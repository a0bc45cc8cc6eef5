package routes

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/go-playground/validator/v10"
	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
	"gorm.io/gorm"

	"rompin-booking-server/models"
	"rompin-booking-server/storage"
	"rompin-booking-server/utils"
)

// buildTestApp wires the unit and booking routes against a fresh sqlite DB
// with the real JWT verifier and middleware chain.
func buildTestApp(t *testing.T) *iris.Application {
	t.Helper()
	os.Setenv("ACCESS_TOKEN_SECRET", "testsecret")
	os.Setenv("UPLOAD_DIR", filepath.Join(t.TempDir(), "uploads"))
	storage.InitializeUploads()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	storage.PerformMigrations(db)
	storage.DB = db

	app := iris.New()
	app.Configure(iris.WithoutPathCorrectionRedirection)
	app.Validator = validator.New()

	accessTokenVerifier := jwt.NewVerifier(jwt.HS256, []byte(os.Getenv("ACCESS_TOKEN_SECRET")))
	accessTokenVerifierMiddleware := accessTokenVerifier.Verify(func() interface{} { return new(utils.AccessToken) })

	users := app.Party("/api/users", accessTokenVerifierMiddleware)
	{
		users.Get("/", utils.AdminOnlyMiddleware, GetUsers)
		users.Put("/profile", utils.UserIDFromTokenMiddleware, UpdateProfile)
		users.Patch("/saved-units", utils.UserIDFromTokenMiddleware, AlterSavedUnits)
		users.Delete("/{id:uint}", utils.AdminOnlyMiddleware, DeleteUser)
	}

	units := app.Party("/api/units", accessTokenVerifierMiddleware)
	{
		units.Get("/", GetUnits)
		units.Get("/stats", GetUnitStats)
		units.Get("/{id:uint}", GetUnit)
		units.Post("/", utils.AdminOnlyMiddleware, CreateUnit)
		units.Put("/{id:uint}", utils.AdminOnlyMiddleware, UpdateUnit)
		units.Delete("/{id:uint}", utils.AdminOnlyMiddleware, DeleteUnit)
		units.Put("/{id:uint}/reserve", ReserveUnit)
		units.Post("/{id:uint}/files", utils.UserIDFromTokenMiddleware, UploadUnitBookingFiles)
	}

	bookings := app.Party("/api/bookings", accessTokenVerifierMiddleware)
	{
		bookings.Get("/", GetBookings)
		bookings.Get("/user", utils.UserIDFromTokenMiddleware, GetUserBookings)
		bookings.Get("/{id:uint}", GetBooking)
		bookings.Put("/{id:uint}/status", utils.AdminOnlyMiddleware, UpdateBookingStatus)
		bookings.Put("/{id:uint}/cancel", utils.UserIDFromTokenMiddleware, CancelBooking)
		bookings.Post("/{id:uint}/files", UploadBookingFiles)
	}

	if err := app.Build(); err != nil {
		t.Fatalf("build app: %v", err)
	}
	return app
}

// signTestToken returns a signed JWT with the given identity
func signTestToken(id uint, role string) string {
	signer := jwt.NewSigner(jwt.HS256, os.Getenv("ACCESS_TOKEN_SECRET"), 0)
	token, _ := signer.Sign(utils.AccessToken{ID: id, Role: role})
	return string(token)
}

func doJSON(t *testing.T, app *iris.Application, method, target, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	app.ServeHTTP(resp, req)
	return resp
}

func seedTestUnit(t *testing.T, status string) *models.Unit {
	t.Helper()
	unit := models.Unit{
		UnitNumber:  "SL20",
		LotNo:       "LOT-SL20",
		Phase:       "TERES FASA 2",
		Type:        "C1",
		Facing:      "Lake View",
		BuiltUpArea: 1500,
		SPAPrice:    520000,
		Status:      status,
	}
	if err := storage.DB.Create(&unit).Error; err != nil {
		t.Fatalf("seed unit: %v", err)
	}
	return &unit
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

var reserveBody = map[string]string{
	"agencyName": "Rompin Realty",
	"agentName":  "Aminah",
	"name":       "Tan Mei Ling",
	"ic":         "900101-06-1234",
	"contact":    "012-3456789",
	"address":    "12 Jalan Besar, Kuantan",
}

func TestCreateUnitRBAC(t *testing.T) {
	app := buildTestApp(t)

	body := map[string]interface{}{
		"unitNumber": "SL21", "lotNo": "LOT-SL21", "phase": "TERES FASA 1",
		"type": "B1", "facing": "Lake View", "builtUpArea": 1300,
		"landArea": "20x70", "spaPrice": 450000,
	}

	// No token -> rejected by the verifier
	resp := doJSON(t, app, http.MethodPost, "/api/units/", "", body)
	if resp.Code == http.StatusCreated {
		t.Fatalf("expected non-201 without token, got %d", resp.Code)
	}

	// User role -> 403
	resp = doJSON(t, app, http.MethodPost, "/api/units/", signTestToken(2, "user"), body)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for user role, got %d", resp.Code)
	}

	// Admin -> 201
	resp = doJSON(t, app, http.MethodPost, "/api/units/", signTestToken(1, "admin"), body)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 for admin, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestReserveFlowOverHTTP(t *testing.T) {
	app := buildTestApp(t)
	unit := seedTestUnit(t, models.UnitStatusPresent)
	userToken := signTestToken(7, "user")

	resp := doJSON(t, app, http.MethodPut, "/api/units/"+itoa(unit.ID)+"/reserve", userToken, reserveBody)
	if resp.Code != http.StatusOK {
		t.Fatalf("reserve: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var out struct {
		Booking models.Booking `json:"booking"`
		Unit    models.Unit    `json:"unit"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode reserve response: %v", err)
	}
	if out.Booking.Status != models.BookingStatusPending {
		t.Fatalf("booking status = %q, want pending", out.Booking.Status)
	}
	if out.Unit.Status != models.UnitStatusAdvise || out.Unit.IsAvailable {
		t.Fatalf("unit not held: status=%q available=%v", out.Unit.Status, out.Unit.IsAvailable)
	}

	// Second reservation on the held unit conflicts.
	resp = doJSON(t, app, http.MethodPut, "/api/units/"+itoa(unit.ID)+"/reserve", signTestToken(8, "user"), reserveBody)
	if resp.Code != http.StatusConflict {
		t.Fatalf("second reserve: expected 409, got %d", resp.Code)
	}
}

func TestUpdateBookingStatusOverHTTP(t *testing.T) {
	app := buildTestApp(t)
	unit := seedTestUnit(t, models.UnitStatusPresent)
	userToken := signTestToken(7, "user")
	adminToken := signTestToken(1, "admin")

	resp := doJSON(t, app, http.MethodPut, "/api/units/"+itoa(unit.ID)+"/reserve", userToken, reserveBody)
	if resp.Code != http.StatusOK {
		t.Fatalf("reserve: %d", resp.Code)
	}
	var out struct {
		Booking models.Booking `json:"booking"`
	}
	json.Unmarshal(resp.Body.Bytes(), &out)

	target := "/api/bookings/" + itoa(out.Booking.ID) + "/status"

	// Non-admin cannot decide.
	resp = doJSON(t, app, http.MethodPut, target, userToken, map[string]string{"status": "approved"})
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for user, got %d", resp.Code)
	}

	// pending is not a decision.
	resp = doJSON(t, app, http.MethodPut, target, adminToken, map[string]string{"status": "pending"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for pending as decision, got %d", resp.Code)
	}

	resp = doJSON(t, app, http.MethodPut, target, adminToken, map[string]string{"status": "approved"})
	if resp.Code != http.StatusOK {
		t.Fatalf("approve: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var booking models.Booking
	json.Unmarshal(resp.Body.Bytes(), &booking)
	if booking.Status != models.BookingStatusBooked {
		t.Fatalf("booking status = %q, want booked", booking.Status)
	}

	// A decided booking is final.
	resp = doJSON(t, app, http.MethodPut, target, adminToken, map[string]string{"status": "rejected"})
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 on terminal booking, got %d", resp.Code)
	}
}

func TestCancelBookingOverHTTP(t *testing.T) {
	app := buildTestApp(t)
	unit := seedTestUnit(t, models.UnitStatusPresent)
	userToken := signTestToken(7, "user")

	resp := doJSON(t, app, http.MethodPut, "/api/units/"+itoa(unit.ID)+"/reserve", userToken, reserveBody)
	var out struct {
		Booking models.Booking `json:"booking"`
	}
	json.Unmarshal(resp.Body.Bytes(), &out)

	// Another user sees not-found, not forbidden.
	resp = doJSON(t, app, http.MethodPut, "/api/bookings/"+itoa(out.Booking.ID)+"/cancel", signTestToken(8, "user"), nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for non-owner, got %d", resp.Code)
	}

	resp = doJSON(t, app, http.MethodPut, "/api/bookings/"+itoa(out.Booking.ID)+"/cancel", userToken, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var u models.Unit
	storage.DB.First(&u, unit.ID)
	if u.Status != models.UnitStatusPresent || !u.IsAvailable {
		t.Fatalf("unit not released: status=%q available=%v", u.Status, u.IsAvailable)
	}
}

func TestDeleteUnitWithPendingBookingConflicts(t *testing.T) {
	app := buildTestApp(t)
	unit := seedTestUnit(t, models.UnitStatusPresent)
	adminToken := signTestToken(1, "admin")

	resp := doJSON(t, app, http.MethodPut, "/api/units/"+itoa(unit.ID)+"/reserve", signTestToken(7, "user"), reserveBody)
	if resp.Code != http.StatusOK {
		t.Fatalf("reserve: %d", resp.Code)
	}

	resp = doJSON(t, app, http.MethodDelete, "/api/units/"+itoa(unit.ID), adminToken, nil)
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 deleting unit with pending booking, got %d", resp.Code)
	}
}

func TestUploadFilesToMissingBooking(t *testing.T) {
	app := buildTestApp(t)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, _ := w.CreateFormFile("icSoftcopy", "ic.pdf")
	part.Write([]byte("%PDF-1.4 test"))
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/bookings/999/files", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+signTestToken(7, "user"))
	resp := httptest.NewRecorder()
	app.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}

	// Nothing may be written for a rejected request.
	entries, _ := os.ReadDir(storage.UploadDir())
	if len(entries) != 0 {
		t.Fatalf("found %d files in upload dir after failed upload", len(entries))
	}
}

// Files written before a failure must all be removed: a failed request leaves
// neither files on disk nor paths on the booking.
func TestUploadCleanupWhenRecordUpdateFails(t *testing.T) {
	app := buildTestApp(t)
	unit := seedTestUnit(t, models.UnitStatusPresent)
	userToken := signTestToken(7, "user")

	resp := doJSON(t, app, http.MethodPut, "/api/units/"+itoa(unit.ID)+"/reserve", userToken, reserveBody)
	if resp.Code != http.StatusOK {
		t.Fatalf("reserve: %d", resp.Code)
	}
	var out struct {
		Booking models.Booking `json:"booking"`
	}
	json.Unmarshal(resp.Body.Bytes(), &out)

	storage.DB.Callback().Update().Before("gorm:update").Register("refuse_booking_update", func(tx *gorm.DB) {
		if tx.Statement.Table == "bookings" {
			tx.AddError(errors.New("update refused"))
		}
	})

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	ic, _ := w.CreateFormFile("icSoftcopy", "ic.pdf")
	ic.Write([]byte("%PDF-1.4 ic"))
	pop, _ := w.CreateFormFile("proofOfPayment", "receipt.jpg")
	pop.Write([]byte("jpegdata"))
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/bookings/"+itoa(out.Booking.ID)+"/files", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+userToken)
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 when the record update fails, got %d", rec.Code)
	}

	entries, _ := os.ReadDir(storage.UploadDir())
	if len(entries) != 0 {
		t.Fatalf("found %d files in upload dir after failed request", len(entries))
	}

	var booking models.Booking
	storage.DB.First(&booking, out.Booking.ID)
	if booking.ICSoftcopy != "" || booking.ProofOfPayment != "" {
		t.Fatalf("paths recorded despite failure: ic=%q pop=%q", booking.ICSoftcopy, booking.ProofOfPayment)
	}
}

func TestUploadSingleSlot(t *testing.T) {
	app := buildTestApp(t)
	unit := seedTestUnit(t, models.UnitStatusPresent)
	userToken := signTestToken(7, "user")

	resp := doJSON(t, app, http.MethodPut, "/api/units/"+itoa(unit.ID)+"/reserve", userToken, reserveBody)
	var out struct {
		Booking models.Booking `json:"booking"`
	}
	json.Unmarshal(resp.Body.Bytes(), &out)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, _ := w.CreateFormFile("proofOfPayment", "receipt.jpg")
	part.Write([]byte("jpegdata"))
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/bookings/"+itoa(out.Booking.ID)+"/files", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+userToken)
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("upload: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var booking models.Booking
	storage.DB.First(&booking, out.Booking.ID)
	if booking.ProofOfPayment == "" {
		t.Fatal("proofOfPayment not recorded")
	}
	if booking.ICSoftcopy != "" {
		t.Fatalf("icSoftcopy = %q, want empty for single-slot upload", booking.ICSoftcopy)
	}
}
