package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
	"gorm.io/gorm"

	"rompin-booking-server/models"
	"rompin-booking-server/storage"
)

// Rotation must burn the old refresh token: once exchanged, replaying it is
// refused. Requires a reachable redis; skipped otherwise.
func TestRefreshTokenRotation(t *testing.T) {
	storage.InitializeRedis()
	if err := storage.Redis.Ping(context.Background()).Err(); err != nil {
		t.Skip("redis not reachable: " + err.Error())
	}

	os.Setenv("ACCESS_TOKEN_SECRET", "testsecret")
	os.Setenv("REFRESH_TOKEN_SECRET", "testrefreshsecret")

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	storage.PerformMigrations(db)
	storage.DB = db

	user := models.User{Name: "Tan Mei Ling", Email: "tan@example.com", Password: "x", Role: "user"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}

	pair, err := CreateTokenPair(user.ID)
	if err != nil {
		t.Fatalf("create token pair: %v", err)
	}

	// Claim timestamps have second resolution and HS256 signing is
	// deterministic; step past the issuing second so the rotated token
	// cannot collide with the original.
	time.Sleep(1100 * time.Millisecond)

	app := iris.New()
	refreshTokenVerifier := jwt.NewVerifier(jwt.HS256, []byte(os.Getenv("REFRESH_TOKEN_SECRET")))
	refreshTokenVerifierMiddleware := refreshTokenVerifier.Verify(func() interface{} {
		return new(jwt.Claims)
	})
	refreshTokenVerifier.Extractors = append(refreshTokenVerifier.Extractors, func(ctx iris.Context) string {
		var tokenInput RefreshTokenInput
		if err := ctx.ReadJSON(&tokenInput); err != nil {
			return ""
		}
		return tokenInput.RefreshToken
	})
	app.Post("/api/refresh", refreshTokenVerifierMiddleware, RefreshToken)
	if err := app.Build(); err != nil {
		t.Fatalf("build app: %v", err)
	}

	exchange := func(token string) *httptest.ResponseRecorder {
		body, _ := json.Marshal(RefreshTokenInput{RefreshToken: token})
		req := httptest.NewRequest(http.MethodPost, "/api/refresh", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		app.ServeHTTP(rec, req)
		return rec
	}

	first := exchange(string(pair.RefreshToken))
	if first.Code != http.StatusOK {
		t.Fatalf("first exchange: expected 200, got %d: %s", first.Code, first.Body.String())
	}
	var rotated struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.Unmarshal(first.Body.Bytes(), &rotated); err != nil {
		t.Fatalf("decode rotated pair: %v", err)
	}
	if rotated.RefreshToken == "" || rotated.RefreshToken == string(pair.RefreshToken) {
		t.Fatal("rotation did not issue a fresh refresh token")
	}

	// The exchanged token is gone from the allowlist.
	replay := exchange(string(pair.RefreshToken))
	if replay.Code != http.StatusNotFound {
		t.Fatalf("replay of rotated token: expected 404, got %d", replay.Code)
	}

	// The freshly issued token still works.
	second := exchange(rotated.RefreshToken)
	if second.Code != http.StatusOK {
		t.Fatalf("exchange of fresh token: expected 200, got %d", second.Code)
	}
}
