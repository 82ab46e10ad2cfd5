package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/framecraft-studio/framecraft-api/config"
	"github.com/framecraft-studio/framecraft-api/models"
	"github.com/framecraft-studio/framecraft-api/services"
)

func setupAuthTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Profile{},
		&models.RegistrationCode{},
		&models.VerificationCode{},
	); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

func setupAuthRouter(t *testing.T) (*gorm.DB, func(path string, body map[string]interface{}) *httptest.ResponseRecorder) {
	db := setupAuthTestDB(t)
	config.SetDB(db)
	config.SetConfig(&config.Config{
		JWTSecret:   "test-secret-key-for-unit-tests",
		JWTIssuer:   "framecraft-api",
		JWTAudience: "framecraft-app",
	})

	router := setupTestRouter()
	router.POST("/auth/signup", Signup)
	router.POST("/auth/verify-email", VerifyEmail)
	router.POST("/auth/resend-code", ResendCode)
	router.POST("/auth/login", Login)
	router.POST("/auth/forgot-password", ForgotPassword)
	router.POST("/auth/reset-password", ResetPassword)

	post := func(path string, body map[string]interface{}) *httptest.ResponseRecorder {
		raw, _ := json.Marshal(body)
		req, _ := http.NewRequest(http.MethodPost, path, bytes.NewBuffer(raw))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}
	return db, post
}

// otpFromEmail pulls the bolded code out of the last recorded mail.
func otpFromEmail(t *testing.T, sender *services.MockEmailSender) string {
	t.Helper()
	if len(sender.Sent) == 0 {
		t.Fatal("No email was sent")
	}
	body := sender.Sent[len(sender.Sent)-1].Body
	start := strings.Index(body, "<b>")
	end := strings.Index(body, "</b>")
	if start == -1 || end == -1 {
		t.Fatalf("Email body has no code: %q", body)
	}
	return body[start+3 : end]
}

func TestSignupEndpoint(t *testing.T) {
	db, post := setupAuthRouter(t)
	sender := services.NewMockEmailSender()
	services.SetEmailSender(sender)
	defer services.SetEmailSender(nil)

	t.Run("Customer signup", func(t *testing.T) {
		w := post("/auth/signup", map[string]interface{}{
			"email":    "alice@example.com",
			"password": "supersecret",
			"name":     "Alice",
		})
		assert.Equal(t, http.StatusCreated, w.Code)

		var response map[string]interface{}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		data := response["data"].(map[string]interface{})
		assert.Equal(t, "customer", data["profile"].(map[string]interface{})["role"])

		// The password hash must never appear in the response
		assert.NotContains(t, w.Body.String(), "password_hash")
	})

	t.Run("Duplicate email", func(t *testing.T) {
		w := post("/auth/signup", map[string]interface{}{
			"email":    "alice@example.com",
			"password": "supersecret",
			"name":     "Alice Again",
		})
		assert.Equal(t, http.StatusConflict, w.Code)

		var response map[string]interface{}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "EMAIL_EXISTS", response["error"].(map[string]interface{})["code"])
	})

	t.Run("Worker signup without code is refused", func(t *testing.T) {
		w := post("/auth/signup", map[string]interface{}{
			"email":    "worker@example.com",
			"password": "supersecret",
			"name":     "Walter",
			"role":     "worker",
		})
		assert.Equal(t, http.StatusForbidden, w.Code)

		var response map[string]interface{}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "INVALID_REGISTRATION_CODE", response["error"].(map[string]interface{})["code"])
	})

	t.Run("Worker signup with a valid code", func(t *testing.T) {
		codes := services.NewCodeService(db)
		generated, err := codes.Generate("worker", 1)
		assert.NoError(t, err)

		w := post("/auth/signup", map[string]interface{}{
			"email":             "worker@example.com",
			"password":          "supersecret",
			"name":              "Walter",
			"role":              "worker",
			"registration_code": generated[0].Plain,
		})
		assert.Equal(t, http.StatusCreated, w.Code)

		var response map[string]interface{}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		data := response["data"].(map[string]interface{})
		assert.Equal(t, "worker", data["profile"].(map[string]interface{})["role"])

		var code models.RegistrationCode
		db.First(&code, generated[0].Code.ID)
		assert.True(t, code.Used)
	})

	t.Run("Invalid email rejected by validation", func(t *testing.T) {
		w := post("/auth/signup", map[string]interface{}{
			"email":    "not-an-email",
			"password": "supersecret",
			"name":     "X",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestVerifyAndLoginEndpoints(t *testing.T) {
	_, post := setupAuthRouter(t)
	sender := services.NewMockEmailSender()
	services.SetEmailSender(sender)
	defer services.SetEmailSender(nil)

	w := post("/auth/signup", map[string]interface{}{
		"email":    "verify@example.com",
		"password": "supersecret",
		"name":     "Vera",
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	t.Run("Login before verification is refused", func(t *testing.T) {
		w := post("/auth/login", map[string]interface{}{
			"email":    "verify@example.com",
			"password": "supersecret",
		})
		assert.Equal(t, http.StatusForbidden, w.Code)

		var response map[string]interface{}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "EMAIL_NOT_VERIFIED", response["error"].(map[string]interface{})["code"])
	})

	t.Run("Wrong OTP", func(t *testing.T) {
		otp := otpFromEmail(t, sender)
		wrong := "000000"
		if wrong == otp {
			wrong = "000001"
		}
		w := post("/auth/verify-email", map[string]interface{}{
			"email": "verify@example.com",
			"code":  wrong,
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Resend issues a fresh OTP", func(t *testing.T) {
		sentBefore := len(sender.Sent)
		w := post("/auth/resend-code", map[string]interface{}{"email": "verify@example.com"})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, sender.Sent, sentBefore+1)
	})

	t.Run("Resend for unknown email still responds 200", func(t *testing.T) {
		sentBefore := len(sender.Sent)
		w := post("/auth/resend-code", map[string]interface{}{"email": "nobody@example.com"})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, sender.Sent, sentBefore)
	})

	t.Run("Correct OTP verifies and returns a token", func(t *testing.T) {
		otp := otpFromEmail(t, sender)
		w := post("/auth/verify-email", map[string]interface{}{
			"email": "verify@example.com",
			"code":  otp,
		})
		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.NotEmpty(t, response["data"].(map[string]interface{})["token"])
	})

	t.Run("Login after verification", func(t *testing.T) {
		w := post("/auth/login", map[string]interface{}{
			"email":    "verify@example.com",
			"password": "supersecret",
		})
		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		data := response["data"].(map[string]interface{})
		assert.NotEmpty(t, data["token"])
		assert.Equal(t, "customer", data["profile"].(map[string]interface{})["role"])
	})

	t.Run("Wrong password", func(t *testing.T) {
		w := post("/auth/login", map[string]interface{}{
			"email":    "verify@example.com",
			"password": "wrongsecret",
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		var response map[string]interface{}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "INVALID_CREDENTIALS", response["error"].(map[string]interface{})["code"])
	})
}

func TestPasswordResetEndpoints(t *testing.T) {
	_, post := setupAuthRouter(t)
	sender := services.NewMockEmailSender()
	services.SetEmailSender(sender)
	defer services.SetEmailSender(nil)

	w := post("/auth/signup", map[string]interface{}{
		"email":    "reset@example.com",
		"password": "oldsecret1",
		"name":     "Rita",
	})
	assert.Equal(t, http.StatusCreated, w.Code)
	otp := otpFromEmail(t, sender)
	w = post("/auth/verify-email", map[string]interface{}{"email": "reset@example.com", "code": otp})
	assert.Equal(t, http.StatusOK, w.Code)

	t.Run("Unknown email responds 200", func(t *testing.T) {
		w := post("/auth/forgot-password", map[string]interface{}{"email": "nobody@example.com"})
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Reset round trip", func(t *testing.T) {
		w := post("/auth/forgot-password", map[string]interface{}{"email": "reset@example.com"})
		assert.Equal(t, http.StatusOK, w.Code)
		token := otpFromEmail(t, sender)

		w = post("/auth/reset-password", map[string]interface{}{
			"token":        token,
			"new_password": "newsecret1",
		})
		assert.Equal(t, http.StatusOK, w.Code)

		w = post("/auth/login", map[string]interface{}{"email": "reset@example.com", "password": "oldsecret1"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		w = post("/auth/login", map[string]interface{}{"email": "reset@example.com", "password": "newsecret1"})
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Bogus token", func(t *testing.T) {
		w := post("/auth/reset-password", map[string]interface{}{
			"token":        "bogus",
			"new_password": "whatever123",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
