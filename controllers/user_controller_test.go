package controllers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/framecraft-studio/framecraft-api/config"
	"github.com/framecraft-studio/framecraft-api/middleware"
	"github.com/framecraft-studio/framecraft-api/models"
)

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	return router
}

// mockAuthMiddleware stands in for EnsureValidToken + ResolveIdentity:
// it plants the same context keys the real middleware chain would.
func mockAuthMiddleware(profile *models.Profile) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", fmt.Sprintf("%d", profile.UserID))

		customClaims := &middleware.CustomClaims{
			Role:          profile.Role,
			EmailVerified: profile.EmailVerified,
		}
		mockClaims := &validator.ValidatedClaims{
			CustomClaims: customClaims,
		}
		c.Set("validated_claims", mockClaims)
		c.Set("profile", profile)

		c.Next()
	}
}

func setupUserTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Profile{}); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

func createTestAccount(t *testing.T, db *gorm.DB, email, role string) (*models.User, *models.Profile) {
	t.Helper()
	user := models.User{Email: email, PasswordHash: "x", EmailVerified: true}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	profile := models.Profile{UserID: user.ID, Name: email, Role: role, EmailVerified: true}
	if err := db.Create(&profile).Error; err != nil {
		t.Fatalf("Failed to create profile: %v", err)
	}
	return &user, &profile
}

func TestGetMyProfile(t *testing.T) {
	db := setupUserTestDB(t)
	config.SetDB(db)
	_, profile := createTestAccount(t, db, "me@example.com", "customer")

	router := setupTestRouter()
	router.GET("/users/me", mockAuthMiddleware(profile), GetMyProfile)

	req, _ := http.NewRequest(http.MethodGet, "/users/me", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(t, response["success"].(bool))
	data := response["data"].(map[string]interface{})
	assert.Equal(t, "me@example.com", data["name"])
	assert.Equal(t, "customer", data["role"])
}

func TestUpdateMyProfile(t *testing.T) {
	db := setupUserTestDB(t)
	config.SetDB(db)
	_, profile := createTestAccount(t, db, "rename@example.com", "customer")

	router := setupTestRouter()
	router.PUT("/users/me", mockAuthMiddleware(profile), UpdateMyProfile)

	t.Run("Update name", func(t *testing.T) {
		body, _ := json.Marshal(map[string]interface{}{"name": "  New Name  "})
		req, _ := http.NewRequest(http.MethodPut, "/users/me", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var stored models.Profile
		db.Where("user_id = ?", profile.UserID).First(&stored)
		assert.Equal(t, "New Name", stored.Name)
	})

	t.Run("Empty body leaves profile unchanged", func(t *testing.T) {
		body, _ := json.Marshal(map[string]interface{}{})
		req, _ := http.NewRequest(http.MethodPut, "/users/me", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var stored models.Profile
		db.Where("user_id = ?", profile.UserID).First(&stored)
		assert.Equal(t, "New Name", stored.Name)
	})
}

func TestListUsers(t *testing.T) {
	db := setupUserTestDB(t)
	config.SetDB(db)
	_, admin := createTestAccount(t, db, "admin@example.com", "admin")
	createTestAccount(t, db, "worker1@example.com", "worker")
	createTestAccount(t, db, "worker2@example.com", "worker")
	createTestAccount(t, db, "customer@example.com", "customer")

	router := setupTestRouter()
	router.GET("/users", mockAuthMiddleware(admin), ListUsers)

	t.Run("All users", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/users", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Len(t, response["data"].([]interface{}), 4)
	})

	t.Run("Filter by role", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/users?role=worker", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		data := response["data"].([]interface{})
		assert.Len(t, data, 2)
		for _, item := range data {
			assert.Equal(t, "worker", item.(map[string]interface{})["role"])
		}
	})

	t.Run("Legacy role name maps to worker", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/users?role=employer", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Len(t, response["data"].([]interface{}), 2)
	})
}

func TestDeleteUser(t *testing.T) {
	db := setupUserTestDB(t)
	config.SetDB(db)
	_, admin := createTestAccount(t, db, "admin@example.com", "admin")
	target, _ := createTestAccount(t, db, "target@example.com", "customer")

	router := setupTestRouter()
	router.DELETE("/users/:id", mockAuthMiddleware(admin), DeleteUser)

	t.Run("Self-deletion is refused before any change", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodDelete, fmt.Sprintf("/users/%d", admin.UserID), nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var response map[string]interface{}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		errorData := response["error"].(map[string]interface{})
		assert.Equal(t, "CANNOT_DELETE_SELF", errorData["code"])

		// Nothing was touched
		var users, profiles int64
		db.Model(&models.User{}).Count(&users)
		db.Model(&models.Profile{}).Count(&profiles)
		assert.Equal(t, int64(2), users)
		assert.Equal(t, int64(2), profiles)
	})

	t.Run("Delete removes user and profile together", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodDelete, fmt.Sprintf("/users/%d", target.ID), nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var users, profiles int64
		db.Model(&models.User{}).Count(&users)
		db.Model(&models.Profile{}).Count(&profiles)
		assert.Equal(t, int64(1), users)
		assert.Equal(t, int64(1), profiles)
	})

	t.Run("Unknown user", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodDelete, "/users/9999", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
