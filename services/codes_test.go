package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/framecraft-studio/framecraft-api/models"
)

func setupCodesTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := db.AutoMigrate(&models.RegistrationCode{}); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

func TestGeneratePlainCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := GeneratePlainCode()
		assert.NoError(t, err)
		assert.Len(t, code, CodeLength)
		for _, ch := range code {
			assert.Contains(t, CodeAlphabet, string(ch))
		}
		assert.False(t, seen[code], "generated a duplicate code")
		seen[code] = true
	}
}

func TestGenerateCodes(t *testing.T) {
	db := setupCodesTestDB(t)
	svc := NewCodeService(db)

	generated, err := svc.Generate("worker", 3)
	assert.NoError(t, err)
	assert.Len(t, generated, 3)

	for _, g := range generated {
		assert.Len(t, g.Plain, CodeLength)
		assert.Equal(t, HashCode(g.Plain), g.Code.CodeHash)
		assert.Equal(t, models.RoleWorker, g.Code.Role)
		assert.False(t, g.Code.Used)
	}

	var count int64
	db.Model(&models.RegistrationCode{}).Count(&count)
	assert.Equal(t, int64(3), count)
}

func TestGenerateCodes_LegacyRoleName(t *testing.T) {
	db := setupCodesTestDB(t)
	svc := NewCodeService(db)

	// "employer" is the legacy name for the worker role
	generated, err := svc.Generate("employer", 1)
	assert.NoError(t, err)
	assert.Equal(t, models.RoleWorker, generated[0].Code.Role)
}

func TestGenerateCodes_RejectsCustomerRole(t *testing.T) {
	db := setupCodesTestDB(t)
	svc := NewCodeService(db)

	_, err := svc.Generate("customer", 1)
	assert.Error(t, err)
}

func TestGenerateCodes_Ceiling(t *testing.T) {
	db := setupCodesTestDB(t)
	svc := NewCodeService(db)

	_, err := svc.Generate("worker", MaxOutstandingCodes)
	assert.NoError(t, err)

	// One more outstanding code would cross the ceiling
	_, err = svc.Generate("worker", 1)
	assert.ErrorIs(t, err, ErrCodeLimitExceeded)

	// Consuming a code frees a slot
	var code models.RegistrationCode
	db.First(&code)
	assert.NoError(t, Consume(db, code.ID, 42))

	_, err = svc.Generate("admin", 1)
	assert.NoError(t, err)
}

func TestGenerateCodes_CeilingCountsBatch(t *testing.T) {
	db := setupCodesTestDB(t)
	svc := NewCodeService(db)

	_, err := svc.Generate("worker", MaxOutstandingCodes-2)
	assert.NoError(t, err)

	// A batch that would overshoot is rejected whole, not truncated
	_, err = svc.Generate("worker", 3)
	assert.ErrorIs(t, err, ErrCodeLimitExceeded)

	var count int64
	db.Model(&models.RegistrationCode{}).Count(&count)
	assert.Equal(t, int64(MaxOutstandingCodes-2), count)
}

func TestValidateCode(t *testing.T) {
	db := setupCodesTestDB(t)
	svc := NewCodeService(db)

	generated, err := svc.Generate("worker", 1)
	assert.NoError(t, err)
	plain := generated[0].Plain

	t.Run("Valid code and matching role", func(t *testing.T) {
		code, err := svc.Validate(plain, "worker")
		assert.NoError(t, err)
		assert.Equal(t, generated[0].Code.ID, code.ID)
	})

	t.Run("Role mismatch fails", func(t *testing.T) {
		_, err := svc.Validate(plain, "admin")
		assert.ErrorIs(t, err, ErrCodeInvalid)
	})

	t.Run("Unknown code fails", func(t *testing.T) {
		_, err := svc.Validate("NOTAREALCODE", "worker")
		assert.ErrorIs(t, err, ErrCodeInvalid)
	})

	t.Run("Consumed code never validates again", func(t *testing.T) {
		assert.NoError(t, Consume(db, generated[0].Code.ID, 7))

		_, err := svc.Validate(plain, "worker")
		assert.ErrorIs(t, err, ErrCodeInvalid)
	})
}

func TestConsume_OnlyOnce(t *testing.T) {
	db := setupCodesTestDB(t)
	svc := NewCodeService(db)

	generated, err := svc.Generate("admin", 1)
	assert.NoError(t, err)
	codeID := generated[0].Code.ID

	assert.NoError(t, Consume(db, codeID, 1))

	// Second consumption loses: the guard on used=false matches no rows
	assert.ErrorIs(t, Consume(db, codeID, 2), ErrCodeInvalid)

	var code models.RegistrationCode
	db.First(&code, codeID)
	assert.True(t, code.Used)
	assert.Equal(t, uint(1), *code.UsedByID)
	assert.NotNil(t, code.UsedAt)
}

func TestRevokeAndReset(t *testing.T) {
	db := setupCodesTestDB(t)
	svc := NewCodeService(db)

	generated, err := svc.Generate("worker", 2)
	assert.NoError(t, err)

	assert.NoError(t, svc.Revoke(generated[0].Code.ID))
	assert.ErrorIs(t, svc.Revoke(generated[0].Code.ID), gorm.ErrRecordNotFound)

	codes, err := svc.List()
	assert.NoError(t, err)
	assert.Len(t, codes, 1)

	assert.NoError(t, svc.ResetAll())
	codes, err = svc.List()
	assert.NoError(t, err)
	assert.Len(t, codes, 0)
}
