package services

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"gorm.io/gorm"

	"github.com/framecraft-studio/framecraft-api/models"
)

const (
	// MaxOutstandingCodes is the policy ceiling on unused registration
	// codes system-wide.
	MaxOutstandingCodes = 10

	// CodeLength is the length of a generated registration code.
	CodeLength = 10

	// CodeAlphabet is the character set for generated codes. Visually
	// ambiguous characters (0/O, 1/I/L) are excluded so codes survive
	// being read over the phone.
	CodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
)

var (
	// ErrCodeLimitExceeded is returned when generating would push the
	// number of outstanding codes over the ceiling.
	ErrCodeLimitExceeded = errors.New("registration code limit exceeded")

	// ErrCodeInvalid is the generic failure for any validation miss:
	// unknown code, wrong role, already used. One error for all cases so
	// callers cannot enumerate codes.
	ErrCodeInvalid = errors.New("registration code is invalid or expired")
)

// CodeService manages registration codes: admin-minted, role-scoped,
// single-use secrets that gate worker and admin signup.
type CodeService struct {
	db *gorm.DB
}

// NewCodeService creates a CodeService on the given database handle.
func NewCodeService(db *gorm.DB) *CodeService {
	return &CodeService{db: db}
}

// HashCode returns the hex-encoded SHA-256 of a plaintext code. Only the
// hash is ever stored.
func HashCode(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

// GeneratePlainCode produces one random human-typeable code from the
// unambiguous alphabet.
func GeneratePlainCode() (string, error) {
	code := make([]byte, CodeLength)
	max := big.NewInt(int64(len(CodeAlphabet)))
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate random code: %w", err)
		}
		code[i] = CodeAlphabet[n.Int64()]
	}
	return string(code), nil
}

// GeneratedCode pairs a stored code record with the plaintext that is
// returned to the admin exactly once.
type GeneratedCode struct {
	Code  models.RegistrationCode `json:"code"`
	Plain string                  `json:"plain"`
}

// Generate mints count codes for the given role. The whole batch is
// created in one transaction and re-checks the outstanding-code ceiling
// inside it, so two admins generating at once cannot exceed the limit.
func (s *CodeService) Generate(role string, count int) ([]GeneratedCode, error) {
	role = models.NormalizeRole(role)
	if role != models.RoleWorker && role != models.RoleAdmin {
		return nil, fmt.Errorf("registration codes can only be generated for worker or admin roles")
	}
	if count < 1 {
		return nil, fmt.Errorf("count must be at least 1")
	}

	var generated []GeneratedCode
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var outstanding int64
		if err := tx.Model(&models.RegistrationCode{}).Where("used = ?", false).Count(&outstanding).Error; err != nil {
			return err
		}
		if int(outstanding)+count > MaxOutstandingCodes {
			return ErrCodeLimitExceeded
		}

		for i := 0; i < count; i++ {
			plain, err := GeneratePlainCode()
			if err != nil {
				return err
			}
			record := models.RegistrationCode{
				CodeHash: HashCode(plain),
				Role:     role,
				Used:     false,
			}
			if err := tx.Create(&record).Error; err != nil {
				return err
			}
			generated = append(generated, GeneratedCode{Code: record, Plain: plain})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return generated, nil
}

// Validate hashes the presented code and looks up an unused record with a
// matching hash and role. Every miss returns the same ErrCodeInvalid.
func (s *CodeService) Validate(plain, role string) (*models.RegistrationCode, error) {
	return validateCode(s.db, plain, role)
}

func validateCode(db *gorm.DB, plain, role string) (*models.RegistrationCode, error) {
	role = models.NormalizeRole(role)
	var code models.RegistrationCode
	err := db.Where("code_hash = ? AND role = ? AND used = ?", HashCode(plain), role, false).First(&code).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCodeInvalid
		}
		return nil, err
	}
	return &code, nil
}

// Consume marks a code used by the given user. It runs against the
// caller's transaction handle and guards on used=false, so a code raced
// by two signups is consumed exactly once.
func Consume(tx *gorm.DB, codeID, userID uint) error {
	now := time.Now()
	result := tx.Model(&models.RegistrationCode{}).
		Where("id = ? AND used = ?", codeID, false).
		Updates(map[string]interface{}{
			"used":       true,
			"used_by_id": userID,
			"used_at":    &now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCodeInvalid
	}
	return nil
}

// List returns all codes, newest first. Hashes are never serialized.
func (s *CodeService) List() ([]models.RegistrationCode, error) {
	var codes []models.RegistrationCode
	if err := s.db.Order("created_at DESC").Find(&codes).Error; err != nil {
		return nil, err
	}
	return codes, nil
}

// Revoke deletes a single code by id.
func (s *CodeService) Revoke(id uint) error {
	result := s.db.Delete(&models.RegistrationCode{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ResetAll deletes every registration code.
func (s *CodeService) ResetAll() error {
	return s.db.Where("1 = 1").Delete(&models.RegistrationCode{}).Error
}
