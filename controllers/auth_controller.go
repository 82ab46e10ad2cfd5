package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/framecraft-studio/framecraft-api/config"
	"github.com/framecraft-studio/framecraft-api/models"
	"github.com/framecraft-studio/framecraft-api/services"
)

// SignupRequest represents the request body for creating an account
type SignupRequest struct {
	Email            string `json:"email" binding:"required,email"`
	Password         string `json:"password" binding:"required,min=8"`
	Name             string `json:"name" binding:"required"`
	Role             string `json:"role" binding:"omitempty"`
	RegistrationCode string `json:"registration_code" binding:"omitempty"`
}

// Signup handles POST /api/v1/auth/signup - creates a new account.
// Worker and admin signups must present a valid registration code; the
// account and the code consumption commit together or not at all.
func Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid request data",
				"details": err.Error(),
			},
		})
		return
	}

	accounts := services.NewAccountService(config.GetDB(), config.GetConfig())
	user, profile, err := accounts.Signup(services.SignupInput{
		Email:            req.Email,
		Password:         req.Password,
		Name:             req.Name,
		Role:             req.Role,
		RegistrationCode: req.RegistrationCode,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCodeInvalid):
			c.JSON(http.StatusForbidden, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INVALID_REGISTRATION_CODE",
					"message": "Registration code is invalid or expired",
				},
			})
		case errors.Is(err, services.ErrEmailTaken):
			c.JSON(http.StatusConflict, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "EMAIL_EXISTS",
					"message": "An account with this email already exists",
				},
			})
		default:
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "SIGNUP_FAILED",
					"message": err.Error(),
				},
			})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Account created. Check your email for a verification code.",
		"data": gin.H{
			"user":    user,
			"profile": profile,
		},
	})
}

// VerifyEmailRequest represents the request body for OTP verification
type VerifyEmailRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required"`
}

// VerifyEmail handles POST /api/v1/auth/verify-email - confirms the
// emailed OTP and returns a session token
func VerifyEmail(c *gin.Context) {
	var req VerifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid request data",
				"details": err.Error(),
			},
		})
		return
	}

	accounts := services.NewAccountService(config.GetDB(), config.GetConfig())
	token, err := accounts.VerifyEmail(req.Email, req.Code)
	if err != nil {
		if errors.Is(err, services.ErrInvalidOTP) {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INVALID_CODE",
					"message": "Verification code is invalid or expired",
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VERIFICATION_FAILED",
				"message": "Failed to verify email",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"token": token,
		},
	})
}

// ResendCodeRequest represents the request body for resending the OTP
type ResendCodeRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResendCode handles POST /api/v1/auth/resend-code - issues a fresh OTP.
// Responds 200 whether or not the email exists, to avoid enumeration.
func ResendCode(c *gin.Context) {
	var req ResendCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid request data",
				"details": err.Error(),
			},
		})
		return
	}

	db := config.GetDB()
	var user models.User
	if err := db.Where("email = ?", req.Email).First(&user).Error; err == nil && !user.EmailVerified {
		accounts := services.NewAccountService(db, config.GetConfig())
		if err := accounts.SendVerificationCode(&user); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "EMAIL_FAILED",
					"message": "Failed to send verification code",
				},
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "If the account exists, a new code has been sent",
	})
}

// LoginRequest represents the request body for logging in
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /api/v1/auth/login - checks credentials and returns
// a session token
func Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid request data",
				"details": err.Error(),
			},
		})
		return
	}

	accounts := services.NewAccountService(config.GetDB(), config.GetConfig())
	token, user, profile, err := accounts.Login(req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INVALID_CREDENTIALS",
					"message": "Invalid email or password",
				},
			})
		case errors.Is(err, services.ErrEmailNotVerified):
			c.JSON(http.StatusForbidden, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "EMAIL_NOT_VERIFIED",
					"message": "Verify your email address before signing in",
				},
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "LOGIN_FAILED",
					"message": "Failed to sign in",
				},
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"token":   token,
			"user":    user,
			"profile": profile,
		},
	})
}

// ForgotPasswordRequest represents the request body for starting a reset
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ForgotPassword handles POST /api/v1/auth/forgot-password - emails a
// reset token. Always responds 200 to avoid account enumeration.
func ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid request data",
				"details": err.Error(),
			},
		})
		return
	}

	accounts := services.NewAccountService(config.GetDB(), config.GetConfig())
	if err := accounts.StartPasswordReset(req.Email); err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "RESET_FAILED",
					"message": "Failed to start password reset",
				},
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "If the account exists, a reset token has been sent",
	})
}

// ResetPasswordRequest represents the request body for completing a reset
type ResetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

// ResetPassword handles POST /api/v1/auth/reset-password - consumes the
// emailed token and replaces the password
func ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid request data",
				"details": err.Error(),
			},
		})
		return
	}

	accounts := services.NewAccountService(config.GetDB(), config.GetConfig())
	if err := accounts.ResetPassword(req.Token, req.NewPassword); err != nil {
		if errors.Is(err, services.ErrInvalidOTP) {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INVALID_TOKEN",
					"message": "Reset token is invalid or expired",
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "RESET_FAILED",
				"message": "Failed to reset password",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Password updated. You can now sign in.",
	})
}
