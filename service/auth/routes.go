package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/mridulsharma03/snapnet-server/cmd/config"
	"github.com/mridulsharma03/snapnet-server/cmd/models"
	"github.com/mridulsharma03/snapnet-server/cmd/utils"
	"github.com/mridulsharma03/snapnet-server/service/mailer"
	"github.com/mridulsharma03/snapnet-server/service/scheduler"
)

type Handler struct {
	db       *gorm.DB
	cfg      *config.Config
	tokens   *TokenService
	mail     mailer.Sender
	limiter  *utils.RateLimiter
	jobs     *scheduler.Scheduler
	validate *validator.Validate
	oauth    *GithubOAuth
}

func NewHandler(db *gorm.DB, cfg *config.Config, tokens *TokenService, mail mailer.Sender, limiter *utils.RateLimiter, jobs *scheduler.Scheduler, validate *validator.Validate) *Handler {
	return &Handler{
		db:       db,
		cfg:      cfg,
		tokens:   tokens,
		mail:     mail,
		limiter:  limiter,
		jobs:     jobs,
		validate: validate,
		oauth:    NewGithubOAuth(cfg),
	}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/register/", h.limiter.Limit(h.handleRegister)).Methods(http.MethodPost)
	router.HandleFunc("/login/", h.limiter.Limit(h.handleLogin)).Methods(http.MethodPost)
	router.HandleFunc("/refresh/", h.handleRefresh).Methods(http.MethodPost)
	router.HandleFunc("/forgot-password/", h.limiter.Limit(h.handleForgotPassword)).Methods(http.MethodPost)
	router.HandleFunc("/verify-otp/", h.limiter.Limit(h.handleVerifyOtp)).Methods(http.MethodPost)
	router.HandleFunc("/reset-password/", h.limiter.Limit(h.handleResetPassword)).Methods(http.MethodPost)
	router.HandleFunc("/git-authenticate/", h.handleGitAuthenticate).Methods(http.MethodGet)
	router.HandleFunc("/git-callback/", h.handleGitCallback).Methods(http.MethodGet)
}

type registerRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required"`
	Role        string `json:"role" validate:"omitempty,oneof=user admin"`
	Username    string `json:"username" validate:"omitempty,min=3,max=30"`
	Bio         string `json:"bio" validate:"omitempty,max=500"`
	ProfileType string `json:"profile_type" validate:"omitempty,oneof=public private"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var payload registerRequest
	if err := utils.DecodeAndValidate(r, h.validate, &payload); err != nil {
		utils.WriteError(w, err)
		return
	}
	if err := CheckPasswordStrength(payload.Password); err != nil {
		utils.WriteError(w, err)
		return
	}
	role := payload.Role
	if role == "" {
		role = models.RoleUser
	}
	if role == models.RoleUser && payload.Username == "" {
		utils.WriteError(w, utils.Validation("Validation failed", utils.FieldError{
			Field:   "username",
			Message: "this field is required",
			Type:    "required",
		}))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(payload.Password), bcrypt.DefaultCost)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	baseUser := models.BaseUser{
		Email:        strings.ToLower(payload.Email),
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     true,
	}
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&baseUser).Error; err != nil {
			return err
		}
		if role == models.RoleAdmin {
			return tx.Create(&models.Admin{BaseUserID: baseUser.ID}).Error
		}
		profileType := payload.ProfileType
		if profileType == "" {
			profileType = models.ProfilePublic
		}
		return tx.Create(&models.User{
			BaseUserID:  baseUser.ID,
			Username:    payload.Username,
			Bio:         payload.Bio,
			ProfileType: profileType,
		}).Error
	})
	if err != nil {
		utils.WriteError(w, utils.FromDBError(err))
		return
	}

	utils.WriteSuccess(w, http.StatusCreated, "User registered successfully!", map[string]interface{}{
		"id":    baseUser.ID,
		"email": baseUser.Email,
		"role":  baseUser.Role,
	})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload loginRequest
	if err := utils.DecodeAndValidate(r, h.validate, &payload); err != nil {
		utils.WriteError(w, err)
		return
	}

	var baseUser models.BaseUser
	if err := h.db.Where("email = ?", strings.ToLower(payload.Email)).First(&baseUser).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.WriteError(w, utils.Unauthorized("Invalid Credentials!"))
			return
		}
		utils.WriteError(w, err)
		return
	}
	if !baseUser.IsActive {
		utils.WriteError(w, utils.Unauthorized("Account is deactivated!"))
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(baseUser.PasswordHash), []byte(payload.Password)) != nil {
		utils.WriteError(w, utils.Unauthorized("Invalid Credentials!"))
		return
	}

	h.writeTokenPair(w, http.StatusOK, "Login successful!", &baseUser)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var payload refreshRequest
	if err := utils.DecodeAndValidate(r, h.validate, &payload); err != nil {
		utils.WriteError(w, err)
		return
	}

	claims, err := h.tokens.ParseRefresh(payload.RefreshToken)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	var baseUser models.BaseUser
	if err := h.db.First(&baseUser, claims.ID).Error; err != nil || !baseUser.IsActive {
		utils.WriteError(w, utils.Unauthorized("Invalid Credentials!"))
		return
	}

	h.writeTokenPair(w, http.StatusOK, "Token refreshed!", &baseUser)
}

func (h *Handler) writeTokenPair(w http.ResponseWriter, status int, message string, baseUser *models.BaseUser) {
	access, err := h.tokens.IssueAccess(baseUser.ID, baseUser.Role)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	refresh, err := h.tokens.IssueRefresh(baseUser.ID, baseUser.Role)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, status, message, map[string]interface{}{
		"access_token":  access,
		"refresh_token": refresh,
		"token_type":    "bearer",
		"user": map[string]interface{}{
			"id":    baseUser.ID,
			"email": baseUser.Email,
			"role":  baseUser.Role,
		},
	})
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

const forgotPasswordMessage = "If the email exists, an otp has been sent!"

// handleForgotPassword answers identically whether or not the email is
// registered, so the endpoint cannot be used to enumerate accounts.
func (h *Handler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var payload forgotPasswordRequest
	if err := utils.DecodeAndValidate(r, h.validate, &payload); err != nil {
		utils.WriteError(w, err)
		return
	}

	var baseUser models.BaseUser
	if err := h.db.Where("email = ?", strings.ToLower(payload.Email)).First(&baseUser).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.WriteSuccess(w, http.StatusOK, forgotPasswordMessage, nil)
			return
		}
		utils.WriteError(w, err)
		return
	}

	code, err := generateOtpCode()
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	// A repeat request replaces the previous code instead of stacking
	// multiple live codes for one account.
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("base_user_id = ?", baseUser.ID).Delete(&models.Otp{}).Error; err != nil {
			return err
		}
		return tx.Create(&models.Otp{BaseUserID: baseUser.ID, Code: code}).Error
	})
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	h.jobs.DeleteOtpAfter(baseUser.ID, h.cfg.OtpTTL)
	go func(email, code string) {
		if err := h.mail.SendOtp(email, code); err != nil {
			log.Printf("failed to send otp email to %s: %v", email, err)
		}
	}(baseUser.Email, code)

	utils.WriteSuccess(w, http.StatusOK, forgotPasswordMessage, nil)
}

type verifyOtpRequest struct {
	Email string `json:"email" validate:"required,email"`
	Otp   string `json:"otp" validate:"required,len=6"`
}

func (h *Handler) handleVerifyOtp(w http.ResponseWriter, r *http.Request) {
	var payload verifyOtpRequest
	if err := utils.DecodeAndValidate(r, h.validate, &payload); err != nil {
		utils.WriteError(w, err)
		return
	}

	var baseUser models.BaseUser
	if err := h.db.Where("email = ?", strings.ToLower(payload.Email)).First(&baseUser).Error; err != nil {
		utils.WriteError(w, utils.NotFound("No active otp! Generate new otp!"))
		return
	}

	var otp models.Otp
	if err := h.db.Where("base_user_id = ?", baseUser.ID).First(&otp).Error; err != nil {
		utils.WriteError(w, utils.NotFound("No active otp! Generate new otp!"))
		return
	}
	if otp.Code != payload.Otp {
		utils.WriteError(w, utils.Unauthorized("Invalid Otp!"))
		return
	}

	token, err := h.tokens.IssueOtpToken(baseUser.ID, otp.Code)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Otp verified!", map[string]interface{}{
		"otp_token": token,
	})
}

type resetPasswordRequest struct {
	OtpToken    string `json:"otp_token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var payload resetPasswordRequest
	if err := utils.DecodeAndValidate(r, h.validate, &payload); err != nil {
		utils.WriteError(w, err)
		return
	}
	if err := CheckPasswordStrength(payload.NewPassword); err != nil {
		utils.WriteError(w, err)
		return
	}

	baseUserID, code, err := h.tokens.ParseOtpToken(payload.OtpToken)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	// The stored row must still match the token's code: the scheduled
	// cleanup or a regenerated code invalidates older tokens.
	var otp models.Otp
	if err := h.db.Where("base_user_id = ?", baseUserID).First(&otp).Error; err != nil || otp.Code != code {
		utils.WriteError(w, utils.NotFound("Otp expired! Generate new otp!"))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(payload.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.BaseUser{}).Where("id = ?", baseUserID).
			Update("password_hash", string(hash)).Error; err != nil {
			return err
		}
		return tx.Unscoped().Where("base_user_id = ?", baseUserID).Delete(&models.Otp{}).Error
	})
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Password reset successfully!", nil)
}

func (h *Handler) handleGitAuthenticate(w http.ResponseWriter, r *http.Request) {
	utils.WriteSuccess(w, http.StatusOK, "Redirect to the git authorization url!", map[string]interface{}{
		"url": h.oauth.AuthURL(uuid.NewString()),
	})
}

func (h *Handler) handleGitCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		utils.WriteError(w, utils.BadRequest("Missing authorization code!"))
		return
	}

	email, err := h.oauth.PrimaryEmail(r.Context(), code)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	email = strings.ToLower(email)

	var baseUser models.BaseUser
	err = h.db.Where("email = ?", email).First(&baseUser).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		baseUser = models.BaseUser{Email: email, Role: models.RoleUser, IsActive: true}
		err = h.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&baseUser).Error; err != nil {
				return err
			}
			username, err := deriveUsername(tx, email)
			if err != nil {
				return err
			}
			return tx.Create(&models.User{
				BaseUserID:  baseUser.ID,
				Username:    username,
				ProfileType: models.ProfilePublic,
			}).Error
		})
	}
	if err != nil {
		utils.WriteError(w, utils.FromDBError(err))
		return
	}
	if !baseUser.IsActive {
		utils.WriteError(w, utils.Unauthorized("Account is deactivated!"))
		return
	}

	h.writeTokenPair(w, http.StatusOK, "Login successful!", &baseUser)
}

// deriveUsername builds a username from the email local part, suffixing a
// random tag if the plain form is taken.
func deriveUsername(tx *gorm.DB, email string) (string, error) {
	local, _, _ := strings.Cut(email, "@")
	base := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			return unicode.ToLower(r)
		}
		return -1
	}, local)
	if len(base) < 3 {
		base = "user" + base
	}
	if runes := []rune(base); len(runes) > 24 {
		base = string(runes[:24])
	}

	candidate := base
	for i := 0; i < 5; i++ {
		var count int64
		if err := tx.Model(&models.User{}).Where("username = ?", candidate).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return candidate, nil
		}
		suffix := make([]byte, 2)
		if _, err := rand.Read(suffix); err != nil {
			return "", err
		}
		candidate = fmt.Sprintf("%s_%s", base, hex.EncodeToString(suffix))
	}
	return "", utils.Conflict("username already exists")
}

func generateOtpCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// CheckPasswordStrength enforces the same policy on registration and
// password reset: at least 8 characters mixing upper, lower, digit and
// special characters.
func CheckPasswordStrength(password string) error {
	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}
	if len(password) < 8 || !hasUpper || !hasLower || !hasDigit || !hasSpecial {
		return utils.Validation("Validation failed", utils.FieldError{
			Field:   "password",
			Message: "must be at least 8 characters with upper, lower, digit and special characters",
			Type:    "password",
		})
	}
	return nil
}
