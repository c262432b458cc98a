package user

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/mridulsharma03/snapnet-server/cmd/config"
	"github.com/mridulsharma03/snapnet-server/cmd/models"
	"github.com/mridulsharma03/snapnet-server/cmd/utils"
	"github.com/mridulsharma03/snapnet-server/storage"
)

type Handler struct {
	db       *gorm.DB
	cfg      *config.Config
	store    storage.ObjectStore
	auth     *utils.Authenticator
	validate *validator.Validate
}

func NewHandler(db *gorm.DB, cfg *config.Config, store storage.ObjectStore, auth *utils.Authenticator, validate *validator.Validate) *Handler {
	return &Handler{db: db, cfg: cfg, store: store, auth: auth, validate: validate}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/users/create/", h.auth.Middleware(h.handleCreateProfile)).Methods(http.MethodPost)
	router.HandleFunc("/user/profile-image/", h.auth.Middleware(h.handleUpdateProfileImage)).Methods(http.MethodPut)
	router.HandleFunc("/user/{username}/", h.auth.Middleware(h.handleGetProfile)).Methods(http.MethodGet)
	router.HandleFunc("/user/", h.auth.Middleware(h.handleUpdateProfile)).Methods(http.MethodPut)
	router.HandleFunc("/user/", h.auth.Middleware(h.handleDeleteProfile)).Methods(http.MethodDelete)

	router.HandleFunc("/base-users/", h.auth.RequireAdmin(h.handleListBaseUsers)).Methods(http.MethodGet)
	router.HandleFunc("/base-user/", h.auth.Middleware(h.handleGetBaseUser)).Methods(http.MethodGet)
	router.HandleFunc("/base-user/", h.auth.Middleware(h.handleUpdateBaseUser)).Methods(http.MethodPut)
	router.HandleFunc("/base-user/", h.auth.Middleware(h.handleDeleteBaseUser)).Methods(http.MethodDelete)

	router.HandleFunc("/admin/", h.auth.RequireAdmin(h.handleGetAdmin)).Methods(http.MethodGet)
	router.HandleFunc("/admin/", h.auth.RequireAdmin(h.handleDeleteAdmin)).Methods(http.MethodDelete)
}

// Response returns the wire shape of a profile, swapping the stored
// object key for a fresh presigned URL.
func Response(ctx context.Context, store storage.ObjectStore, u *models.User) map[string]interface{} {
	out := map[string]interface{}{
		"id":           u.ID,
		"username":     u.Username,
		"bio":          u.Bio,
		"profile_type": u.ProfileType,
		"is_verified":  u.IsVerified,
		"created_at":   u.CreatedAt,
	}
	if u.ProfileKey != "" {
		url, err := store.PresignedURL(ctx, u.ProfileKey)
		if err != nil {
			log.Printf("failed to presign profile image %s: %v", u.ProfileKey, err)
		} else {
			out["profile_url"] = url
		}
	}
	return out
}

type profileForm struct {
	Username    string `validate:"required,min=3,max=30"`
	Bio         string `validate:"omitempty,max=500"`
	ProfileType string `validate:"omitempty,oneof=public private"`
}

// handleCreateProfile backfills a profile for identities registered
// without one, such as git logins. Registration normally creates it.
func (h *Handler) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	baseUserID, err := utils.GetUserID(r.Context())
	if err != nil {
		utils.WriteError(w, utils.Unauthorized("Invalid Credentials!"))
		return
	}
	if utils.GetRole(r.Context()) == models.RoleAdmin {
		utils.WriteError(w, utils.Forbidden("Admin user can't perform this action!"))
		return
	}

	if _, err := GetUserByBaseUserID(h.db, baseUserID); err == nil {
		utils.WriteError(w, utils.Conflict("User already created! Do you want to update?"))
		return
	}

	if err := r.ParseMultipartForm(utils.MaxUploadSize); err != nil {
		utils.WriteError(w, utils.BadRequest("Invalid multipart form"))
		return
	}
	form := profileForm{
		Username:    strings.TrimSpace(r.FormValue("username")),
		Bio:         strings.TrimSpace(r.FormValue("bio")),
		ProfileType: r.FormValue("profile_type"),
	}
	if err := utils.CheckStruct(h.validate, &form); err != nil {
		utils.WriteError(w, err)
		return
	}
	if form.ProfileType == "" {
		form.ProfileType = models.ProfilePublic
	}

	profileKey, err := h.uploadProfileImage(r, baseUserID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	u := models.User{
		BaseUserID:  baseUserID,
		Username:    form.Username,
		Bio:         form.Bio,
		ProfileType: form.ProfileType,
		ProfileKey:  profileKey,
	}
	if err := h.db.Create(&u).Error; err != nil {
		utils.WriteError(w, utils.FromDBError(err))
		return
	}

	utils.WriteSuccess(w, http.StatusCreated, "User created successfully!", Response(r.Context(), h.store, &u))
}

// uploadProfileImage stores the optional profile_image part and returns
// its object key; empty when no file was sent.
func (h *Handler) uploadProfileImage(r *http.Request, baseUserID uint) (string, error) {
	file, header, err := r.FormFile("profile_image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", nil
		}
		return "", utils.BadRequest("Invalid profile image upload")
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if err := utils.CheckFileType(contentType, utils.ValidImageTypes()); err != nil {
		return "", err
	}

	key := utils.ProfileObjectKey(baseUserID, header.Filename)
	if err := h.store.Upload(r.Context(), key, file, header.Size, contentType); err != nil {
		return "", err
	}
	return key, nil
}

func (h *Handler) handleUpdateProfileImage(w http.ResponseWriter, r *http.Request) {
	baseUserID, err := utils.GetUserID(r.Context())
	if err != nil {
		utils.WriteError(w, utils.Unauthorized("Invalid Credentials!"))
		return
	}
	u, err := GetUserByBaseUserID(h.db, baseUserID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	if err := r.ParseMultipartForm(utils.MaxUploadSize); err != nil {
		utils.WriteError(w, utils.BadRequest("Invalid multipart form"))
		return
	}
	key, err := h.uploadProfileImage(r, baseUserID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	if key == "" {
		utils.WriteError(w, utils.BadRequest("profile_image file is required"))
		return
	}

	oldKey := u.ProfileKey
	if err := h.db.Model(u).Update("profile_key", key).Error; err != nil {
		utils.WriteError(w, err)
		return
	}
	if oldKey != "" && oldKey != key {
		if err := h.store.Delete(r.Context(), oldKey); err != nil {
			log.Printf("failed to delete old profile image %s: %v", oldKey, err)
		}
	}
	u.ProfileKey = key

	utils.WriteSuccess(w, http.StatusOK, "Profile image updated!", Response(r.Context(), h.store, u))
}

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	baseUserID, err := utils.GetUserID(r.Context())
	if err != nil {
		utils.WriteError(w, utils.Unauthorized("Invalid Credentials!"))
		return
	}

	target, err := GetUserByUsername(h.db, mux.Vars(r)["username"])
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	if err := CheckPrivateUser(h.db, baseUserID, utils.GetRole(r.Context()), target); err != nil {
		utils.WriteError(w, err)
		return
	}

	var followers, following int64
	h.db.Model(&models.Follow{}).Where("following_id = ? AND status = ?", target.ID, models.FollowApproved).Count(&followers)
	h.db.Model(&models.Follow{}).Where("follower_id = ? AND status = ?", target.ID, models.FollowApproved).Count(&following)

	data := Response(r.Context(), h.store, target)
	data["followers_count"] = followers
	data["following_count"] = following

	utils.WriteSuccess(w, http.StatusOK, "User fetched successfully!", data)
}

type updateProfileRequest struct {
	Username    string  `json:"username" validate:"omitempty,min=3,max=30"`
	Bio         *string `json:"bio" validate:"omitempty"`
	ProfileType string  `json:"profile_type" validate:"omitempty,oneof=public private"`
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	baseUserID, err := utils.GetUserID(r.Context())
	if err != nil {
		utils.WriteError(w, utils.Unauthorized("Invalid Credentials!"))
		return
	}
	u, err := GetUserByBaseUserID(h.db, baseUserID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	var payload updateProfileRequest
	if err := utils.DecodeAndValidate(r, h.validate, &payload); err != nil {
		utils.WriteError(w, err)
		return
	}

	updates := map[string]interface{}{}
	if payload.Username != "" {
		updates["username"] = payload.Username
	}
	if payload.Bio != nil {
		updates["bio"] = strings.TrimSpace(*payload.Bio)
	}
	if payload.ProfileType != "" {
		updates["profile_type"] = payload.ProfileType
	}
	if len(updates) == 0 {
		utils.WriteError(w, utils.BadRequest("Nothing to update!"))
		return
	}

	if err := h.db.Model(u).Updates(updates).Error; err != nil {
		utils.WriteError(w, utils.FromDBError(err))
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "User updated successfully!", Response(r.Context(), h.store, u))
}

func (h *Handler) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	baseUserID, err := utils.GetUserID(r.Context())
	if err != nil {
		utils.WriteError(w, utils.Unauthorized("Invalid Credentials!"))
		return
	}
	u, err := GetUserByBaseUserID(h.db, baseUserID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("follower_id = ? OR following_id = ?", u.ID, u.ID).Delete(&models.Follow{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(u).Error
	})
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	if u.ProfileKey != "" {
		if err := h.store.Delete(r.Context(), u.ProfileKey); err != nil {
			log.Printf("failed to delete profile image %s: %v", u.ProfileKey, err)
		}
	}

	utils.WriteSuccess(w, http.StatusOK, "User deleted successfully!", nil)
}

func (h *Handler) handleListBaseUsers(w http.ResponseWriter, r *http.Request) {
	page := utils.ParsePage(r)
	pageSize := h.cfg.PageSize

	var total int64
	if err := h.db.Model(&models.BaseUser{}).Count(&total).Error; err != nil {
		utils.WriteError(w, err)
		return
	}

	var baseUsers []models.BaseUser
	err := h.db.Preload("User").Preload("Admin").
		Order("created_at DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&baseUsers).Error
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Base users fetched successfully!", map[string]interface{}{
		"items":      baseUsers,
		"pagination": utils.NewPaginationMeta(page, pageSize, total),
	})
}

func (h *Handler) handleGetBaseUser(w http.ResponseWriter, r *http.Request) {
	baseUserID, err := utils.GetUserID(r.Context())
	if err != nil {
		utils.WriteError(w, utils.Unauthorized("Invalid Credentials!"))
		return
	}

	var baseUser models.BaseUser
	if err := h.db.Preload("User").Preload("Admin").First(&baseUser, baseUserID).Error; err != nil {
		utils.WriteError(w, utils.NotFound("User doesn't exist!"))
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Account fetched successfully!", baseUser)
}

type updateBaseUserRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (h *Handler) handleUpdateBaseUser(w http.ResponseWriter, r *http.Request) {
	baseUserID, err := utils.GetUserID(r.Context())
	if err != nil {
		utils.WriteError(w, utils.Unauthorized("Invalid Credentials!"))
		return
	}

	var payload updateBaseUserRequest
	if err := utils.DecodeAndValidate(r, h.validate, &payload); err != nil {
		utils.WriteError(w, err)
		return
	}

	err = h.db.Model(&models.BaseUser{}).Where("id = ?", baseUserID).
		Update("email", strings.ToLower(payload.Email)).Error
	if err != nil {
		utils.WriteError(w, utils.FromDBError(err))
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Account updated successfully!", nil)
}

func (h *Handler) handleDeleteBaseUser(w http.ResponseWriter, r *http.Request) {
	baseUserID, err := utils.GetUserID(r.Context())
	if err != nil {
		utils.WriteError(w, utils.Unauthorized("Invalid Credentials!"))
		return
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if u, err := GetUserByBaseUserID(tx, baseUserID); err == nil {
			if err := tx.Unscoped().Where("follower_id = ? OR following_id = ?", u.ID, u.ID).Delete(&models.Follow{}).Error; err != nil {
				return err
			}
			if err := tx.Unscoped().Delete(u).Error; err != nil {
				return err
			}
		}
		if err := tx.Unscoped().Where("base_user_id = ?", baseUserID).Delete(&models.Admin{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("base_user_id = ?", baseUserID).Delete(&models.Otp{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&models.BaseUser{}, baseUserID).Error
	})
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Account deleted successfully!", nil)
}

func (h *Handler) handleGetAdmin(w http.ResponseWriter, r *http.Request) {
	baseUserID, err := utils.GetUserID(r.Context())
	if err != nil {
		utils.WriteError(w, utils.Unauthorized("Invalid Credentials!"))
		return
	}

	var admin models.Admin
	if err := h.db.Preload("BaseUser").Where("base_user_id = ?", baseUserID).First(&admin).Error; err != nil {
		utils.WriteError(w, utils.NotFound("Admin doesn't exist!"))
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Admin fetched successfully!", admin)
}

func (h *Handler) handleDeleteAdmin(w http.ResponseWriter, r *http.Request) {
	baseUserID, err := utils.GetUserID(r.Context())
	if err != nil {
		utils.WriteError(w, utils.Unauthorized("Invalid Credentials!"))
		return
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("base_user_id = ?", baseUserID).Delete(&models.Admin{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&models.BaseUser{}, baseUserID).Error
	})
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Admin deleted successfully!", nil)
}
