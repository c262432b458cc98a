package follow

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/mridulsharma03/snapnet-server/cmd/models"
	"github.com/mridulsharma03/snapnet-server/cmd/utils"
	"github.com/mridulsharma03/snapnet-server/service/user"
)

type Handler struct {
	db       *gorm.DB
	auth     *utils.Authenticator
	validate *validator.Validate
}

func NewHandler(db *gorm.DB, auth *utils.Authenticator, validate *validator.Validate) *Handler {
	return &Handler{db: db, auth: auth, validate: validate}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/follow/send/", h.auth.Middleware(h.handleSend)).Methods(http.MethodPost)
	router.HandleFunc("/follow/accept/", h.auth.Middleware(h.handleAccept)).Methods(http.MethodPost)
	router.HandleFunc("/follow/reject/", h.auth.Middleware(h.handleReject)).Methods(http.MethodPost)
	router.HandleFunc("/follow/cancel/", h.auth.Middleware(h.handleCancel)).Methods(http.MethodPost)
	router.HandleFunc("/follow/unfollow/", h.auth.Middleware(h.handleUnfollow)).Methods(http.MethodPost)
	router.HandleFunc("/follow/remove_follower/", h.auth.Middleware(h.handleRemoveFollower)).Methods(http.MethodPost)

	router.HandleFunc("/follow-requests/received/", h.auth.Middleware(h.handleReceivedRequests)).Methods(http.MethodGet)
	router.HandleFunc("/follow-requests/sent/", h.auth.Middleware(h.handleSentRequests)).Methods(http.MethodGet)
	router.HandleFunc("/followers/{username}/", h.auth.Middleware(h.handleFollowers)).Methods(http.MethodGet)
	router.HandleFunc("/following/{username}/", h.auth.Middleware(h.handleFollowing)).Methods(http.MethodGet)
}

type followRequest struct {
	Username string `json:"username" validate:"required"`
}

// resolvePair loads the caller's profile and the named target profile.
func (h *Handler) resolvePair(r *http.Request) (current *models.User, target *models.User, err error) {
	baseUserID, err := utils.GetUserID(r.Context())
	if err != nil {
		return nil, nil, utils.Unauthorized("Invalid Credentials!")
	}
	current, err = user.GetUserByBaseUserID(h.db, baseUserID)
	if err != nil {
		return nil, nil, err
	}

	var payload followRequest
	if err := utils.DecodeAndValidate(r, h.validate, &payload); err != nil {
		return nil, nil, err
	}
	target, err = user.GetUserByUsername(h.db, payload.Username)
	if err != nil {
		return nil, nil, err
	}
	return current, target, nil
}

// handleSend creates the edge, approved immediately for public targets
// and pending for private ones.
func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	current, target, err := h.resolvePair(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	if current.ID == target.ID {
		utils.WriteError(w, utils.Validation("Validation failed", utils.FieldError{
			Field:   "username",
			Message: "a user cannot follow themselves",
			Type:    "self_follow",
		}))
		return
	}

	status := models.FollowApproved
	message := "Followed successfully!"
	if target.IsPrivate() {
		status = models.FollowPending
		message = "Follow request sent!"
	}

	edge := models.Follow{FollowerID: current.ID, FollowingID: target.ID, Status: status}
	if err := h.db.Create(&edge).Error; err != nil {
		utils.WriteError(w, utils.FromDBError(err))
		return
	}

	utils.WriteSuccess(w, http.StatusCreated, message, edge)
}

func (h *Handler) handleAccept(w http.ResponseWriter, r *http.Request) {
	current, requester, err := h.resolvePair(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	var edge models.Follow
	err = h.db.Where("follower_id = ? AND following_id = ? AND status = ?",
		requester.ID, current.ID, models.FollowPending).First(&edge).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.WriteError(w, utils.BadRequest("No pending request from this user!"))
			return
		}
		utils.WriteError(w, err)
		return
	}

	if err := h.db.Model(&edge).Update("status", models.FollowApproved).Error; err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Follow request accepted!", edge)
}

// handleReject deletes a pending incoming edge; rejecting without one is
// a client error, unlike cancel/unfollow which no-op.
func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	current, requester, err := h.resolvePair(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	res := h.db.Unscoped().Where("follower_id = ? AND following_id = ? AND status = ?",
		requester.ID, current.ID, models.FollowPending).Delete(&models.Follow{})
	if res.Error != nil {
		utils.WriteError(w, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		utils.WriteError(w, utils.BadRequest("No pending request from this user!"))
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Follow request rejected!", nil)
}

// handleCancel withdraws the caller's own pending request; absence is a
// no-op.
func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	current, target, err := h.resolvePair(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	err = h.db.Unscoped().Where("follower_id = ? AND following_id = ? AND status = ?",
		current.ID, target.ID, models.FollowPending).Delete(&models.Follow{}).Error
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Follow request cancelled!", nil)
}

func (h *Handler) handleUnfollow(w http.ResponseWriter, r *http.Request) {
	current, target, err := h.resolvePair(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	err = h.db.Unscoped().Where("follower_id = ? AND following_id = ? AND status = ?",
		current.ID, target.ID, models.FollowApproved).Delete(&models.Follow{}).Error
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Unfollowed successfully!", nil)
}

func (h *Handler) handleRemoveFollower(w http.ResponseWriter, r *http.Request) {
	current, follower, err := h.resolvePair(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	err = h.db.Unscoped().Where("follower_id = ? AND following_id = ? AND status = ?",
		follower.ID, current.ID, models.FollowApproved).Delete(&models.Follow{}).Error
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Follower removed successfully!", nil)
}

func (h *Handler) currentUser(r *http.Request) (*models.User, error) {
	baseUserID, err := utils.GetUserID(r.Context())
	if err != nil {
		return nil, utils.Unauthorized("Invalid Credentials!")
	}
	return user.GetUserByBaseUserID(h.db, baseUserID)
}

func (h *Handler) handleReceivedRequests(w http.ResponseWriter, r *http.Request) {
	current, err := h.currentUser(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	var edges []models.Follow
	err = h.db.Preload("Follower").
		Where("following_id = ? AND status = ?", current.ID, models.FollowPending).
		Order("created_at DESC").Find(&edges).Error
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Received follow requests fetched!", edges)
}

func (h *Handler) handleSentRequests(w http.ResponseWriter, r *http.Request) {
	current, err := h.currentUser(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	var edges []models.Follow
	err = h.db.Preload("Following").
		Where("follower_id = ? AND status = ?", current.ID, models.FollowPending).
		Order("created_at DESC").Find(&edges).Error
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Sent follow requests fetched!", edges)
}

// listTarget resolves the named profile and applies the private-profile
// visibility rule before the follower listings.
func (h *Handler) listTarget(r *http.Request) (*models.User, error) {
	baseUserID, err := utils.GetUserID(r.Context())
	if err != nil {
		return nil, utils.Unauthorized("Invalid Credentials!")
	}
	target, err := user.GetUserByUsername(h.db, mux.Vars(r)["username"])
	if err != nil {
		return nil, err
	}
	if err := user.CheckPrivateUser(h.db, baseUserID, utils.GetRole(r.Context()), target); err != nil {
		return nil, err
	}
	return target, nil
}

func (h *Handler) handleFollowers(w http.ResponseWriter, r *http.Request) {
	target, err := h.listTarget(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	var edges []models.Follow
	err = h.db.Preload("Follower").
		Where("following_id = ? AND status = ?", target.ID, models.FollowApproved).
		Order("created_at DESC").Find(&edges).Error
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	followers := make([]*models.User, 0, len(edges))
	for i := range edges {
		if edges[i].Follower != nil {
			followers = append(followers, edges[i].Follower)
		}
	}

	utils.WriteSuccess(w, http.StatusOK, "Followers fetched successfully!", followers)
}

func (h *Handler) handleFollowing(w http.ResponseWriter, r *http.Request) {
	target, err := h.listTarget(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	var edges []models.Follow
	err = h.db.Preload("Following").
		Where("follower_id = ? AND status = ?", target.ID, models.FollowApproved).
		Order("created_at DESC").Find(&edges).Error
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	following := make([]*models.User, 0, len(edges))
	for i := range edges {
		if edges[i].Following != nil {
			following = append(following, edges[i].Following)
		}
	}

	utils.WriteSuccess(w, http.StatusOK, "Following fetched successfully!", following)
}
