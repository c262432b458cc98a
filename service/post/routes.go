package post

import (
	"context"
	"errors"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/mridulsharma03/snapnet-server/cmd/config"
	"github.com/mridulsharma03/snapnet-server/cmd/models"
	"github.com/mridulsharma03/snapnet-server/cmd/utils"
	"github.com/mridulsharma03/snapnet-server/service/mailer"
	"github.com/mridulsharma03/snapnet-server/service/payment"
	"github.com/mridulsharma03/snapnet-server/service/user"
	"github.com/mridulsharma03/snapnet-server/storage"
)

type Handler struct {
	db       *gorm.DB
	cfg      *config.Config
	store    storage.ObjectStore
	mail     mailer.Sender
	auth     *utils.Authenticator
	validate *validator.Validate
}

func NewHandler(db *gorm.DB, cfg *config.Config, store storage.ObjectStore, mail mailer.Sender, auth *utils.Authenticator, validate *validator.Validate) *Handler {
	return &Handler{db: db, cfg: cfg, store: store, mail: mail, auth: auth, validate: validate}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	// feed registers before the username listing so "feed" is not read as
	// a username.
	router.HandleFunc("/posts/feed/", h.auth.Middleware(h.handleFeed)).Methods(http.MethodGet)
	router.HandleFunc("/posts/{username}/", h.auth.Middleware(h.handleListByUsername)).Methods(http.MethodGet)
	router.HandleFunc("/post/create/", h.auth.Middleware(h.handleCreate)).Methods(http.MethodPost)
	router.HandleFunc("/post/ad/", h.auth.Middleware(h.handleCreateAd)).Methods(http.MethodPost)
	router.HandleFunc("/post/{id}/", h.auth.Middleware(h.handleUpdate)).Methods(http.MethodPut)
	router.HandleFunc("/post/{id}/", h.auth.Middleware(h.handleDelete)).Methods(http.MethodDelete)

	router.HandleFunc("/like/{post_id}/", h.auth.Middleware(h.handleLike)).Methods(http.MethodGet)
	router.HandleFunc("/like/{post_id}/", h.auth.Middleware(h.handleUnlike)).Methods(http.MethodDelete)
	router.HandleFunc("/comment/{post_id}/", h.auth.Middleware(h.handleComment)).Methods(http.MethodPost)
	router.HandleFunc("/comment/{id}/", h.auth.Middleware(h.handleDeleteComment)).Methods(http.MethodDelete)
	router.HandleFunc("/report-post/{post_id}/", h.auth.Middleware(h.handleReport)).Methods(http.MethodPost)

	router.HandleFunc("/admin/reported_posts/", h.auth.RequireAdmin(h.handleListReported)).Methods(http.MethodGet)
	router.HandleFunc("/admin/reported_posts/{post_id}/", h.auth.RequireAdmin(h.handleModerationDelete)).Methods(http.MethodDelete)
}

func pathID(r *http.Request, name string) (uint, error) {
	id, err := strconv.ParseUint(mux.Vars(r)[name], 10, 64)
	if err != nil || id == 0 {
		return 0, utils.BadRequest("Invalid id in path!")
	}
	return uint(id), nil
}

func getPost(db *gorm.DB, postID uint) (*models.Post, error) {
	var p models.Post
	if err := db.Preload("Media").First(&p, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("Post not found!")
		}
		return nil, err
	}
	return &p, nil
}

// checkPostVisible applies the author's privacy rule to the caller.
func (h *Handler) checkPostVisible(r *http.Request, p *models.Post) error {
	baseUserID, err := utils.GetUserID(r.Context())
	if err != nil {
		return utils.Unauthorized("Invalid Credentials!")
	}
	var author models.User
	if err := h.db.First(&author, p.PostedBy).Error; err != nil {
		return err
	}
	return user.CheckPrivateUser(h.db, baseUserID, utils.GetRole(r.Context()), &author)
}

func (h *Handler) currentUser(r *http.Request) (*models.User, error) {
	baseUserID, err := utils.GetUserID(r.Context())
	if err != nil {
		return nil, utils.Unauthorized("Invalid Credentials!")
	}
	return user.GetUserByBaseUserID(h.db, baseUserID)
}

// response swaps media keys for presigned URLs and attaches counts.
func (h *Handler) response(ctx context.Context, p *models.Post) map[string]interface{} {
	media := make([]map[string]interface{}, 0, len(p.Media))
	for _, m := range p.Media {
		url, err := h.store.PresignedURL(ctx, m.MediaURL)
		if err != nil {
			log.Printf("failed to presign media %s: %v", m.MediaURL, err)
			continue
		}
		media = append(media, map[string]interface{}{
			"id":         m.ID,
			"media_url":  url,
			"media_type": m.MediaType,
		})
	}

	var likes, comments int64
	h.db.Model(&models.Like{}).Where("post_id = ?", p.ID).Count(&likes)
	h.db.Model(&models.Comment{}).Where("post_id = ?", p.ID).Count(&comments)

	out := map[string]interface{}{
		"id":             p.ID,
		"posted_by":      p.PostedBy,
		"caption":        p.Caption,
		"media":          media,
		"likes_count":    likes,
		"comments_count": comments,
		"created_at":     p.CreatedAt,
	}
	if p.User != nil {
		out["username"] = p.User.Username
	}
	return out
}

func (h *Handler) responses(ctx context.Context, posts []models.Post) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(posts))
	for i := range posts {
		out = append(out, h.response(ctx, &posts[i]))
	}
	return out
}

func (h *Handler) handleListByUsername(w http.ResponseWriter, r *http.Request) {
	baseUserID, err := utils.GetUserID(r.Context())
	if err != nil {
		utils.WriteError(w, utils.Unauthorized("Invalid Credentials!"))
		return
	}
	target, err := user.GetUserByUsername(h.db, mux.Vars(r)["username"])
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	if err := user.CheckPrivateUser(h.db, baseUserID, utils.GetRole(r.Context()), target); err != nil {
		utils.WriteError(w, err)
		return
	}

	query := h.db.Model(&models.Post{}).Where("posted_by = ?", target.ID)
	if search := strings.TrimSpace(r.URL.Query().Get("search")); search != "" {
		query = query.Where("caption ILIKE ?", "%"+search+"%")
	}
	if filter := r.URL.Query().Get("date_filter"); filter != "" {
		floor, err := DateFloor(filter, time.Now())
		if err != nil {
			utils.WriteError(w, err)
			return
		}
		query = query.Where("created_at >= ?", floor)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.WriteError(w, err)
		return
	}

	page := utils.ParsePage(r)
	pageSize := h.cfg.PageSize
	var posts []models.Post
	err = query.Preload("Media").Preload("User").
		Order("created_at DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&posts).Error
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Posts fetched successfully!", map[string]interface{}{
		"items":      h.responses(r.Context(), posts),
		"pagination": utils.NewPaginationMeta(page, pageSize, total),
	})
}

func (h *Handler) handleFeed(w http.ResponseWriter, r *http.Request) {
	viewer, err := h.currentUser(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	total, err := UnseenPostCount(h.db, viewer.ID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	page := utils.ParsePage(r)
	pageSize := h.cfg.PageSize
	posts, err := UnseenPosts(h.db, viewer.ID, pageSize, (page-1)*pageSize)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Feed fetched successfully!", map[string]interface{}{
		"items":      h.responses(r.Context(), posts),
		"pagination": utils.NewPaginationMeta(page, pageSize, total),
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	h.createPost(w, r, false)
}

// handleCreateAd is the promoted-post endpoint, available to subscribers
// only.
func (h *Handler) handleCreateAd(w http.ResponseWriter, r *http.Request) {
	h.createPost(w, r, true)
}

func (h *Handler) createPost(w http.ResponseWriter, r *http.Request, requirePaid bool) {
	if utils.GetRole(r.Context()) == models.RoleAdmin {
		utils.WriteError(w, utils.Forbidden("Admin user can't perform this action!"))
		return
	}
	author, err := h.currentUser(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	if requirePaid {
		if err := payment.CheckIfUserPaid(h.db, author.ID); err != nil {
			utils.WriteError(w, err)
			return
		}
	}

	if err := r.ParseMultipartForm(utils.MaxUploadSize); err != nil {
		utils.WriteError(w, utils.BadRequest("Invalid multipart form"))
		return
	}
	caption := strings.TrimSpace(r.FormValue("caption"))
	if len(caption) > models.MaxCaptionLength {
		utils.WriteError(w, utils.Validation("Validation failed", utils.FieldError{
			Field:   "caption",
			Message: "caption is too long",
			Type:    "max",
		}))
		return
	}

	var files []*multipartFile
	if r.MultipartForm != nil {
		for _, fh := range r.MultipartForm.File["media"] {
			files = append(files, &multipartFile{header: fh, contentType: fh.Header.Get("Content-Type")})
		}
	}
	if caption == "" && len(files) == 0 {
		utils.WriteError(w, utils.BadRequest("Post must have a caption or media!"))
		return
	}
	// validate every file before any byte is uploaded
	for _, f := range files {
		if err := utils.CheckFileType(f.contentType, utils.ValidPostMediaTypes()); err != nil {
			utils.WriteError(w, err)
			return
		}
	}

	p := models.Post{PostedBy: author.ID, Caption: caption}
	var uploaded []string
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&p).Error; err != nil {
			return err
		}
		for i, f := range files {
			key := utils.PostObjectKey(author.ID, p.ID, i, f.header.Filename)
			src, err := f.header.Open()
			if err != nil {
				return err
			}
			err = h.store.Upload(r.Context(), key, src, f.header.Size, f.contentType)
			src.Close()
			if err != nil {
				return err
			}
			uploaded = append(uploaded, key)
			if err := tx.Create(&models.Media{PostID: p.ID, MediaURL: key, MediaType: f.contentType}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// roll back any objects that made it to storage
		for _, key := range uploaded {
			if derr := h.store.Delete(r.Context(), key); derr != nil {
				log.Printf("failed to clean up orphaned media %s: %v", key, derr)
			}
		}
		utils.WriteError(w, utils.FromDBError(err))
		return
	}

	full, err := getPost(h.db, p.ID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Post created successfully!", h.response(r.Context(), full))
}

type multipartFile struct {
	header      *multipart.FileHeader
	contentType string
}

type updatePostRequest struct {
	Caption string `json:"caption" validate:"required"`
}

// handleUpdate edits the caption. Media is immutable after creation.
func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	postID, err := pathID(r, "id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	author, err := h.currentUser(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	var payload updatePostRequest
	if err := utils.DecodeAndValidate(r, h.validate, &payload); err != nil {
		utils.WriteError(w, err)
		return
	}
	caption := strings.TrimSpace(payload.Caption)
	if len(caption) > models.MaxCaptionLength {
		utils.WriteError(w, utils.Validation("Validation failed", utils.FieldError{
			Field:   "caption",
			Message: "caption is too long",
			Type:    "max",
		}))
		return
	}

	var p models.Post
	err = h.db.Where("id = ? AND posted_by = ?", postID, author.ID).First(&p).Error
	if err != nil {
		utils.WriteError(w, utils.NotFound("Post not found!"))
		return
	}

	if err := h.db.Model(&p).Update("caption", caption).Error; err != nil {
		utils.WriteError(w, err)
		return
	}

	full, err := getPost(h.db, p.ID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Post updated successfully!", h.response(r.Context(), full))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	postID, err := pathID(r, "id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	author, err := h.currentUser(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	var p models.Post
	err = h.db.Preload("Media").Where("id = ? AND posted_by = ?", postID, author.ID).First(&p).Error
	if err != nil {
		utils.WriteError(w, utils.NotFound("Post not found!"))
		return
	}

	if err := h.deletePost(r.Context(), &p); err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Post deleted successfully!", nil)
}

// deletePost removes storage objects first, then all rows in one
// transaction. A failed object delete is logged, not fatal: the rows are
// the source of truth.
func (h *Handler) deletePost(ctx context.Context, p *models.Post) error {
	for _, m := range p.Media {
		if err := h.store.Delete(ctx, m.MediaURL); err != nil {
			log.Printf("failed to delete media object %s: %v", m.MediaURL, err)
		}
	}
	return h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("post_id = ?", p.ID).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("post_id = ?", p.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("post_id = ?", p.ID).Delete(&models.Report{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("post_id = ?", p.ID).Delete(&models.Media{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&models.Post{}, p.ID).Error
	})
}

func (h *Handler) handleLike(w http.ResponseWriter, r *http.Request) {
	postID, err := pathID(r, "post_id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	liker, err := h.currentUser(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	p, err := getPost(h.db, postID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	if err := h.checkPostVisible(r, p); err != nil {
		utils.WriteError(w, err)
		return
	}

	like := models.Like{LikedBy: liker.ID, PostID: p.ID}
	if err := h.db.Create(&like).Error; err != nil {
		utils.WriteError(w, utils.FromDBError(err))
		return
	}

	utils.WriteSuccess(w, http.StatusCreated, "Post liked!", like)
}

func (h *Handler) handleUnlike(w http.ResponseWriter, r *http.Request) {
	postID, err := pathID(r, "post_id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	liker, err := h.currentUser(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	res := h.db.Unscoped().Where("liked_by = ? AND post_id = ?", liker.ID, postID).Delete(&models.Like{})
	if res.Error != nil {
		utils.WriteError(w, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		utils.WriteError(w, utils.BadRequest("Post was not liked!"))
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Post unliked!", nil)
}

type commentRequest struct {
	Comment string `json:"comment" validate:"required,max=300"`
}

func (h *Handler) handleComment(w http.ResponseWriter, r *http.Request) {
	postID, err := pathID(r, "post_id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	commenter, err := h.currentUser(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	var payload commentRequest
	if err := utils.DecodeAndValidate(r, h.validate, &payload); err != nil {
		utils.WriteError(w, err)
		return
	}
	text := strings.TrimSpace(payload.Comment)
	if text == "" {
		utils.WriteError(w, utils.Validation("Validation failed", utils.FieldError{
			Field:   "comment",
			Message: "this field is required",
			Type:    "required",
		}))
		return
	}

	p, err := getPost(h.db, postID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	if err := h.checkPostVisible(r, p); err != nil {
		utils.WriteError(w, err)
		return
	}

	comment := models.Comment{CommentedBy: commenter.ID, PostID: p.ID, Comment: text}
	if err := h.db.Create(&comment).Error; err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteSuccess(w, http.StatusCreated, "Comment added!", comment)
}

func (h *Handler) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	commentID, err := pathID(r, "id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	commenter, err := h.currentUser(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	res := h.db.Unscoped().Where("id = ? AND commented_by = ?", commentID, commenter.ID).Delete(&models.Comment{})
	if res.Error != nil {
		utils.WriteError(w, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		utils.WriteError(w, utils.NotFound("Comment not found!"))
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Comment deleted!", nil)
}

type reportRequest struct {
	Reason         string `json:"reason" validate:"required,oneof=spam harassment inappropriate other"`
	AdditionalText string `json:"additional_text" validate:"omitempty,max=500"`
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	postID, err := pathID(r, "post_id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	reporter, err := h.currentUser(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	var payload reportRequest
	if err := utils.DecodeAndValidate(r, h.validate, &payload); err != nil {
		utils.WriteError(w, err)
		return
	}

	p, err := getPost(h.db, postID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	if err := h.checkPostVisible(r, p); err != nil {
		utils.WriteError(w, err)
		return
	}

	report := models.Report{
		ReportedBy:     reporter.ID,
		PostID:         p.ID,
		Reason:         payload.Reason,
		AdditionalText: strings.TrimSpace(payload.AdditionalText),
	}
	if err := h.db.Create(&report).Error; err != nil {
		utils.WriteError(w, utils.FromDBError(err))
		return
	}

	utils.WriteSuccess(w, http.StatusCreated, "Post reported!", report)
}

func (h *Handler) handleListReported(w http.ResponseWriter, r *http.Request) {
	page := utils.ParsePage(r)
	pageSize := h.cfg.PageSize

	var total int64
	if err := h.db.Model(&models.Report{}).Count(&total).Error; err != nil {
		utils.WriteError(w, err)
		return
	}

	var reports []models.Report
	err := h.db.Preload("Post").Preload("Post.User").
		Order("created_at DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&reports).Error
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Reported posts fetched successfully!", map[string]interface{}{
		"items":      reports,
		"pagination": utils.NewPaginationMeta(page, pageSize, total),
	})
}

// handleModerationDelete takes a reported post down and notifies its
// author by email.
func (h *Handler) handleModerationDelete(w http.ResponseWriter, r *http.Request) {
	postID, err := pathID(r, "post_id")
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	var p models.Post
	err = h.db.Preload("Media").Preload("User.BaseUser").First(&p, postID).Error
	if err != nil {
		utils.WriteError(w, utils.NotFound("Post not found!"))
		return
	}

	if err := h.deletePost(r.Context(), &p); err != nil {
		utils.WriteError(w, err)
		return
	}

	if p.User != nil && p.User.BaseUser != nil {
		go func(email, caption string) {
			if err := h.mail.SendPostRemoved(email, caption); err != nil {
				log.Printf("failed to send takedown email to %s: %v", email, err)
			}
		}(p.User.BaseUser.Email, p.Caption)
	}

	utils.WriteSuccess(w, http.StatusOK, "Reported post deleted!", nil)
}
