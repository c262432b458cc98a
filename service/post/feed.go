package post

import (
	"gorm.io/gorm"

	"github.com/mridulsharma03/snapnet-server/cmd/models"
)

// unseenQuery selects posts the viewer has not liked yet, excluding their
// own, restricted to authors whose content the viewer may see: public
// profiles plus private profiles the viewer follows with approval.
func unseenQuery(db *gorm.DB, viewerID uint) *gorm.DB {
	liked := db.Model(&models.Like{}).Select("post_id").Where("liked_by = ?", viewerID)
	followed := db.Model(&models.Follow{}).Select("following_id").
		Where("follower_id = ? AND status = ?", viewerID, models.FollowApproved)

	return db.Model(&models.Post{}).
		Joins("JOIN users ON users.id = posts.posted_by").
		Where("posts.posted_by <> ?", viewerID).
		Where("posts.id NOT IN (?)", liked).
		Where("users.profile_type = ? OR posts.posted_by IN (?)", models.ProfilePublic, followed)
}

// UnseenPosts returns a newest-first page of the viewer's unseen posts.
// The digest job and the feed endpoint share this query.
func UnseenPosts(db *gorm.DB, viewerID uint, limit, offset int) ([]models.Post, error) {
	var posts []models.Post
	err := unseenQuery(db, viewerID).
		Preload("Media").Preload("User").
		Order("posts.created_at DESC").
		Limit(limit).Offset(offset).
		Find(&posts).Error
	return posts, err
}

func UnseenPostCount(db *gorm.DB, viewerID uint) (int64, error) {
	var total int64
	err := unseenQuery(db, viewerID).Count(&total).Error
	return total, err
}
