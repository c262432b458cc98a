package user

import (
	"errors"

	"gorm.io/gorm"

	"github.com/mridulsharma03/snapnet-server/cmd/models"
	"github.com/mridulsharma03/snapnet-server/cmd/utils"
)

// GetUserByBaseUserID resolves the caller's profile from the token's
// identity.
func GetUserByBaseUserID(db *gorm.DB, baseUserID uint) (*models.User, error) {
	var u models.User
	if err := db.Where("base_user_id = ?", baseUserID).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("You have not created a user yet!")
		}
		return nil, err
	}
	return &u, nil
}

func GetUserByUsername(db *gorm.DB, username string) (*models.User, error) {
	var u models.User
	if err := db.Where("username = ?", username).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("User doesn't exist!")
		}
		return nil, err
	}
	return &u, nil
}

// CheckPrivateUser enforces the private-profile rule: admins see
// everything, public profiles are open, and a private profile is only
// visible to its owner or an approved follower.
func CheckPrivateUser(db *gorm.DB, currentBaseUserID uint, role string, target *models.User) error {
	if role == models.RoleAdmin {
		return nil
	}
	if !target.IsPrivate() {
		return nil
	}

	viewer, err := GetUserByBaseUserID(db, currentBaseUserID)
	if err != nil {
		return err
	}
	if viewer.ID == target.ID {
		return nil
	}

	var count int64
	err = db.Model(&models.Follow{}).
		Where("follower_id = ? AND following_id = ? AND status = ?", viewer.ID, target.ID, models.FollowApproved).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count == 0 {
		return utils.Forbidden("This is an private user. You must follow to access their contents.")
	}
	return nil
}
