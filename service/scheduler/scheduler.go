package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/mridulsharma03/snapnet-server/cmd/config"
	"github.com/mridulsharma03/snapnet-server/cmd/models"
	"github.com/mridulsharma03/snapnet-server/service/mailer"
	"github.com/mridulsharma03/snapnet-server/service/post"
)

// Scheduler owns the background work: expiring OTP rows after their TTL
// and the periodic unseen-post digest emails.
type Scheduler struct {
	db             *gorm.DB
	mail           mailer.Sender
	digestInterval time.Duration
	digestBatch    int
}

func New(db *gorm.DB, mail mailer.Sender, cfg *config.Config) *Scheduler {
	return &Scheduler{
		db:             db,
		mail:           mail,
		digestInterval: cfg.DigestInterval,
		digestBatch:    cfg.DigestBatch,
	}
}

// DeleteOtpAfter removes the user's OTP row once the TTL elapses. A code
// regenerated in the meantime gets its own timer, so deleting by user id
// only drops whatever code is current when this one fires.
func (s *Scheduler) DeleteOtpAfter(baseUserID uint, ttl time.Duration) {
	time.AfterFunc(ttl, func() {
		log.Println(s.DeleteOtp(baseUserID))
	})
}

func (s *Scheduler) DeleteOtp(baseUserID uint) string {
	res := s.db.Unscoped().Where("base_user_id = ?", baseUserID).Delete(&models.Otp{})
	if res.Error != nil {
		return fmt.Sprintf("otp cleanup for user %d failed: %v", baseUserID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Sprintf("otp for user %d already gone", baseUserID)
	}
	return fmt.Sprintf("expired otp for user %d deleted", baseUserID)
}

// StartDigest runs the digest loop until the context is cancelled.
func (s *Scheduler) StartDigest(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.digestInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				log.Println(s.RunDigest())
			}
		}
	}()
}

// RunDigest emails every active non-admin user a sample of posts they have
// not engaged with yet. Per-user failures are collected, not fatal.
func (s *Scheduler) RunDigest() string {
	var users []models.User
	if err := s.db.Preload("BaseUser").
		Joins("JOIN base_users ON base_users.id = users.base_user_id").
		Where("base_users.is_active = ?", true).
		Find(&users).Error; err != nil {
		return fmt.Sprintf("digest aborted: %v", err)
	}

	sent, failed := 0, 0
	for i := range users {
		u := &users[i]
		posts, err := post.UnseenPosts(s.db, u.ID, s.digestBatch, 0)
		if err != nil {
			failed++
			continue
		}
		if len(posts) == 0 {
			continue
		}
		captions := make([]string, 0, len(posts))
		for _, p := range posts {
			captions = append(captions, p.Caption)
		}
		if err := s.mail.SendDigest(u.BaseUser.Email, captions); err != nil {
			failed++
			continue
		}
		sent++
	}
	return fmt.Sprintf("digest run complete: %d sent, %d failed", sent, failed)
}
