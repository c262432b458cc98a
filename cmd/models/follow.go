package models

import "gorm.io/gorm"

const (
	FollowPending  = "pending"
	FollowApproved = "approved"
)

// Follow is a directed edge between two profiles. Edges toward public
// profiles are created approved, edges toward private profiles start
// pending. Rejected/cancelled/removed edges are deleted, not kept.
// The composite unique index turns duplicate requests into conflicts.
type Follow struct {
	gorm.Model
	FollowerID  uint   `gorm:"column:follower_id;not null;uniqueIndex:idx_follow_edge" json:"follower_id"`
	FollowingID uint   `gorm:"column:following_id;not null;uniqueIndex:idx_follow_edge" json:"following_id"`
	Status      string `gorm:"column:status;size:20;not null;default:pending" json:"status"`

	Follower  *User `gorm:"foreignKey:FollowerID" json:"follower,omitempty"`
	Following *User `gorm:"foreignKey:FollowingID" json:"following,omitempty"`
}
