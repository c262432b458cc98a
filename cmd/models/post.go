package models

import "gorm.io/gorm"

const MaxCaptionLength = 2200

const MaxCommentLength = 300

// Report reasons accepted by the moderation endpoints.
const (
	ReasonSpam          = "spam"
	ReasonHarassment    = "harassment"
	ReasonInappropriate = "inappropriate"
	ReasonOther         = "other"
)

type Post struct {
	gorm.Model
	PostedBy uint   `gorm:"column:posted_by;not null;index" json:"posted_by"`
	Caption  string `gorm:"column:caption;type:text" json:"caption,omitempty"`

	User     *User     `gorm:"foreignKey:PostedBy" json:"user,omitempty"`
	Media    []Media   `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"media,omitempty"`
	Likes    []Like    `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"likes,omitempty"`
	Comments []Comment `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"comments,omitempty"`
	Reports  []Report  `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
}

// Media stores the object-storage key, never a public URL. Handlers swap
// the key for a fresh presigned URL at serialization time.
type Media struct {
	gorm.Model
	PostID    uint   `gorm:"column:post_id;not null;index" json:"post_id"`
	MediaURL  string `gorm:"column:media_url;size:500;not null" json:"media_url"`
	MediaType string `gorm:"column:media_type;size:100;not null" json:"media_type"`
}

type Like struct {
	gorm.Model
	LikedBy uint `gorm:"column:liked_by;not null;uniqueIndex:idx_like_once" json:"liked_by"`
	PostID  uint `gorm:"column:post_id;not null;uniqueIndex:idx_like_once" json:"post_id"`

	User *User `gorm:"foreignKey:LikedBy" json:"user,omitempty"`
}

type Comment struct {
	gorm.Model
	CommentedBy uint   `gorm:"column:commented_by;not null" json:"commented_by"`
	PostID      uint   `gorm:"column:post_id;not null;index" json:"post_id"`
	Comment     string `gorm:"column:comment;size:300;not null" json:"comment"`

	User *User `gorm:"foreignKey:CommentedBy" json:"user,omitempty"`
}

type Report struct {
	gorm.Model
	ReportedBy     uint   `gorm:"column:reported_by;not null;uniqueIndex:idx_report_once" json:"reported_by"`
	PostID         uint   `gorm:"column:post_id;not null;uniqueIndex:idx_report_once" json:"post_id"`
	Reason         string `gorm:"column:reason;size:50;not null" json:"reason"`
	AdditionalText string `gorm:"column:additional_text;type:text" json:"additional_text,omitempty"`

	Post *Post `gorm:"foreignKey:PostID" json:"post,omitempty"`
}
