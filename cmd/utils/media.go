package utils

import (
	"fmt"
	"path"
	"strings"
)

const MaxUploadSize = 50 << 20 // 50 MB multipart budget

var validImageTypes = []string{
	"image/jpeg",
	"image/png",
	"image/heic",
	"image/jpg",
}

var validPostMediaTypes = append(validImageTypes,
	"video/mp4",
	"video/mpeg",
)

func ValidImageTypes() []string {
	return validImageTypes
}

func ValidPostMediaTypes() []string {
	return validPostMediaTypes
}

// CheckFileType validates an uploaded content type against an allow-list.
func CheckFileType(contentType string, validTypes []string) error {
	for _, t := range validTypes {
		if contentType == t {
			return nil
		}
	}
	return Validation(fmt.Sprintf("Invalid File Type. Accepted valid types: %v", validTypes))
}

// PostObjectKey builds the deterministic storage key for the i-th media
// file of a post: posts/{profile_id}/{post_id}/post_{i}.{ext}
func PostObjectKey(userID, postID uint, index int, filename string) string {
	ext := strings.TrimPrefix(path.Ext(filename), ".")
	return fmt.Sprintf("posts/%d/%d/post_%d.%s", userID, postID, index, ext)
}

// ProfileObjectKey builds the storage key for a profile image.
func ProfileObjectKey(baseUserID uint, filename string) string {
	return fmt.Sprintf("profiles/%d/%s", baseUserID, path.Base(filename))
}
