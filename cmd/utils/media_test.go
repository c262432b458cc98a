package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckFileType(t *testing.T) {
	assert.NoError(t, CheckFileType("image/png", ValidImageTypes()))
	assert.NoError(t, CheckFileType("video/mp4", ValidPostMediaTypes()))

	err := CheckFileType("video/mp4", ValidImageTypes())
	assert.Error(t, err)
	assert.Equal(t, KindValidation, err.(*APIError).Kind)

	err = CheckFileType("application/pdf", ValidPostMediaTypes())
	assert.Error(t, err)
}

func TestPostObjectKey(t *testing.T) {
	assert.Equal(t, "posts/3/17/post_0.png", PostObjectKey(3, 17, 0, "holiday.png"))
	assert.Equal(t, "posts/3/17/post_2.mp4", PostObjectKey(3, 17, 2, "clip.final.mp4"))
}

func TestProfileObjectKey(t *testing.T) {
	assert.Equal(t, "profiles/9/avatar.jpg", ProfileObjectKey(9, "avatar.jpg"))
	// path traversal in the filename is stripped
	assert.Equal(t, "profiles/9/passwd", ProfileObjectKey(9, "../../etc/passwd"))
}
