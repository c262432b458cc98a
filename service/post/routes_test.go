package post

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/mridulsharma03/snapnet-server/cmd/config"
	"github.com/mridulsharma03/snapnet-server/cmd/models"
	"github.com/mridulsharma03/snapnet-server/cmd/utils"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)
	return gdb, mock
}

func newTestHandler(t *testing.T) (*Handler, sqlmock.Sqlmock) {
	t.Helper()
	gdb, mock := newMockDB(t)
	cfg := &config.Config{PageSize: 10}
	return NewHandler(gdb, cfg, nil, nil, utils.NewAuthenticator("secret"), validator.New()), mock
}

func authedRequest(method, path, body string, baseUserID uint, role string, vars map[string]string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	ctx := context.WithValue(req.Context(), utils.UserIDKey, baseUserID)
	ctx = context.WithValue(ctx, utils.RoleKey, role)
	req = req.WithContext(ctx)
	if vars != nil {
		req = mux.SetURLVars(req, vars)
	}
	return req
}

func userRows(id, baseUserID uint, username, profileType string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "base_user_id", "username", "profile_type"}).
		AddRow(id, baseUserID, username, profileType)
}

func TestHandleUnlikeNotLiked(t *testing.T) {
	h, mock := newTestHandler(t)

	mock.ExpectQuery(`SELECT (.+) FROM "users"`).
		WillReturnRows(userRows(7, 1, "alice", models.ProfilePublic))
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "likes"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	rec := httptest.NewRecorder()
	h.handleUnlike(rec, authedRequest(http.MethodDelete, "/like/9/", "", 1, models.RoleUser, map[string]string{"post_id": "9"}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Post was not liked!")
}

func TestHandleLikeTwiceConflicts(t *testing.T) {
	h, mock := newTestHandler(t)

	// liker profile
	mock.ExpectQuery(`SELECT (.+) FROM "users"`).
		WillReturnRows(userRows(7, 1, "alice", models.ProfilePublic))
	// post plus media preload
	mock.ExpectQuery(`SELECT (.+) FROM "posts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "posted_by", "caption"}).AddRow(9, 3, "hello"))
	mock.ExpectQuery(`SELECT (.+) FROM "media"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "post_id"}))
	// author lookup for the visibility check
	mock.ExpectQuery(`SELECT (.+) FROM "users"`).
		WillReturnRows(userRows(3, 2, "bob", models.ProfilePublic))
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "likes"`).
		WillReturnError(errors.New(`duplicate key value violates unique constraint "idx_like_once"`))
	mock.ExpectRollback()

	rec := httptest.NewRecorder()
	h.handleLike(rec, authedRequest(http.MethodGet, "/like/9/", "", 1, models.RoleUser, map[string]string{"post_id": "9"}))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "Post already liked!")
}

func TestHandleUpdateRejectsOversizedCaption(t *testing.T) {
	h, mock := newTestHandler(t)

	mock.ExpectQuery(`SELECT (.+) FROM "users"`).
		WillReturnRows(userRows(7, 1, "alice", models.ProfilePublic))

	body := `{"caption":"` + strings.Repeat("a", models.MaxCaptionLength+1) + `"}`
	rec := httptest.NewRecorder()
	h.handleUpdate(rec, authedRequest(http.MethodPut, "/post/9/", body, 1, models.RoleUser, map[string]string{"id": "9"}))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCreatePostRejectsAdmin(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.handleCreate(rec, authedRequest(http.MethodPost, "/post/create/", "", 1, models.RoleAdmin, nil))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "Admin user can't perform this action!")
}

// fakeObjectStore records storage traffic so upload and cleanup paths can
// be asserted without a bucket.
type fakeObjectStore struct {
	uploaded []string
	deleted  []string
	types    map[string]string
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{types: map[string]string{}}
}

func (f *fakeObjectStore) Upload(_ context.Context, objectKey string, _ io.Reader, _ int64, contentType string) error {
	f.uploaded = append(f.uploaded, objectKey)
	f.types[objectKey] = contentType
	return nil
}

func (f *fakeObjectStore) Delete(_ context.Context, objectKey string) error {
	f.deleted = append(f.deleted, objectKey)
	return nil
}

func (f *fakeObjectStore) PresignedURL(_ context.Context, objectKey string) (string, error) {
	return "https://cdn.test/" + objectKey, nil
}

func newTestHandlerWithStore(t *testing.T) (*Handler, sqlmock.Sqlmock, *fakeObjectStore) {
	t.Helper()
	gdb, mock := newMockDB(t)
	store := newFakeObjectStore()
	cfg := &config.Config{PageSize: 10}
	return NewHandler(gdb, cfg, store, nil, utils.NewAuthenticator("secret"), validator.New()), mock, store
}

func buildPostForm(t *testing.T, caption string, files [][2]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("caption", caption))
	for _, f := range files {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="media"; filename="%s"`, f[0]))
		hdr.Set("Content-Type", f[1])
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write([]byte("file-bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func multipartRequest(body *bytes.Buffer, contentType string, baseUserID uint) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/post/create/", body)
	req.Header.Set("Content-Type", contentType)
	ctx := context.WithValue(req.Context(), utils.UserIDKey, baseUserID)
	ctx = context.WithValue(ctx, utils.RoleKey, models.RoleUser)
	return req.WithContext(ctx)
}

func TestCreatePostUploadsEveryMediaFile(t *testing.T) {
	h, mock, store := newTestHandlerWithStore(t)

	mock.ExpectQuery(`SELECT (.+) FROM "users"`).
		WillReturnRows(userRows(7, 1, "alice", models.ProfilePublic))
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "posts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))
	mock.ExpectQuery(`INSERT INTO "media"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(`INSERT INTO "media"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
	mock.ExpectCommit()
	// reload for the response payload
	mock.ExpectQuery(`SELECT (.+) FROM "posts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "posted_by", "caption"}).AddRow(9, 7, "beach day"))
	mock.ExpectQuery(`SELECT (.+) FROM "media"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "post_id", "media_url", "media_type"}).
			AddRow(1, 9, "posts/7/9/post_0.png", "image/png").
			AddRow(2, 9, "posts/7/9/post_1.mp4", "video/mp4"))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "likes"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "comments"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	body, contentType := buildPostForm(t, "beach day", [][2]string{
		{"one.png", "image/png"},
		{"two.mp4", "video/mp4"},
	})
	rec := httptest.NewRecorder()
	h.handleCreate(rec, multipartRequest(body, contentType, 1))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []string{"posts/7/9/post_0.png", "posts/7/9/post_1.mp4"}, store.uploaded)
	assert.Equal(t, "image/png", store.types["posts/7/9/post_0.png"])
	assert.Equal(t, "video/mp4", store.types["posts/7/9/post_1.mp4"])
	assert.Contains(t, rec.Body.String(), "https://cdn.test/posts/7/9/post_0.png")
	assert.Empty(t, store.deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePostCleansUpObjectsWhenRowInsertFails(t *testing.T) {
	h, mock, store := newTestHandlerWithStore(t)

	mock.ExpectQuery(`SELECT (.+) FROM "users"`).
		WillReturnRows(userRows(7, 1, "alice", models.ProfilePublic))
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "posts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))
	mock.ExpectQuery(`INSERT INTO "media"`).
		WillReturnError(errors.New("insert failed"))
	mock.ExpectRollback()

	body, contentType := buildPostForm(t, "beach day", [][2]string{{"one.png", "image/png"}})
	rec := httptest.NewRecorder()
	h.handleCreate(rec, multipartRequest(body, contentType, 1))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, []string{"posts/7/9/post_0.png"}, store.uploaded)
	assert.Equal(t, store.uploaded, store.deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleDeleteRemovesObjectsAndRows(t *testing.T) {
	h, mock, store := newTestHandlerWithStore(t)

	mock.ExpectQuery(`SELECT (.+) FROM "users"`).
		WillReturnRows(userRows(7, 1, "alice", models.ProfilePublic))
	mock.ExpectQuery(`SELECT (.+) FROM "posts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "posted_by", "caption"}).AddRow(9, 7, "beach day"))
	mock.ExpectQuery(`SELECT (.+) FROM "media"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "post_id", "media_url", "media_type"}).
			AddRow(1, 9, "posts/7/9/post_0.png", "image/png").
			AddRow(2, 9, "posts/7/9/post_1.mp4", "video/mp4"))
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "likes"`).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM "comments"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM "reports"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM "media"`).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM "posts"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rec := httptest.NewRecorder()
	h.handleDelete(rec, authedRequest(http.MethodDelete, "/post/9/", "", 1, models.RoleUser, map[string]string{"id": "9"}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Post deleted successfully!")
	assert.Equal(t, []string{"posts/7/9/post_0.png", "posts/7/9/post_1.mp4"}, store.deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleReportTwiceConflicts(t *testing.T) {
	h, mock := newTestHandler(t)

	// reporter profile
	mock.ExpectQuery(`SELECT (.+) FROM "users"`).
		WillReturnRows(userRows(7, 1, "alice", models.ProfilePublic))
	// post plus media preload
	mock.ExpectQuery(`SELECT (.+) FROM "posts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "posted_by", "caption"}).AddRow(9, 3, "hello"))
	mock.ExpectQuery(`SELECT (.+) FROM "media"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "post_id"}))
	// author lookup for the visibility check
	mock.ExpectQuery(`SELECT (.+) FROM "users"`).
		WillReturnRows(userRows(3, 2, "bob", models.ProfilePublic))
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "reports"`).
		WillReturnError(errors.New(`duplicate key value violates unique constraint "idx_report_once"`))
	mock.ExpectRollback()

	rec := httptest.NewRecorder()
	h.handleReport(rec, authedRequest(http.MethodPost, "/report-post/9/", `{"reason":"spam"}`, 1, models.RoleUser, map[string]string{"post_id": "9"}))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "Post already reported!")
}

func TestPathIDRejectsGarbage(t *testing.T) {
	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/like/x/", nil), map[string]string{"post_id": "x"})
	_, err := pathID(req, "post_id")
	require.Error(t, err)
	assert.Equal(t, utils.KindBadRequest, err.(*utils.APIError).Kind)
}
