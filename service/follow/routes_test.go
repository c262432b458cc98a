package follow

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

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
	return NewHandler(gdb, utils.NewAuthenticator("secret"), validator.New()), mock
}

func authedRequest(method, path, body string, baseUserID uint) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	ctx := context.WithValue(req.Context(), utils.UserIDKey, baseUserID)
	ctx = context.WithValue(ctx, utils.RoleKey, models.RoleUser)
	return req.WithContext(ctx)
}

func userRows(id, baseUserID uint, username, profileType string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "base_user_id", "username", "profile_type"}).
		AddRow(id, baseUserID, username, profileType)
}

func TestHandleSendSelfFollow(t *testing.T) {
	h, mock := newTestHandler(t)

	mock.ExpectQuery(`SELECT (.+) FROM "users"`).
		WillReturnRows(userRows(7, 1, "alice", models.ProfilePublic))
	mock.ExpectQuery(`SELECT (.+) FROM "users"`).
		WillReturnRows(userRows(7, 1, "alice", models.ProfilePublic))

	rec := httptest.NewRecorder()
	h.handleSend(rec, authedRequest(http.MethodPost, "/follow/send/", `{"username":"alice"}`, 1))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleSendToPublicUserIsApproved(t *testing.T) {
	h, mock := newTestHandler(t)

	mock.ExpectQuery(`SELECT (.+) FROM "users"`).
		WillReturnRows(userRows(7, 1, "alice", models.ProfilePublic))
	mock.ExpectQuery(`SELECT (.+) FROM "users"`).
		WillReturnRows(userRows(9, 2, "bob", models.ProfilePublic))
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "follows"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	rec := httptest.NewRecorder()
	h.handleSend(rec, authedRequest(http.MethodPost, "/follow/send/", `{"username":"bob"}`, 1))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"approved"`)
	assert.Contains(t, rec.Body.String(), "Followed successfully!")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleSendToPrivateUserIsPending(t *testing.T) {
	h, mock := newTestHandler(t)

	mock.ExpectQuery(`SELECT (.+) FROM "users"`).
		WillReturnRows(userRows(7, 1, "alice", models.ProfilePublic))
	mock.ExpectQuery(`SELECT (.+) FROM "users"`).
		WillReturnRows(userRows(9, 2, "bob", models.ProfilePrivate))
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "follows"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	rec := httptest.NewRecorder()
	h.handleSend(rec, authedRequest(http.MethodPost, "/follow/send/", `{"username":"bob"}`, 1))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"pending"`)
	assert.Contains(t, rec.Body.String(), "Follow request sent!")
}

func TestHandleAcceptWithoutPendingRequest(t *testing.T) {
	h, mock := newTestHandler(t)

	mock.ExpectQuery(`SELECT (.+) FROM "users"`).
		WillReturnRows(userRows(7, 1, "alice", models.ProfilePrivate))
	mock.ExpectQuery(`SELECT (.+) FROM "users"`).
		WillReturnRows(userRows(9, 2, "bob", models.ProfilePublic))
	mock.ExpectQuery(`SELECT (.+) FROM "follows"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	rec := httptest.NewRecorder()
	h.handleAccept(rec, authedRequest(http.MethodPost, "/follow/accept/", `{"username":"bob"}`, 1))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "No pending request from this user!")
}

func TestHandleRejectWithoutPendingRequest(t *testing.T) {
	h, mock := newTestHandler(t)

	mock.ExpectQuery(`SELECT (.+) FROM "users"`).
		WillReturnRows(userRows(7, 1, "alice", models.ProfilePrivate))
	mock.ExpectQuery(`SELECT (.+) FROM "users"`).
		WillReturnRows(userRows(9, 2, "bob", models.ProfilePublic))
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "follows"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	rec := httptest.NewRecorder()
	h.handleReject(rec, authedRequest(http.MethodPost, "/follow/reject/", `{"username":"bob"}`, 1))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "No pending request from this user!")
}

func TestHandleRejectDeletesPendingEdge(t *testing.T) {
	h, mock := newTestHandler(t)

	mock.ExpectQuery(`SELECT (.+) FROM "users"`).
		WillReturnRows(userRows(7, 1, "alice", models.ProfilePrivate))
	mock.ExpectQuery(`SELECT (.+) FROM "users"`).
		WillReturnRows(userRows(9, 2, "bob", models.ProfilePublic))
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "follows"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rec := httptest.NewRecorder()
	h.handleReject(rec, authedRequest(http.MethodPost, "/follow/reject/", `{"username":"bob"}`, 1))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Follow request rejected!")
}

func TestHandleUnfollowIsSilentWhenAbsent(t *testing.T) {
	h, mock := newTestHandler(t)

	mock.ExpectQuery(`SELECT (.+) FROM "users"`).
		WillReturnRows(userRows(7, 1, "alice", models.ProfilePublic))
	mock.ExpectQuery(`SELECT (.+) FROM "users"`).
		WillReturnRows(userRows(9, 2, "bob", models.ProfilePublic))
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "follows"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	rec := httptest.NewRecorder()
	h.handleUnfollow(rec, authedRequest(http.MethodPost, "/follow/unfollow/", `{"username":"bob"}`, 1))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Unfollowed successfully!")
}
