package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inspedralbes/tr3-comunitat-24-25-adriapedralbes-sub001/internal/database"
	"github.com/inspedralbes/tr3-comunitat-24-25-adriapedralbes-sub001/internal/http/middleware"
	"github.com/inspedralbes/tr3-comunitat-24-25-adriapedralbes-sub001/internal/models"
	"github.com/inspedralbes/tr3-comunitat-24-25-adriapedralbes-sub001/internal/store"
)

const testSecret = "test-secret"

func newTestServer(t *testing.T) (*gin.Engine, *store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.ConnectSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Message{}))
	st := store.New(db, time.Second)

	r := gin.New()
	msgH := &MessageHandler{Store: st}
	authed := r.Group("/api/messages")
	authed.Use(middleware.AuthMiddleware(testSecret))
	authed.GET("/conversations", msgH.ListConversations)
	authed.GET("/conversation/:userId", msgH.GetConversation)
	authed.PATCH("/read/:messageId", msgH.MarkMessageRead)
	return r, st
}

func mintToken(t *testing.T, userID, username string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  userID,
		"username": username,
		"exp":      time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func doRequest(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestGetConversationMarksReadOnView(t *testing.T) {
	r, st := newTestServer(t)
	ctx := context.Background()

	_, err := st.Append(ctx, "alice", "bob", "hi")
	require.NoError(t, err)
	_, err = st.Append(ctx, "alice", "bob", "are you there?")
	require.NoError(t, err)

	rec := doRequest(r, http.MethodGet, "/api/messages/conversation/alice", mintToken(t, "bob", "bob"))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []models.Message `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "hi", resp.Data[0].Content, "page must come back in chronological order")
	assert.Equal(t, "are you there?", resp.Data[1].Content)

	// Viewing flipped everything alice had sent to unread=0.
	convs, err := st.UserConversations(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "alice", convs[0].PartnerID)
	assert.EqualValues(t, 0, convs[0].UnreadCount)
}

func TestListConversationsUnreadCount(t *testing.T) {
	r, st := newTestServer(t)
	ctx := context.Background()

	_, err := st.Append(ctx, "alice", "bob", "hi")
	require.NoError(t, err)

	rec := doRequest(r, http.MethodGet, "/api/messages/conversations", mintToken(t, "bob", "bob"))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []store.ConversationSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "alice", resp.Data[0].PartnerID)
	assert.EqualValues(t, 1, resp.Data[0].UnreadCount)
	require.NotNil(t, resp.Data[0].LatestMessage)
	assert.Equal(t, "hi", resp.Data[0].LatestMessage.Content)
}

func TestMarkMessageReadForbiddenForSender(t *testing.T) {
	r, st := newTestServer(t)
	ctx := context.Background()

	msg, err := st.Append(ctx, "alice", "bob", "hi")
	require.NoError(t, err)

	rec := doRequest(r, http.MethodPatch,
		fmt.Sprintf("/api/messages/read/%d", msg.ID), mintToken(t, "alice", "alice"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	msgs, err := st.Conversation(ctx, "alice", "bob", 0, 0)
	require.NoError(t, err)
	assert.False(t, msgs[0].Read, "403 must leave the read flag unchanged")
}

func TestMarkMessageReadSuccess(t *testing.T) {
	r, st := newTestServer(t)

	msg, err := st.Append(context.Background(), "alice", "bob", "hi")
	require.NoError(t, err)

	rec := doRequest(r, http.MethodPatch,
		fmt.Sprintf("/api/messages/read/%d", msg.ID), mintToken(t, "bob", "bob"))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data models.Message `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Data.Read)
}

func TestMarkMessageReadNotFound(t *testing.T) {
	r, _ := newTestServer(t)

	rec := doRequest(r, http.MethodPatch, "/api/messages/read/9999", mintToken(t, "bob", "bob"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	r, _ := newTestServer(t)

	rec := doRequest(r, http.MethodGet, "/api/messages/conversations", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(r, http.MethodGet, "/api/messages/conversations", "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
