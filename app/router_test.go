package app_test

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"bitwise74/gallery-api/app"
	"bitwise74/gallery-api/internal"
	"bitwise74/gallery-api/internal/model"
	"bitwise74/gallery-api/internal/service"
	"bitwise74/gallery-api/internal/testutil"
	"bitwise74/gallery-api/pkg/middleware"
	"bitwise74/gallery-api/pkg/security"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)

type testServer struct {
	t        *testing.T
	router   *gin.Engine
	deps     *internal.Deps
	notifier *testutil.Notifier
	store    *testutil.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	store := testutil.NewStore()
	notifier := &testutil.Notifier{}
	tokens := security.NewTokenIssuer("test-secret", time.Hour)

	accounts := &service.Accounts{
		DB:       db,
		Argon:    testutil.FastArgon(),
		Tokens:   tokens,
		OTP:      security.NewOTPIssuer(time.Minute),
		Notifier: notifier,
		Verifier: &testutil.Verifier{Identities: map[string]*service.Identity{
			"google-token": {Subject: "g-1", Email: "gina@example.com", EmailVerified: true, Name: "Gina"},
		}},
	}

	d := &internal.Deps{
		DB:            db,
		Tokens:        tokens,
		Store:         store,
		Accounts:      accounts,
		Media:         &service.Media{DB: db, Store: store},
		Archive:       &service.Archiver{DB: db, Store: store},
		Contacts:      &service.Contacts{DB: db},
		MaxUploadSize: 1 << 20,
	}

	return &testServer{t: t, router: app.NewRouter(d), deps: d, notifier: notifier, store: store}
}

func (s *testServer) do(method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) json(method, path, token string, body any) *httptest.ResponseRecorder {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(s.t, err)
		r = bytes.NewReader(b)
	}

	return s.do(method, path, token, r, "application/json")
}

func (s *testServer) tokenFor(u *model.User) string {
	tok, err := s.deps.Tokens.Issue(u.ID)
	require.NoError(s.t, err)
	return tok
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func uploadForm(t *testing.T, fields map[string]string, fileName, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}

	if data != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="`+fileName+`"`)
		h.Set("Content-Type", contentType)

		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}

	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestHeartbeatAndMetrics(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusOK, s.do(http.MethodHead, "/api/heartbeat", "", nil, "").Code)

	w := s.do(http.MethodGet, "/api/metrics", "", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)

	w := s.json(http.MethodPost, "/api/auth/register", "", gin.H{"name": "Alice", "email": "Alice@Example.com", "password": "secret1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	reg := decode[map[string]string](t, w)
	assert.NotEmpty(t, reg["userId"])
	assert.NotEmpty(t, reg["message"])

	w = s.json(http.MethodPost, "/api/auth/register", "", gin.H{"name": "Alice", "email": "alice@example.com", "password": "secret1"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.json(http.MethodPost, "/api/auth/login", "", gin.H{"email": "alice@example.com", "password": "secret1"})
	assert.Equal(t, http.StatusUnauthorized, w.Code, "pending accounts can't log in")

	w = s.json(http.MethodPost, "/api/auth/verify-otp", "", gin.H{"email": "alice@example.com", "otp": "000000x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	code := s.notifier.LastCode("alice@example.com")
	require.NotEmpty(t, code)

	w = s.json(http.MethodPost, "/api/auth/verify-otp", "", gin.H{"email": "alice@example.com", "otp": code})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	verified := decode[struct {
		Token string     `json:"token"`
		User  model.User `json:"user"`
	}](t, w)
	assert.NotEmpty(t, verified.Token)
	assert.True(t, verified.User.Verified)

	w = s.json(http.MethodPost, "/api/auth/login", "", gin.H{"email": "alice@example.com", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	body := decode[map[string]string](t, w)
	assert.Equal(t, "Invalid email or password", body["error"])
	assert.Equal(t, w.Header().Get(middleware.RequestIDHeader), body["requestID"])

	w = s.json(http.MethodPost, "/api/auth/login", "", gin.H{"email": "alice@example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, w.Code)
	login := decode[map[string]any](t, w)

	w = s.do(http.MethodGet, "/api/auth/me", login["token"].(string), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[map[string]model.User](t, w)
	assert.Equal(t, "alice@example.com", me["user"].Email)
	assert.NotContains(t, w.Body.String(), "passwordHash")

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/auth/me", "", nil, "").Code)
}

func TestPasswordReset(t *testing.T) {
	s := newTestServer(t)
	testutil.CreateUser(t, s.deps.DB, "bob@example.com", "oldpass", model.RoleUser)

	w := s.json(http.MethodPost, "/api/auth/forgot-password", "", gin.H{"email": "nobody@example.com"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.json(http.MethodPost, "/api/auth/forgot-password", "", gin.H{"email": "BOB@example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "bob@example.com", decode[map[string]string](t, w)["email"])

	code := s.notifier.LastCode("bob@example.com")

	w = s.json(http.MethodPost, "/api/auth/reset-password", "", gin.H{"email": "bob@example.com", "otp": code, "newPassword": "123"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.json(http.MethodPost, "/api/auth/reset-password", "", gin.H{"email": "bob@example.com", "otp": code, "newPassword": "newpass"})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.json(http.MethodPost, "/api/auth/login", "", gin.H{"email": "bob@example.com", "password": "newpass"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGoogleLogin(t *testing.T) {
	s := newTestServer(t)

	w := s.json(http.MethodPost, "/api/auth/google", "", gin.H{"tokenId": "forged"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.json(http.MethodPost, "/api/auth/google", "", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.json(http.MethodPost, "/api/auth/google", "", gin.H{"tokenId": "google-token"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "gina@example.com")
}

func TestMediaEndpoints(t *testing.T) {
	s := newTestServer(t)
	alice := testutil.CreateUser(t, s.deps.DB, "alice@example.com", "secret1", model.RoleUser)
	bob := testutil.CreateUser(t, s.deps.DB, "bob@example.com", "secret1", model.RoleUser)
	aliceTok, bobTok := s.tokenFor(alice), s.tokenFor(bob)

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/media", "", nil, "").Code)

	body, ct := uploadForm(t, map[string]string{"title": "Sunset", "tags": "Sky, sea", "isShared": "true"}, "sunset.png", "image/png", pngBytes)
	w := s.do(http.MethodPost, "/api/media/upload", aliceTok, body, ct)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	created := decode[struct {
		Media model.Media `json:"media"`
	}](t, w).Media
	assert.Equal(t, "Sunset", created.Title)
	assert.Equal(t, model.StringSlice{"Sky", "sea"}, created.Tags)
	assert.True(t, created.IsShared)
	assert.Equal(t, 1, s.store.Len())

	body, ct = uploadForm(t, map[string]string{"title": "Notes"}, "notes.txt", "text/plain", []byte("hello"))
	w = s.do(http.MethodPost, "/api/media/upload", aliceTok, body, ct)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body, ct = uploadForm(t, map[string]string{"title": "Nothing"}, "", "", nil)
	w = s.do(http.MethodPost, "/api/media/upload", aliceTok, body, ct)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/media?shared=true", bobTok, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[service.MediaPage](t, w)
	require.Len(t, page.Media, 1)
	require.NotNil(t, page.Media[0].UploadedBy)
	assert.Equal(t, alice.ID, page.Media[0].UploadedBy.ID)

	w = s.do(http.MethodGet, "/api/media?page=abc", bobTok, nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/media/"+created.ID, bobTok, nil, "").Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/media/not-an-id", bobTok, nil, "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/media/abcdefghABCDEFGH", bobTok, nil, "").Code)

	w = s.json(http.MethodPut, "/api/media/"+created.ID, bobTok, gin.H{"title": "Mine now"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.json(http.MethodPut, "/api/media/"+created.ID, aliceTok, gin.H{"title": "Sunset 2", "tags": []string{"orange"}, "isShared": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/media/"+created.ID, bobTok, nil, "").Code)

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodDelete, "/api/media/"+created.ID, bobTok, nil, "").Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodDelete, "/api/media/"+created.ID, aliceTok, nil, "").Code)
	assert.Zero(t, s.store.Len())
}

func TestDownloadZip(t *testing.T) {
	s := newTestServer(t)
	alice := testutil.CreateUser(t, s.deps.DB, "alice@example.com", "secret1", model.RoleUser)
	tok := s.tokenFor(alice)

	first := testutil.CreateMedia(t, s.deps.DB, s.store, alice, "First", false)
	second := testutil.CreateMedia(t, s.deps.DB, s.store, alice, "Second", false)

	w := s.json(http.MethodPost, "/api/media/download-zip", tok, gin.H{"mediaIds": []string{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.json(http.MethodPost, "/api/media/download-zip", tok, gin.H{"mediaIds": []string{"abcdefghABCDEFGH"}})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.json(http.MethodPost, "/api/media/download-zip", tok, gin.H{"mediaIds": []string{first.ID, second.ID}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/zip", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), `attachment; filename="media-gallery-`)

	zr, err := zip.NewReader(bytes.NewReader(w.Body.Bytes()), int64(w.Body.Len()))
	require.NoError(t, err)
	names := []string{}
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"First.png", "Second.png"}, names)

	s.store.GetErr[first.StoreKey] = errors.New("gone")
	s.store.GetErr[second.StoreKey] = errors.New("gone")

	w = s.json(http.MethodPost, "/api/media/download-zip", tok, gin.H{"mediaIds": []string{first.ID, second.ID}})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error", decode[map[string]string](t, w)["error"])
}

func TestContactEndpoints(t *testing.T) {
	s := newTestServer(t)
	alice := testutil.CreateUser(t, s.deps.DB, "alice@example.com", "secret1", model.RoleUser)
	admin := testutil.CreateUser(t, s.deps.DB, "admin@example.com", "secret1", model.RoleAdmin)
	aliceTok, adminTok := s.tokenFor(alice), s.tokenFor(admin)

	w := s.json(http.MethodPost, "/api/contact", "", gin.H{"name": "Alice", "email": "alice@example.com", "message": "Sent before logging in"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	anon := decode[struct {
		Contact model.Contact `json:"contact"`
	}](t, w).Contact
	assert.Nil(t, anon.UserID)

	w = s.json(http.MethodPost, "/api/contact", aliceTok, gin.H{"name": "Alice", "email": "alice@example.com", "message": "Sent while logged in"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.json(http.MethodPost, "/api/contact", "", gin.H{"name": "A", "email": "bad", "message": "short"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/contact/messages", aliceTok, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[service.ContactPage](t, w).Messages, 2)

	w = s.json(http.MethodPut, "/api/contact/"+anon.ID, aliceTok, gin.H{"name": "Alice", "message": "Edited the early message"})
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/contact/admin", aliceTok, nil, "").Code)

	w = s.do(http.MethodGet, "/api/contact/admin?search=edited", adminTok, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	adminPage := decode[service.AdminContactPage](t, w)
	assert.Len(t, adminPage.Contacts, 1)
	assert.EqualValues(t, 2, adminPage.Statistics.TotalMessages)

	w = s.json(http.MethodPut, "/api/contact/admin/"+anon.ID, adminTok, gin.H{"status": "replied", "adminNotes": "done"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"replied"`)

	w = s.do(http.MethodDelete, "/api/contact/admin/"+anon.ID, adminTok, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "deletedContact")

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodDelete, "/api/contact/"+anon.ID, aliceTok, nil, "").Code)
}
