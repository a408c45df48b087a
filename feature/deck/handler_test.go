package deck

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"deck-sync/feature/deck/models"
	"deck-sync/feature/deck/remote"
	"deck-sync/feature/deck/session"

	"github.com/gofiber/fiber/v2"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestApp(f *fixture) *fiber.App {
	app := fiber.New()
	NewHandler(f.svc).RegisterRoutes(app)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func TestHandler_Accounts(t *testing.T) {
	f := newFixture(t)
	app := newTestApp(f)

	status, body := doJSON(t, app, "POST", "/accounts", `{"name":"alice@cloud","url":"https://cloud.example.com","user_name":"alice","token":"secret"}`)
	require.Equal(t, fiber.StatusCreated, status, string(body))
	var created models.Account
	require.NoError(t, json.Unmarshal(body, &created))
	assert.NotZero(t, created.ID)
	assert.NotContains(t, string(body), "secret")

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"List", "GET", "/accounts", "", fiber.StatusOK},
		{"Get", "GET", "/accounts/1", "", fiber.StatusOK},
		{"Missing", "GET", "/accounts/99", "", fiber.StatusNotFound},
		{"BadID", "GET", "/accounts/abc", "", fiber.StatusBadRequest},
		{"Duplicate", "POST", "/accounts", `{"name":"alice@cloud","url":"https://x","user_name":"bob"}`, fiber.StatusUnprocessableEntity},
		{"Incomplete", "POST", "/accounts", `{"name":"bob"}`, fiber.StatusUnprocessableEntity},
		{"NoConflicts", "GET", "/accounts/1/conflicts", "", fiber.StatusOK},
		{"SyncMissingAccount", "POST", "/accounts/99/sync", "", fiber.StatusNotFound},
		{"ResolveBadKeep", "POST", "/conflicts/1/resolve", `{"keep":"both"}`, fiber.StatusBadRequest},
		{"ResolveMissing", "POST", "/conflicts/42/resolve", `{"keep":"local"}`, fiber.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := doJSON(t, app, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, status, string(body))
		})
	}

	t.Run("Delete", func(t *testing.T) {
		status, _ := doJSON(t, app, "DELETE", "/accounts/1", "")
		assert.Equal(t, fiber.StatusNoContent, status)
		status, _ = doJSON(t, app, "GET", "/accounts/1", "")
		assert.Equal(t, fiber.StatusNotFound, status)
	})
}

func TestHandler_Sync(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	app := newTestApp(f)
	a := f.account(t)

	b, err := f.server.CreateBoard(ctx, remote.Board{Title: "Roadmap"})
	require.NoError(t, err)

	status, body := doJSON(t, app, "POST", "/accounts/1/sync", "")
	require.Equal(t, fiber.StatusOK, status, string(body))
	var report session.Report
	require.NoError(t, json.Unmarshal(body, &report))
	assert.Equal(t, session.StateCompleted, report.State)
	assert.Equal(t, 1, report.Summary[models.KindBoard].Inserts)

	local, err := f.store.Boards.ByRemoteID(ctx, a.ID, b.ID)
	require.NoError(t, err)

	t.Run("Board", func(t *testing.T) {
		status, body := doJSON(t, app, "POST", "/accounts/1/boards/"+strconv.FormatInt(local.LocalID, 10)+"/sync", "")
		assert.Equal(t, fiber.StatusOK, status, string(body))
	})

	t.Run("Busy", func(t *testing.T) {
		require.True(t, f.svc.slots.TryAcquire(a.ID))
		defer f.svc.slots.Release(a.ID)
		status, _ := doJSON(t, app, "POST", "/accounts/1/sync", "")
		assert.Equal(t, fiber.StatusConflict, status)
	})

	t.Run("Offline", func(t *testing.T) {
		f.server.SetOffline(true)
		defer f.server.SetOffline(false)

		status, body := doJSON(t, app, "POST", "/accounts/1/sync", "")
		assert.Equal(t, fiber.StatusServiceUnavailable, status)
		var report session.Report
		require.NoError(t, json.Unmarshal(body, &report))
		assert.Equal(t, session.StateFailed, report.State)
		assert.NotEmpty(t, report.Error)
	})
}

func TestHandler_AddAttachment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	app := newTestApp(f)
	a := f.account(t)
	_, c := f.seedCard(t, a)
	local, err := f.store.Cards.ByRemoteID(ctx, a.ID, c.ID)
	require.NoError(t, err)

	f.blobs.On("PutObject", mock.Anything, "deck-attachments", mock.AnythingOfType("string"), mock.Anything, int64(5), mock.Anything).
		Return(minio.UploadInfo{Size: 5}, nil).Once()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/accounts/1/cards/"+strconv.FormatInt(local.LocalID, 10)+"/attachments", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var att models.Attachment
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&att))
	assert.Equal(t, "notes.txt", att.Filename)
	f.blobs.AssertExpectations(t)
}
