package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

// testRouter mirrors the route layout from cmd/server so handler tests go
// through the same middleware chain as production traffic.
func testRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", testServer.LoginHandler)
			r.Post("/register", testServer.RegisterHandler)
			r.Post("/refresh", testServer.RefreshTokenHandler)

			r.Group(func(r chi.Router) {
				r.Use(testServer.RequireAuth)
				r.Post("/logout", testServer.LogoutHandler)
				r.Get("/me", testServer.MeHandler)
				r.Get("/sessions", testServer.ListSessionsHandler)
			})
		})

		r.Route("/files", func(r chi.Router) {
			r.Use(testServer.RequireAuth)
			r.Get("/", testServer.ListFilesHandler)
			r.Post("/upload", testServer.UploadFileHandler)
			r.Get("/{id}", testServer.GetFileHandler)
			r.Get("/{id}/download", testServer.DownloadFileHandler)
			r.Put("/{id}", testServer.UpdateFileHandler)
			r.Delete("/{id}", testServer.DeleteFileHandler)
			r.With(testServer.RequireAdmin).Post("/bulk-delete", testServer.BulkDeleteFilesHandler)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(testServer.RequireAuth)
			r.Use(testServer.RequireAdmin)
			r.Get("/", testServer.ListUsersHandler)
			r.Get("/{id}", testServer.GetUserHandler)
			r.Put("/{id}", testServer.UpdateUserHandler)
			r.Delete("/{id}", testServer.DeleteUserHandler)
			r.Post("/{id}/reset-password", testServer.ResetPasswordHandler)
		})

		r.Route("/activity", func(r chi.Router) {
			r.Use(testServer.RequireAuth)
			r.Use(testServer.RequireAdmin)
			r.Get("/", testServer.ListActivityHandler)
			r.Get("/stats", testServer.ActivityStatsHandler)
		})
	})

	return r
}

func doRequest(t *testing.T, method, target, token string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rr := httptest.NewRecorder()
	testRouter().ServeHTTP(rr, req)
	return rr
}

func doJSON(t *testing.T, method, target, token string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()

	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return doRequest(t, method, target, token, bytes.NewReader(raw))
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rr.Body).Decode(out))
}

// multipartBody assembles an upload form with the given filename, content and
// extra form fields, returning the body and its content type.
func multipartBody(t *testing.T, filename, content string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)

	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	require.NoError(t, writer.Close())

	return &buf, writer.FormDataContentType()
}

func uploadRequest(t *testing.T, token, filename, content string, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	body, contentType := multipartBody(t, filename, content, fields)

	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", body)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", contentType)

	rr := httptest.NewRecorder()
	testRouter().ServeHTTP(rr, req)
	return rr
}
