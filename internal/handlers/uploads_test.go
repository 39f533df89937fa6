package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sohbat-app/chat-service/internal/auth"
	"github.com/sohbat-app/chat-service/internal/server"
	"github.com/sohbat-app/chat-service/internal/storage"
)

type fakeUploader struct {
	attachment *storage.Attachment
	err        error
	calls      int
}

func (f *fakeUploader) Upload(_ context.Context, userID, filename string, size int64, _ io.Reader) (*storage.Attachment, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.attachment, nil
}

func newUploadRouter(uploader Uploader) *mux.Router {
	router := mux.NewRouter()
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(server.AuthMiddleware(auth.NewVerifier(testSecret)))
	api.HandleFunc("/uploads", NewUploadHandler(uploader).Upload).Methods(http.MethodPost)
	return router
}

func multipartUpload(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func TestUploadReturnsAttachment(t *testing.T) {
	uploader := &fakeUploader{attachment: &storage.Attachment{
		URL:  "https://cdn.example.com/u1/1741597200000-abcd1234.png",
		Key:  "u1/1741597200000-abcd1234.png",
		Name: "photo.png",
		Size: 5,
	}}
	router := newUploadRouter(uploader)

	body, contentType := multipartUpload(t, "photo.png", "bytes")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, "u1"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var attachment storage.Attachment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &attachment))
	assert.Equal(t, uploader.attachment.URL, attachment.URL)
	assert.Equal(t, 1, uploader.calls)
}

func TestUploadFailureReturnsErrorWithoutAttachment(t *testing.T) {
	uploader := &fakeUploader{err: errors.New("bucket unreachable")}
	router := newUploadRouter(uploader)

	body, contentType := multipartUpload(t, "photo.png", "bytes")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, "u1"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	// The caller gets an error and no URL, so no message embedding the
	// attachment can follow.
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var response map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "upload failed", response["error"])
	assert.NotContains(t, response, "url")
}

func TestUploadWithoutFileField(t *testing.T) {
	router := newUploadRouter(&fakeUploader{})

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+mintToken(t, "u1"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
