package handlers

import (
	"context"
	"io"
	"log"
	"net/http"

	"github.com/sohbat-app/chat-service/internal/storage"
)

// maxUploadSize caps one attachment at 25 MiB.
const maxUploadSize = 25 << 20

// Uploader is what the handler needs from the object store.
type Uploader interface {
	Upload(ctx context.Context, userID, filename string, size int64, body io.Reader) (*storage.Attachment, error)
}

type UploadHandler struct {
	storage Uploader
}

func NewUploadHandler(store Uploader) *UploadHandler {
	return &UploadHandler{storage: store}
}

// Upload stores one multipart file under the caller's prefix and returns the
// public URL for embedding in a message.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		respondError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	attachment, err := h.storage.Upload(r.Context(), claims.UserID(), header.Filename, header.Size, file)
	if err != nil {
		log.Printf("Upload failed for user %s: %v", claims.UserID(), err)
		respondError(w, http.StatusInternalServerError, "upload failed")
		return
	}

	respondJSON(w, http.StatusCreated, attachment)
}
