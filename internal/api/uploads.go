package api

import (
	"io"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xaenox/command-center/internal/blob"
	"github.com/xaenox/command-center/internal/models"
)

// maxUploadBytes bounds a single attachment.
const maxUploadBytes = 25 << 20

type UploadResponse struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	StoragePath string `json:"storagePath"`
	PublicURL   string `json:"publicUrl"`
	SizeBytes   int64  `json:"sizeBytes"`
}

// Upload stores one attachment in the blob store under a collision-resistant
// key and records its metadata.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.Error(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "error reading file")
		return
	}

	contentType := header.Header.Get("Content-Type")
	key := uuid.New().String() + "-" + blob.SanitizeKey(header.Filename)

	publicURL, err := h.blobs.Put(key, contentType, data)
	if err != nil {
		h.logger.Error("Failed to store upload",
			zap.Error(err),
			zap.String("filename", header.Filename))
		h.Error(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	upload := &models.FileUpload{
		ID:          uuid.New().String(),
		Filename:    header.Filename,
		StoragePath: key,
		ContentType: contentType,
		SizeBytes:   int64(len(data)),
		UploadedBy:  models.UserSender,
	}
	if err := h.store.SaveUpload(r.Context(), upload); err != nil {
		// The blob is already stored; the missing metadata row only costs
		// the file browser an entry.
		h.logger.Warn("Failed to record upload metadata",
			zap.Error(err),
			zap.String("storage_path", key))
	}

	h.JSON(w, http.StatusCreated, UploadResponse{
		ID:          upload.ID,
		Filename:    upload.Filename,
		StoragePath: key,
		PublicURL:   publicURL,
		SizeBytes:   upload.SizeBytes,
	})
}
