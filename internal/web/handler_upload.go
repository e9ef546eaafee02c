package web

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/vbonduro/icewatch/internal/i18n"
)

const maxPhotoSize = 20 * 1024 * 1024 // 20 MB

// allowedImageTypes is the set of MIME types accepted for attached photos.
// net/http.DetectContentType handles JPEG, PNG, and GIF via magic-byte
// sniffing. WebP is detected separately because the stdlib sniffer has no
// WebP signature.
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// isWebP reports whether data is a WebP image (RIFF container with "WEBP" at
// offset 8).
func isWebP(data []byte) bool {
	return len(data) >= 12 &&
		string(data[0:4]) == "RIFF" &&
		string(data[8:12]) == "WEBP"
}

// allowedImageMIME returns the detected MIME type and true if the data is an
// accepted image format, or ("", false) otherwise.
func allowedImageMIME(data []byte) (string, bool) {
	if isWebP(data) {
		return "image/webp", true
	}
	mime := http.DetectContentType(data)
	if allowedImageTypes[mime] {
		return mime, true
	}
	return "", false
}

// handleAttachPhoto takes a multipart form with an "image" field and attaches
// it to the session's draft. Resizing happens when the draft is saved.
func (s *Server) handleAttachPhoto(w http.ResponseWriter, r *http.Request, sess *session) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoSize+1024*1024)
	if err := r.ParseMultipartForm(maxPhotoSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, http.StatusRequestEntityTooLarge, "photo_too_large", i18n.PhotoTooLarge)
			return
		}
		s.writeError(w, r, http.StatusBadRequest, "invalid_request", i18n.InvalidRequest)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid_request", i18n.InvalidRequest)
		return
	}
	defer closeWithLog(file, "upload file", s.logger)

	imageData, err := io.ReadAll(file)
	if err != nil {
		s.logger.Error("read upload failed", "session", sess.id, "error", err)
		s.writeError(w, r, http.StatusBadRequest, "invalid_request", i18n.InvalidRequest)
		return
	}

	if _, ok := allowedImageMIME(imageData); !ok {
		s.writeError(w, r, http.StatusUnsupportedMediaType, "photo_unsupported", i18n.PhotoUnsupported)
		return
	}

	if err := sess.workflow.AttachPhoto(imageData, header.Filename); err != nil {
		s.writeWorkflowError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.sessionView(r, sess))
}

// closeWithLog closes c and logs any error, using label to identify the resource.
func closeWithLog(c io.Closer, label string, logger *slog.Logger) {
	if err := c.Close(); err != nil {
		logger.Error("failed to close resource", "label", label, "error", err)
	}
}
