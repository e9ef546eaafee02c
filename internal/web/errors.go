package web

import (
	"errors"
	"math"
	"net/http"

	"github.com/vbonduro/icewatch/internal/i18n"
	"github.com/vbonduro/icewatch/internal/service"
	"github.com/vbonduro/icewatch/internal/submission"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// localizer picks the message language from ?lang= or Accept-Language.
func (s *Server) localizer(r *http.Request) *i18n.Localizer {
	if lang := r.URL.Query().Get("lang"); lang != "" {
		return s.bundle.ForAcceptLanguage(lang)
	}
	return s.bundle.ForAcceptLanguage(r.Header.Get("Accept-Language"))
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, code string, key i18n.Key, args ...any) {
	writeJSON(w, status, errorResponse{Error: code, Message: s.localizer(r).T(key, args...)})
}

// writeWorkflowError maps workflow and service errors to a status, a stable
// code and a localized message.
func (s *Server) writeWorkflowError(w http.ResponseWriter, r *http.Request, err error) {
	var de *submission.DistanceError
	switch {
	case errors.As(err, &de):
		s.writeError(w, r, http.StatusUnprocessableEntity, "distance_exceeded", i18n.DistanceExceeded,
			int(math.Round(de.Distance)), int(math.Round(de.Threshold)))
	case errors.Is(err, submission.ErrPositionUnknown):
		s.writeError(w, r, http.StatusUnprocessableEntity, "position_unknown", i18n.PositionUnknown)
	case errors.Is(err, submission.ErrThicknessRequired):
		s.writeError(w, r, http.StatusBadRequest, "thickness_required", i18n.ThicknessRequired)
	case errors.Is(err, submission.ErrThicknessInvalid):
		s.writeError(w, r, http.StatusBadRequest, "thickness_invalid", i18n.ThicknessInvalid)
	case errors.Is(err, submission.ErrPhotoEncoding):
		s.writeError(w, r, http.StatusUnprocessableEntity, "photo_encoding_failed", i18n.PhotoEncodingFailed)
	case errors.Is(err, submission.ErrPhotoUpload):
		s.writeError(w, r, http.StatusBadGateway, "photo_upload_failed", i18n.PhotoUploadFailed)
	case errors.Is(err, submission.ErrRecordInsert):
		s.writeError(w, r, http.StatusServiceUnavailable, "record_insert_failed", i18n.RecordInsertFailed)
	case errors.Is(err, submission.ErrBusy):
		s.writeError(w, r, http.StatusConflict, "busy", i18n.Busy)
	case errors.Is(err, submission.ErrInvalidState):
		s.writeError(w, r, http.StatusConflict, "invalid_state", i18n.InvalidState)
	case errors.Is(err, service.ErrNotFound):
		s.writeError(w, r, http.StatusNotFound, "not_found", i18n.MeasurementNotFound)
	case errors.Is(err, service.ErrRecordDelete):
		s.logger.Error("delete measurement failed", "error", err)
		s.writeError(w, r, http.StatusServiceUnavailable, "record_delete_failed", i18n.MeasurementDeleteFailed)
	default:
		s.logger.Error("unhandled error", "path", r.URL.Path, "error", err)
		s.writeError(w, r, http.StatusInternalServerError, "internal_error", i18n.InternalError)
	}
}
