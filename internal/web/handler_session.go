package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/vbonduro/icewatch/internal/domain"
	"github.com/vbonduro/icewatch/internal/i18n"
	"github.com/vbonduro/icewatch/internal/position"
	"github.com/vbonduro/icewatch/internal/submission"
)

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *session)

func (s *Server) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.sessions.get(r.PathValue("sid"))
		if !ok {
			s.writeError(w, r, http.StatusNotFound, "session_not_found", i18n.SessionNotFound)
			return
		}
		h(w, r, sess)
	}
}

type sessionResponse struct {
	ID       string              `json:"id"`
	Workflow submission.Snapshot `json:"workflow"`
	Position *position.Fix       `json:"position"`
	// Center is where the map should be: the device position, or the default
	// center until one is reported.
	Center domain.Coordinate `json:"center"`
	// Status is a localized line for the current state, if any.
	Status string `json:"status,omitempty"`
}

func (s *Server) sessionView(r *http.Request, sess *session) sessionResponse {
	resp := sessionResponse{
		ID:       sess.id,
		Workflow: sess.workflow.Snapshot(),
		Center:   sess.tracker.Center(s.settings.DefaultCenter),
	}
	if f, ok := sess.tracker.Last(); ok {
		resp.Position = &f
	}
	switch resp.Workflow.State {
	case submission.VerifyingWater:
		resp.Status = s.localizer(r).T(i18n.CheckingWater)
	case submission.WaterOverridePrompt:
		resp.Status = s.localizer(r).T(i18n.WaterInconclusive)
	}
	return resp
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.create()
	s.logger.Debug("session created", "session", sess.id)
	writeJSON(w, http.StatusCreated, s.sessionView(r, sess))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request, sess *session) {
	writeJSON(w, http.StatusOK, s.sessionView(r, sess))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.remove(r.PathValue("sid")) {
		s.writeError(w, r, http.StatusNotFound, "session_not_found", i18n.SessionNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type positionRequest struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Accuracy float64 `json:"accuracy"`
}

func (s *Server) handleReportPosition(w http.ResponseWriter, r *http.Request, sess *session) {
	var req positionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid_request", i18n.InvalidRequest)
		return
	}
	c := domain.Coordinate{Lat: req.Lat, Lng: req.Lng}
	if err := c.Validate(); err != nil || req.Accuracy < 0 {
		s.writeError(w, r, http.StatusBadRequest, "position_error", i18n.PositionError)
		return
	}

	sess.tracker.Publish(position.Fix{Coordinate: c, Accuracy: req.Accuracy, At: s.clock.Now()})
	w.WriteHeader(http.StatusNoContent)
}

const positionStreamKeepAlive = 25 * time.Second

// handlePositionStream sends every fix as a server-sent event until the
// client disconnects or the session ends.
func (s *Server) handlePositionStream(w http.ResponseWriter, r *http.Request, sess *session) {
	rc := http.NewResponseController(w)
	// The stream outlives the server's write timeout.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		s.logger.Warn("failed to clear write deadline", "error", err)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	_ = rc.Flush()

	fixes := sess.tracker.Subscribe(r.Context(), 8)
	keepAlive := s.clock.NewTicker(positionStreamKeepAlive)
	defer keepAlive.Stop()

	enc := json.NewEncoder(w)
	for {
		select {
		case f, ok := <-fixes:
			if !ok {
				return
			}
			if _, err := w.Write([]byte("event: position\ndata: ")); err != nil {
				return
			}
			// Encode terminates the data line with a newline.
			if err := enc.Encode(f); err != nil {
				return
			}
			if _, err := w.Write([]byte("\n")); err != nil {
				return
			}
		case <-keepAlive.Chan():
			if _, err := w.Write([]byte(": keep-alive\n\n")); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func (s *Server) handleAim(w http.ResponseWriter, r *http.Request, sess *session) {
	if err := sess.workflow.StartAiming(); err != nil {
		s.writeWorkflowError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.sessionView(r, sess))
}

type confirmRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request, sess *session) {
	var req confirmRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid_request", i18n.InvalidRequest)
		return
	}
	center := domain.Coordinate{Lat: req.Lat, Lng: req.Lng}
	if err := center.Validate(); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid_request", i18n.InvalidRequest)
		return
	}

	if err := sess.workflow.Confirm(center); err != nil {
		s.writeWorkflowError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.sessionView(r, sess))
}

type thicknessRequest struct {
	Thickness string `json:"thickness"`
}

func (s *Server) handleSetThickness(w http.ResponseWriter, r *http.Request, sess *session) {
	var req thicknessRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid_request", i18n.InvalidRequest)
		return
	}
	if err := sess.workflow.SetThickness(req.Thickness); err != nil {
		s.writeWorkflowError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.sessionView(r, sess))
}

func (s *Server) handleRemovePhoto(w http.ResponseWriter, r *http.Request, sess *session) {
	if err := sess.workflow.RemovePhoto(); err != nil {
		s.writeWorkflowError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.sessionView(r, sess))
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request, sess *session) {
	if err := sess.workflow.Cancel(); err != nil {
		s.writeWorkflowError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.sessionView(r, sess))
}

type saveResponse struct {
	// Outcome is "saved", "water_prompt" or "declined".
	Outcome     string           `json:"outcome"`
	Message     string           `json:"message,omitempty"`
	Measurement *measurementJSON `json:"measurement,omitempty"`
	Warnings    []string         `json:"warnings,omitempty"`
	Session     sessionResponse  `json:"session"`
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request, sess *session) {
	res, err := sess.workflow.Save(r.Context())
	s.writeSaveResult(w, r, sess, res, err)
}

type waterOverrideRequest struct {
	Accept bool `json:"accept"`
}

func (s *Server) handleWaterOverride(w http.ResponseWriter, r *http.Request, sess *session) {
	var req waterOverrideRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid_request", i18n.InvalidRequest)
		return
	}
	res, err := sess.workflow.ResolveWaterPrompt(r.Context(), req.Accept)
	s.writeSaveResult(w, r, sess, res, err)
}

func (s *Server) writeSaveResult(w http.ResponseWriter, r *http.Request, sess *session, res *submission.Result, err error) {
	loc := s.localizer(r)

	switch {
	case errors.Is(err, submission.ErrWaterInconclusive):
		writeJSON(w, http.StatusAccepted, saveResponse{
			Outcome: "water_prompt",
			Message: loc.T(i18n.WaterInconclusive),
			Session: s.sessionView(r, sess),
		})
	case err != nil:
		s.writeWorkflowError(w, r, err)
	case res == nil:
		writeJSON(w, http.StatusOK, saveResponse{Outcome: "declined", Session: s.sessionView(r, sess)})
	default:
		m := toMeasurementJSON(res.Measurement)
		resp := saveResponse{
			Outcome:     "saved",
			Message:     loc.T(i18n.MeasurementSaved),
			Measurement: &m,
			Session:     s.sessionView(r, sess),
		}
		for _, wn := range res.Warnings {
			resp.Warnings = append(resp.Warnings, string(wn))
			if wn == submission.WarningPositionUnknown {
				resp.Message += " " + loc.T(i18n.PositionUnknownWarning)
			}
		}
		writeJSON(w, http.StatusCreated, resp)
	}
}
