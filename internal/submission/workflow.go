// Package submission turns an aimed point, a typed thickness and an optional
// photo into a stored measurement. Each Workflow serves one client session and
// runs its stages strictly in order: distance check, water check, photo
// normalization, upload, insert.
package submission

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/vbonduro/icewatch/internal/domain"
	"github.com/vbonduro/icewatch/internal/geo"
	"github.com/vbonduro/icewatch/internal/imaging"
	"github.com/vbonduro/icewatch/internal/observability"
	"github.com/vbonduro/icewatch/internal/photostore"
)

// PositionSource reports the device's last known position, nil if unknown.
type PositionSource interface {
	Position() *domain.Coordinate
}

type WaterVerifier interface {
	IsWater(ctx context.Context, c domain.Coordinate) bool
}

type PhotoNormalizer interface {
	Normalize(data []byte, filename string) (imaging.Photo, error)
}

// MeasurementCreator is the subset of store.MeasurementStore the workflow
// writes through.
type MeasurementCreator interface {
	Create(ctx context.Context, m domain.NewMeasurement) (*domain.Measurement, error)
}

// ListRefresher reloads the shared measurement list after a successful save.
type ListRefresher interface {
	Refresh(ctx context.Context) error
}

// Dependencies are shared by every workflow except Position, which belongs
// to one session.
type Dependencies struct {
	Guard      geo.Guard
	Policy     UnknownPositionPolicy
	Position   PositionSource
	Water      WaterVerifier
	Normalizer PhotoNormalizer
	Photos     photostore.PhotoStore
	Store      MeasurementCreator
	List       ListRefresher
	Namer      *FileNamer
	Metrics    *observability.Metrics
	Logger     *slog.Logger
}

type attachedPhoto struct {
	data     []byte
	filename string
}

// draft is the pending submission between Confirm and a finished save.
type draft struct {
	candidate     *domain.Coordinate
	thickness     string
	photo         *attachedPhoto
	checkingWater bool
	uploading     bool
}

// pendingSave holds what Save validated while the user answers the water
// prompt.
type pendingSave struct {
	thickness int
	warnings  []Warning
}

type Workflow struct {
	deps Dependencies

	mu      sync.Mutex
	state   State
	draft   draft
	pending *pendingSave
}

func New(deps Dependencies) *Workflow {
	return &Workflow{deps: deps}
}

// Snapshot is a read-only view of the workflow for clients.
type Snapshot struct {
	State         State              `json:"state"`
	Candidate     *domain.Coordinate `json:"candidate,omitempty"`
	Thickness     string             `json:"thickness"`
	PhotoName     string             `json:"photo_name,omitempty"`
	CheckingWater bool               `json:"checking_water"`
	Uploading     bool               `json:"uploading"`
}

type Result struct {
	Measurement *domain.Measurement
	Warnings    []Warning
}

func (w *Workflow) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := Snapshot{
		State:         w.state,
		Thickness:     w.draft.thickness,
		CheckingWater: w.draft.checkingWater,
		Uploading:     w.draft.uploading,
	}
	if w.draft.candidate != nil {
		c := *w.draft.candidate
		s.Candidate = &c
	}
	if w.draft.photo != nil {
		s.PhotoName = w.draft.photo.filename
	}
	return s
}

// Busy reports whether a save is running.
func (w *Workflow) Busy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.inFlight()
}

func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// checkLocked fails with ErrBusy while a save runs, otherwise with a
// StateError unless the workflow is in one of allowed.
func (w *Workflow) checkLocked(op string, allowed ...State) error {
	if w.state.inFlight() {
		return ErrBusy
	}
	for _, s := range allowed {
		if w.state == s {
			return nil
		}
	}
	return &StateError{Op: op, State: w.state}
}

// StartAiming shows the crosshair. Calling it while already aiming is a no-op.
func (w *Workflow) StartAiming() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.checkLocked("aim", Idle, Aiming); err != nil {
		return err
	}
	w.enterLocked(Aiming)
	return nil
}

// Confirm fixes center as the candidate coordinate. It is never changed
// afterwards; later map movement does not affect the submission.
func (w *Workflow) Confirm(center domain.Coordinate) error {
	if err := center.Validate(); err != nil {
		return fmt.Errorf("invalid center: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.checkLocked("confirm", Aiming); err != nil {
		return err
	}
	c := center
	w.draft = draft{candidate: &c}
	w.enterLocked(Confirmed)
	return nil
}

func (w *Workflow) SetThickness(s string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.checkLocked("set thickness", Confirmed); err != nil {
		return err
	}
	w.draft.thickness = s
	return nil
}

// AttachPhoto replaces any previously attached photo. The bytes are processed
// only when the measurement is saved.
func (w *Workflow) AttachPhoto(data []byte, filename string) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty file", ErrPhotoEncoding)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.checkLocked("attach photo", Confirmed); err != nil {
		return err
	}
	w.draft.photo = &attachedPhoto{data: data, filename: filename}
	return nil
}

func (w *Workflow) RemovePhoto() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.checkLocked("remove photo", Confirmed); err != nil {
		return err
	}
	w.draft.photo = nil
	return nil
}

// Cancel discards the draft. Nothing has been written before Inserting, so
// there is nothing to roll back.
func (w *Workflow) Cancel() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.checkLocked("cancel", Idle, Aiming, Confirmed, WaterOverridePrompt); err != nil {
		return err
	}
	w.resetLocked()
	return nil
}

func (w *Workflow) resetLocked() {
	w.enterLocked(Idle)
	w.draft = draft{}
	w.pending = nil
}

func parseThickness(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrThicknessRequired
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q", ErrThicknessInvalid, s)
	}
	return n, nil
}

// Save runs the submission. It returns ErrWaterInconclusive when the point
// does not look like water; the workflow then waits in WaterOverridePrompt for
// ResolveWaterPrompt. Every other error leaves the workflow in Confirmed with
// the user's input kept, except that a photo that failed to process or upload
// is dropped.
func (w *Workflow) Save(ctx context.Context) (*Result, error) {
	w.mu.Lock()
	if err := w.checkLocked("save", Confirmed); err != nil {
		w.mu.Unlock()
		return nil, err
	}
	thickness, err := parseThickness(w.draft.thickness)
	if err != nil {
		w.mu.Unlock()
		return nil, err
	}
	candidate := *w.draft.candidate
	w.enterLocked(ValidatingDistance)
	w.mu.Unlock()

	warnings, err := w.checkDistance(candidate)
	if err != nil {
		w.backToConfirmed()
		return nil, err
	}

	w.mu.Lock()
	w.enterLocked(VerifyingWater)
	w.draft.checkingWater = true
	w.mu.Unlock()

	water := w.deps.Water.IsWater(ctx, candidate)

	// A cancelled request stops here; nothing has been written yet.
	if err := ctx.Err(); err != nil {
		w.backToConfirmed()
		w.deps.Logger.Info("save cancelled during water check", "error", err)
		return nil, err
	}

	w.mu.Lock()
	w.draft.checkingWater = false
	if !water {
		w.enterLocked(WaterOverridePrompt)
		w.pending = &pendingSave{thickness: thickness, warnings: warnings}
		w.mu.Unlock()
		w.deps.Metrics.Submissions.WithLabelValues("water_prompt").Inc()
		w.deps.Logger.Info("candidate does not look like water, asking user",
			"lat", candidate.Lat, "lng", candidate.Lng)
		return nil, ErrWaterInconclusive
	}
	w.mu.Unlock()

	return w.persist(ctx, thickness, warnings)
}

// ResolveWaterPrompt answers the water prompt. Declining returns to
// Confirmed with nothing stored and a nil result.
func (w *Workflow) ResolveWaterPrompt(ctx context.Context, accept bool) (*Result, error) {
	w.mu.Lock()
	if err := w.checkLocked("resolve water prompt", WaterOverridePrompt); err != nil {
		w.mu.Unlock()
		return nil, err
	}
	p := w.pending
	w.pending = nil
	if !accept {
		w.enterLocked(Confirmed)
		w.mu.Unlock()
		w.deps.Metrics.Submissions.WithLabelValues("water_declined").Inc()
		return nil, nil
	}
	next := Inserting
	if w.draft.photo != nil {
		next = NormalizingPhoto
	}
	w.enterLocked(next)
	w.mu.Unlock()

	w.deps.Logger.Info("user confirmed non-water location")
	return w.persist(ctx, p.thickness, p.warnings)
}

func (w *Workflow) checkDistance(candidate domain.Coordinate) ([]Warning, error) {
	verdict := w.deps.Guard.Check(w.deps.Position.Position(), candidate)

	switch verdict.Outcome {
	case geo.DistanceExceeded:
		w.deps.Metrics.SubmissionDistance.Observe(verdict.Distance)
		w.deps.Metrics.Submissions.WithLabelValues("distance_exceeded").Inc()
		w.deps.Logger.Info("submission rejected, too far from device",
			"distance_m", verdict.Distance, "threshold_m", w.deps.Guard.Threshold)
		return nil, &DistanceError{Distance: verdict.Distance, Threshold: w.deps.Guard.Threshold}
	case geo.PositionUnknown:
		if w.deps.Policy != PolicyWarn {
			w.deps.Metrics.Submissions.WithLabelValues("position_unknown").Inc()
			return nil, ErrPositionUnknown
		}
		w.deps.Logger.Warn("device position unknown, continuing without distance check")
		return []Warning{WarningPositionUnknown}, nil
	default:
		w.deps.Metrics.SubmissionDistance.Observe(verdict.Distance)
		return nil, nil
	}
}

// persist runs the photo, upload and insert stages. Once the upload starts the
// stages ignore cancellation of ctx and run to completion or failure.
func (w *Workflow) persist(ctx context.Context, thickness int, warnings []Warning) (*Result, error) {
	w.mu.Lock()
	candidate := *w.draft.candidate
	photo := w.draft.photo
	w.mu.Unlock()

	ctx = context.WithoutCancel(ctx)

	var imageURL *string
	var storageKey string
	if photo != nil {
		key, err := w.uploadPhoto(ctx, photo)
		if err != nil {
			w.dropPhoto()
			return nil, err
		}
		u := w.deps.Photos.URL(key)
		imageURL = &u
		storageKey = key
	}

	w.setState(Inserting)
	m, err := w.deps.Store.Create(ctx, domain.NewMeasurement{
		Lat:       candidate.Lat,
		Lng:       candidate.Lng,
		Thickness: thickness,
		ImageURL:  imageURL,
	})
	if err != nil {
		if storageKey != "" {
			if derr := w.deps.Photos.Delete(ctx, storageKey); derr != nil {
				w.deps.Logger.Error("failed to remove photo after insert error", "storage_key", storageKey, "error", derr)
			}
		}
		w.backToConfirmed()
		w.deps.Metrics.Submissions.WithLabelValues("record_insert").Inc()
		w.deps.Logger.Error("failed to insert measurement", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrRecordInsert, err)
	}

	if err := w.deps.List.Refresh(ctx); err != nil {
		w.deps.Logger.Warn("measurement saved but list refresh failed", "id", m.ID, "error", err)
	}

	w.mu.Lock()
	w.resetLocked()
	w.mu.Unlock()

	w.deps.Metrics.Submissions.WithLabelValues("saved").Inc()
	w.deps.Logger.Info("measurement saved",
		"id", m.ID, "thickness_cm", m.Thickness, "has_photo", imageURL != nil)
	return &Result{Measurement: m, Warnings: warnings}, nil
}

func (w *Workflow) uploadPhoto(ctx context.Context, photo *attachedPhoto) (string, error) {
	w.setState(NormalizingPhoto)
	normalized, err := w.deps.Normalizer.Normalize(photo.data, photo.filename)
	if err != nil {
		w.deps.Metrics.Submissions.WithLabelValues("photo_encoding").Inc()
		w.deps.Logger.Warn("photo normalization failed", "filename", photo.filename, "error", err)
		return "", fmt.Errorf("%w: %w", ErrPhotoEncoding, err)
	}

	w.mu.Lock()
	w.enterLocked(Uploading)
	w.draft.uploading = true
	w.mu.Unlock()

	ext := ".jpg"
	if !normalized.Resized {
		ext = photostore.MimeTypeToExt(normalized.MimeType)
	}
	name := w.deps.Namer.Next(ext)

	key, err := w.deps.Photos.Save(ctx, name, normalized.MimeType, bytes.NewReader(normalized.Data))

	w.mu.Lock()
	w.draft.uploading = false
	w.mu.Unlock()

	if err != nil {
		w.deps.Metrics.Submissions.WithLabelValues("photo_upload").Inc()
		w.deps.Logger.Error("photo upload failed", "name", name, "error", err)
		return "", fmt.Errorf("%w: %w", ErrPhotoUpload, err)
	}
	w.deps.Metrics.PhotoUploadBytes.Observe(float64(len(normalized.Data)))
	w.deps.Logger.Debug("photo uploaded", "storage_key", key, "bytes", len(normalized.Data), "resized", normalized.Resized)
	return key, nil
}

func (w *Workflow) setState(s State) {
	w.mu.Lock()
	w.enterLocked(s)
	w.mu.Unlock()
}

func (w *Workflow) enterLocked(s State) {
	if w.state != s {
		w.deps.Logger.Debug("workflow state", "from", w.state, "to", s)
	}
	w.state = s
}

func (w *Workflow) backToConfirmed() {
	w.mu.Lock()
	w.enterLocked(Confirmed)
	w.draft.checkingWater = false
	w.draft.uploading = false
	w.mu.Unlock()
}

// dropPhoto clears a photo that could not be processed or uploaded and keeps
// the rest of the draft.
func (w *Workflow) dropPhoto() {
	w.mu.Lock()
	w.draft.photo = nil
	w.mu.Unlock()
	w.backToConfirmed()
}
