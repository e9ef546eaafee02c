package submission

import (
	"errors"
	"fmt"
)

var (
	ErrDistanceExceeded = errors.New("candidate is too far from the device position")
	ErrPositionUnknown  = errors.New("device position is unknown")
	// ErrWaterInconclusive means the workflow is waiting in
	// WaterOverridePrompt for the user to confirm. Nothing failed.
	ErrWaterInconclusive = errors.New("candidate does not look like water")
	ErrPhotoEncoding     = errors.New("photo could not be processed")
	ErrPhotoUpload       = errors.New("photo upload failed")
	ErrRecordInsert      = errors.New("failed to insert measurement")
	ErrInvalidState      = errors.New("operation not allowed in current state")
	ErrBusy              = errors.New("a save is already in progress")
	ErrThicknessRequired = errors.New("thickness is required")
	ErrThicknessInvalid  = errors.New("thickness must be a whole number of centimeters")
)

// DistanceError carries the numbers behind ErrDistanceExceeded.
type DistanceError struct {
	Distance  float64
	Threshold float64
}

func (e *DistanceError) Error() string {
	return fmt.Sprintf("candidate is %.0f m from the device position, limit is %.0f m", e.Distance, e.Threshold)
}

func (e *DistanceError) Is(target error) bool { return target == ErrDistanceExceeded }

// StateError reports an operation attempted in the wrong state.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s not allowed in state %s", e.Op, e.State)
}

func (e *StateError) Is(target error) bool { return target == ErrInvalidState }
