package submission

import "fmt"

type State int

const (
	Idle State = iota
	Aiming
	Confirmed
	ValidatingDistance
	VerifyingWater
	WaterOverridePrompt
	NormalizingPhoto
	Uploading
	Inserting
)

var stateNames = [...]string{
	Idle:                "idle",
	Aiming:              "aiming",
	Confirmed:           "confirmed",
	ValidatingDistance:  "validating_distance",
	VerifyingWater:      "verifying_water",
	WaterOverridePrompt: "water_override_prompt",
	NormalizingPhoto:    "normalizing_photo",
	Uploading:           "uploading",
	Inserting:           "inserting",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// inFlight reports whether a save is running. No user input is accepted in
// these states.
func (s State) inFlight() bool {
	switch s {
	case ValidatingDistance, VerifyingWater, NormalizingPhoto, Uploading, Inserting:
		return true
	default:
		return false
	}
}

// UnknownPositionPolicy decides what Save does when the device position has
// not been reported.
type UnknownPositionPolicy string

const (
	PolicyReject UnknownPositionPolicy = "reject"
	PolicyWarn   UnknownPositionPolicy = "warn"
)

func ParsePolicy(s string) (UnknownPositionPolicy, error) {
	switch p := UnknownPositionPolicy(s); p {
	case PolicyReject, PolicyWarn:
		return p, nil
	default:
		return "", fmt.Errorf("unknown position policy %q", s)
	}
}

type Warning string

const WarningPositionUnknown Warning = "position_unknown"
