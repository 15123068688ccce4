package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages. RUN_* events track whole scrape runs; STEP_*
// events track individual pipeline and provisioning steps.
const (
	StageRunStart  Stage = "RUN_START"
	StageRunDone   Stage = "RUN_DONE"
	StageRunError  Stage = "RUN_ERROR"
	StageStepStart Stage = "STEP_START"
	StageStepDone  Stage = "STEP_DONE"
	StageStepError Stage = "STEP_ERROR"
)

// Step labels the unit of work a STEP_* event refers to.
type Step string

// Known steps. Provisioning steps come first, pipeline steps second.
const (
	StepDependencies    Step = "deps_install"
	StepBrowserInstall  Step = "browser_install"
	StepBrowserVerify   Step = "browser_verify"
	StepForcedReinstall Step = "forced_reinstall"
	StepProbe           Step = "probe"
	StepRender          Step = "render"
	StepParse           Step = "parse"
)

// StatusClass is a coarse HTTP response grouping.
type StatusClass string

// Supported HTTP status classes tracked for probe and render completions.
const (
	Status2xx   StatusClass = "2xx"
	Status3xx   StatusClass = "3xx"
	Status4xx   StatusClass = "4xx"
	Status5xx   StatusClass = "5xx"
	StatusOther StatusClass = "other"
)

// Event captures a single milestone of a provisioning pass or a scrape run.
type Event struct {
	// RunID uniquely identifies a run using the 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which lifecycle or step milestone occurred.
	Stage Stage
	// Step scopes STEP_* events to a pipeline or provisioning step.
	Step Step
	// URL is the optional page URL; it should not contain credentials.
	URL string
	// Bytes carries the document size for probe and render completions.
	Bytes int64
	// Listings increments by the number of entries a parse produced.
	Listings int64
	// StatusClass groups HTTP response codes (2xx, 3xx, etc).
	StatusClass StatusClass
	// Dur captures execution latency for steps and run completions.
	Dur time.Duration
	// Note lets emitters attach low-volume debug context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunError:
	case StageStepStart, StageStepDone, StageStepError:
		if e.Step == "" {
			return fmt.Errorf("%s requires a step label", e.Stage)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID for repositories.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}

// ClassifyStatus groups HTTP status codes for step events.
func ClassifyStatus(code int) StatusClass {
	switch {
	case code >= 200 && code < 300:
		return Status2xx
	case code >= 300 && code < 400:
		return Status3xx
	case code >= 400 && code < 500:
		return Status4xx
	case code >= 500 && code < 600:
		return Status5xx
	default:
		return StatusOther
	}
}
