package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/listing-host-crawler/internal/crawler"
)

// Stage denotes the milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart     Stage = "RUN_START"
	StageRunDone      Stage = "RUN_DONE"
	StageTargetStart  Stage = "TARGET_START"
	StageDiscovered   Stage = "TARGET_DISCOVERED"
	StageTargetDone   Stage = "TARGET_DONE"
	StageListingDone  Stage = "LISTING_DONE"
	StageBatchDone    Stage = "BATCH_DONE"
	StageTargetFailed Stage = "TARGET_FAILED"
)

// Event captures a single step of a crawl run.
type Event struct {
	// RunID identifies the process-wide run.
	RunID uuid.UUID
	// TS is the UTC timestamp recorded by the emitter.
	TS    time.Time
	Stage Stage
	// Target is the search page the event belongs to, if any.
	Target string
	// URL is the listing for LISTING_DONE events.
	URL string
	// Worker is the session index that produced the event.
	Worker int
	// Count carries the number of listings discovered, records produced or
	// pages failed, depending on Stage.
	Count int
	// Status is the record status of a LISTING_DONE event.
	Status crawler.RecordStatus
	// Dur captures the elapsed time of the step.
	Dur time.Duration
	// Note lets emitters attach low-volume context such as error text.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == uuid.Nil {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone:
	case StageTargetStart, StageDiscovered, StageTargetDone, StageTargetFailed, StageBatchDone:
		if e.Target == "" {
			return fmt.Errorf("%s requires target", e.Stage)
		}
	case StageListingDone:
		if e.URL == "" {
			return errors.New("listing done requires url")
		}
		if e.Status == "" {
			return errors.New("listing done requires status")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	if e.Count < 0 {
		return errors.New("count must be >= 0")
	}
	return nil
}
