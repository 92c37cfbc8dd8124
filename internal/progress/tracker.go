package progress

import (
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/listing-host-crawler/internal/crawler"
)

// Tracker stamps events with the run ID and current time before handing
// them to an Emitter. A nil Tracker discards everything.
type Tracker struct {
	emitter Emitter
	runID   uuid.UUID
	now     func() time.Time
}

// NewTracker returns a Tracker for a fresh run ID.
func NewTracker(emitter Emitter, clock crawler.Clock) *Tracker {
	if clock == nil {
		clock = crawler.SystemClock{}
	}
	return &Tracker{emitter: emitter, runID: uuid.New(), now: clock.Now}
}

// RunID returns the identifier shared by every event of the run.
func (t *Tracker) RunID() uuid.UUID {
	if t == nil {
		return uuid.Nil
	}
	return t.runID
}

func (t *Tracker) emit(evt Event) {
	if t == nil || t.emitter == nil {
		return
	}
	evt.RunID = t.runID
	evt.TS = t.now().UTC()
	t.emitter.Emit(evt)
}

// RunStarted reports the start of a run over n targets.
func (t *Tracker) RunStarted(n int) {
	t.emit(Event{Stage: StageRunStart, Count: n})
}

// RunDone reports the total number of records and the run duration.
func (t *Tracker) RunDone(records int, dur time.Duration) {
	t.emit(Event{Stage: StageRunDone, Count: records, Dur: dur})
}

// TargetStarted reports that discovery is starting for target.
func (t *Tracker) TargetStarted(target string) {
	t.emit(Event{Stage: StageTargetStart, Target: target})
}

// Discovered reports how many listings discovery found on target.
func (t *Tracker) Discovered(target string, n int, dur time.Duration) {
	t.emit(Event{Stage: StageDiscovered, Target: target, Count: n, Dur: dur})
}

// TargetFailed reports a target whose discovery failed.
func (t *Tracker) TargetFailed(target string, err error) {
	evt := Event{Stage: StageTargetFailed, Target: target}
	if err != nil {
		evt.Note = err.Error()
	}
	t.emit(evt)
}

// TargetDone reports the records produced for target.
func (t *Tracker) TargetDone(target string, records int, dur time.Duration) {
	t.emit(Event{Stage: StageTargetDone, Target: target, Count: records, Dur: dur})
}

// ListingDone reports one processed listing.
func (t *Tracker) ListingDone(worker int, rec crawler.ListingRecord, dur time.Duration) {
	t.emit(Event{
		Stage:  StageListingDone,
		URL:    rec.ListingURL.String(),
		Worker: worker,
		Status: rec.Status,
		Dur:    dur,
	})
}

// BatchDone reports a finished worker batch and its failed page count.
func (t *Tracker) BatchDone(target string, res crawler.BatchResult, dur time.Duration) {
	evt := Event{Stage: StageBatchDone, Target: target, Worker: res.Index, Count: res.Failed, Dur: dur}
	if res.Err != nil {
		evt.Note = res.Err.Error()
	}
	t.emit(evt)
}
