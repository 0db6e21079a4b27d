package scoreboard

import (
	"fmt"

	"github.com/DOMjudge/scorekeeper/internal/database/models"
)

// FreezeData captures the freeze-related state of a contest at one instant.
// All fields are computed eagerly in NewFreezeData so a single snapshot is
// used consistently throughout one scoreboard computation.
type FreezeData struct {
	contest *models.Contest
	now     float64

	started   bool
	stopped   bool
	hasFrozen bool

	showFrozen    bool
	showFinal     bool
	showFinalJury bool
}

func NewFreezeData(contest *models.Contest, now float64) *FreezeData {
	f := &FreezeData{contest: contest, now: now}
	if contest == nil {
		return f
	}

	f.started = contest.StartTimeEnabled && now >= contest.StartTime
	f.stopped = now >= contest.EndTime
	f.hasFrozen = contest.FreezeTime != nil

	// The scoreboard is frozen between freeze and unfreeze. A contest
	// without an unfreeze time stays frozen after it ends.
	if f.hasFrozen && now >= *contest.FreezeTime {
		f.showFrozen = contest.UnfreezeTime == nil || now < *contest.UnfreezeTime
	}

	f.showFinalJury = f.stopped
	f.showFinal = f.stopped && !f.showFrozen

	return f
}

// Started reports whether the contest has begun (with a published start time).
func (f *FreezeData) Started() bool { return f.started }

// Stopped reports whether the contest has ended.
func (f *FreezeData) Stopped() bool { return f.stopped }

// Running reports whether the contest is in progress.
func (f *FreezeData) Running() bool { return f.started && !f.stopped }

// ShowFrozen reports whether the public scoreboard is currently frozen.
func (f *FreezeData) ShowFrozen() bool { return f.showFrozen }

// ShowFinal reports whether final results may be shown. The jury sees final
// results as soon as the contest ends; the public only after the unfreeze.
func (f *FreezeData) ShowFinal(jury bool) bool {
	if jury {
		return f.showFinalJury
	}
	return f.showFinal
}

// Finalized reports whether the contest results have been finalized.
func (f *FreezeData) Finalized() bool {
	return f.contest != nil && f.contest.FinalizeTime != nil && f.now >= *f.contest.FinalizeTime
}

// Progress returns the contest progress in percent, or -1 when the contest
// has no published start time yet.
func (f *FreezeData) Progress() int {
	c := f.contest
	if c == nil || !c.StartTimeEnabled {
		return -1
	}
	if f.now <= c.StartTime {
		return -1
	}
	if f.now >= c.EndTime {
		return 100
	}
	length := c.EndTime - c.StartTime
	if length <= 0 {
		return 100
	}
	return int(100 * (f.now - c.StartTime) / length)
}

func (f *FreezeData) String() string {
	return fmt.Sprintf("freeze{started=%v stopped=%v frozen=%v}", f.started, f.stopped, f.showFrozen)
}
