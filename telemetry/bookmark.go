package telemetry

import (
	"fmt"
	"log/slog"

	"github.com/pthm-cable/mudtrack/components"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkTractionLoss BookmarkType = "traction_loss"
	BookmarkBogged       BookmarkType = "bogged"
	BookmarkTireDegraded BookmarkType = "tire_degraded"
	BookmarkRejections   BookmarkType = "rejections"
	BookmarkSteadyGrip   BookmarkType = "steady_grip"
)

// Bookmark represents an automatically triggered bookmark.
type Bookmark struct {
	Type        BookmarkType `csv:"type"`
	Tick        int64        `csv:"tick"`
	Description string       `csv:"description"`
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"tick", b.Tick,
		"description", b.Description,
	)
}

// BookmarkDetector detects interesting moments in a run.
type BookmarkDetector struct {
	// Rolling history (circular buffer)
	history     []WindowStats
	historySize int
	historyIdx  int
	historyFull bool

	// State tracking
	worstCondition    components.TireCondition
	bogged            bool
	lastRejected      int
	steadyWindowCount int
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < 5 {
		historySize = 5
	}
	return &BookmarkDetector{
		history:     make([]WindowStats, historySize),
		historySize: historySize,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats WindowStats) []Bookmark {
	var bookmarks []Bookmark
	add := func(b *Bookmark) {
		if b != nil {
			bookmarks = append(bookmarks, *b)
		}
	}

	if bd.historyFull || bd.historyIdx > 0 {
		add(bd.checkTractionLoss(stats))
	}
	add(bd.checkBogged(stats))
	add(bd.checkTireDegraded(stats))
	add(bd.checkRejections(stats))
	add(bd.checkSteadyGrip(stats))

	bd.addToHistory(stats)
	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(stats WindowStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

// getHistory returns recorded windows, oldest first.
func (bd *BookmarkDetector) getHistory() []WindowStats {
	if !bd.historyFull {
		return bd.history[:bd.historyIdx]
	}
	out := make([]WindowStats, 0, bd.historySize)
	out = append(out, bd.history[bd.historyIdx:]...)
	return append(out, bd.history[:bd.historyIdx]...)
}

// checkTractionLoss fires when mean traction halves against the rolling average.
func (bd *BookmarkDetector) checkTractionLoss(stats WindowStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 3 || stats.Grounded == 0 {
		return nil
	}

	var total float64
	for _, h := range history {
		total += h.TractionMean
	}
	avg := total / float64(len(history))
	if avg == 0 {
		return nil
	}

	if stats.TractionMean < avg*0.5 {
		return &Bookmark{
			Type:        BookmarkTractionLoss,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Traction %.3f fell to %.0f%% of average (%.3f)", stats.TractionMean, stats.TractionMean/avg*100, avg),
		}
	}
	return nil
}

// checkBogged fires once when most grounded wheels spin in soft ground, and
// re-arms when median slip recovers.
func (bd *BookmarkDetector) checkBogged(stats WindowStats) *Bookmark {
	if bd.bogged {
		if stats.SlipP50 < 0.5 {
			bd.bogged = false
		}
		return nil
	}
	if stats.Grounded > 0 && stats.SlipP50 > 0.8 && stats.SinkMean > 0 {
		bd.bogged = true
		return &Bookmark{
			Type:        BookmarkBogged,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Median slip %.2f with %.3f m sink", stats.SlipP50, stats.SinkMean),
		}
	}
	return nil
}

func (bd *BookmarkDetector) checkTireDegraded(stats WindowStats) *Bookmark {
	var worst components.TireCondition
	if err := worst.UnmarshalText([]byte(stats.WorstCondition)); err != nil {
		return nil
	}
	if worst <= bd.worstCondition {
		return nil
	}
	prev := bd.worstCondition
	bd.worstCondition = worst
	return &Bookmark{
		Type:        BookmarkTireDegraded,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("Worst tire condition went from %s to %s", prev, worst),
	}
}

// checkRejections fires on the first window with rejected ticks after a
// clean one.
func (bd *BookmarkDetector) checkRejections(stats WindowStats) *Bookmark {
	prev := bd.lastRejected
	bd.lastRejected = stats.RejectedTicks
	if stats.RejectedTicks == 0 || prev > 0 {
		return nil
	}
	return &Bookmark{
		Type:        BookmarkRejections,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("%d wheel ticks rejected for non-finite values", stats.RejectedTicks),
	}
}

// checkSteadyGrip fires once after five consecutive windows where every
// wheel is grounded and mean slip barely moves.
func (bd *BookmarkDetector) checkSteadyGrip(stats WindowStats) *Bookmark {
	if stats.Wheels == 0 || stats.Grounded < stats.Wheels {
		bd.steadyWindowCount = 0
		return nil
	}

	history := bd.getHistory()
	if len(history) < 4 {
		return nil
	}

	recent := make([]float64, 0, 4)
	for _, h := range history[len(history)-4:] {
		recent = append(recent, h.SlipMean)
	}
	if Summarize(recent).Std < 0.02 {
		bd.steadyWindowCount++
	} else {
		bd.steadyWindowCount = 0
	}

	if bd.steadyWindowCount == 5 {
		return &Bookmark{
			Type:        BookmarkSteadyGrip,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("All %d wheels gripping steadily, slip %.3f", stats.Wheels, stats.SlipMean),
		}
	}
	return nil
}
