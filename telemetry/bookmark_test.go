package telemetry

import (
	"testing"

	"github.com/pthm-cable/mudtrack/config"
)

func init() {
	config.MustInit("")
}

func hasBookmark(bms []Bookmark, typ BookmarkType) bool {
	for _, bm := range bms {
		if bm.Type == typ {
			return true
		}
	}
	return false
}

func TestBookmarkDetector_TractionLoss(t *testing.T) {
	bd := NewBookmarkDetector(10)

	for i := 0; i < 5; i++ {
		bd.Check(WindowStats{
			WindowEndTick: int64(i * 60),
			Wheels:        4,
			Grounded:      4,
			TractionMean:  0.8,
		})
	}

	bms := bd.Check(WindowStats{WindowEndTick: 300, Wheels: 4, Grounded: 4, TractionMean: 0.2})
	if !hasBookmark(bms, BookmarkTractionLoss) {
		t.Error("expected traction_loss bookmark")
	}
}

func TestBookmarkDetector_BoggedOnceUntilRecovered(t *testing.T) {
	bd := NewBookmarkDetector(10)
	stuck := WindowStats{Wheels: 4, Grounded: 4, SlipP50: 0.95, SinkMean: 0.05}

	if !hasBookmark(bd.Check(stuck), BookmarkBogged) {
		t.Fatal("expected bogged bookmark")
	}
	if hasBookmark(bd.Check(stuck), BookmarkBogged) {
		t.Error("bogged fired twice without recovery")
	}
	bd.Check(WindowStats{Wheels: 4, Grounded: 4, SlipP50: 0.1})
	if !hasBookmark(bd.Check(stuck), BookmarkBogged) {
		t.Error("bogged did not re-arm after recovery")
	}
}

func TestBookmarkDetector_TireDegraded(t *testing.T) {
	bd := NewBookmarkDetector(10)

	if hasBookmark(bd.Check(WindowStats{Wheels: 4, WorstCondition: "new"}), BookmarkTireDegraded) {
		t.Error("new tires should not bookmark")
	}
	if !hasBookmark(bd.Check(WindowStats{Wheels: 4, WorstCondition: "fair"}), BookmarkTireDegraded) {
		t.Error("expected tire_degraded bookmark")
	}
	if hasBookmark(bd.Check(WindowStats{Wheels: 4, WorstCondition: "fair"}), BookmarkTireDegraded) {
		t.Error("same condition should not bookmark again")
	}
}

func TestBookmarkDetector_Rejections(t *testing.T) {
	bd := NewBookmarkDetector(10)

	bd.Check(WindowStats{})
	if !hasBookmark(bd.Check(WindowStats{RejectedTicks: 3}), BookmarkRejections) {
		t.Error("expected rejections bookmark")
	}
	if hasBookmark(bd.Check(WindowStats{RejectedTicks: 2}), BookmarkRejections) {
		t.Error("continuing rejections should not bookmark again")
	}
}

func TestBookmarkDetector_SteadyGrip(t *testing.T) {
	bd := NewBookmarkDetector(10)

	fired := 0
	for i := 0; i < 12; i++ {
		bms := bd.Check(WindowStats{
			WindowEndTick: int64(i * 60),
			Wheels:        4,
			Grounded:      4,
			SlipMean:      0.05,
		})
		if hasBookmark(bms, BookmarkSteadyGrip) {
			fired++
		}
	}
	if fired != 1 {
		t.Errorf("steady_grip fired %d times, want 1", fired)
	}
}
