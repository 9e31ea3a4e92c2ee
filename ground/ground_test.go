package ground

import (
	"math"
	"sync"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/mudtrack/config"
	"github.com/pthm-cable/mudtrack/terrain"
)

func init() {
	config.MustInit("")
}

var down = r3.Vec{Z: -1}

func testGen() GenConfig {
	return GenConfig{
		Seed:       42,
		Size:       64,
		CellSize:   1,
		Amplitude:  2,
		Scale:      0.05,
		Octaves:    4,
		MarchStep:  0.05,
		WaterLevel: -1.2,
		Road:       terrain.SurfaceAsphalt,
	}
}

func TestPlaneCastRay(t *testing.T) {
	p := NewPlane(1, terrain.SurfaceGravel)

	tests := []struct {
		name   string
		origin r3.Vec
		dir    r3.Vec
		max    float64
		hit    bool
		dist   float64
	}{
		{"straight down", r3.Vec{X: 5, Z: 2}, down, 2, true, 1},
		{"slanted", r3.Vec{Z: 2}, r3.Unit(r3.Vec{X: 1, Z: -1}), 2, true, math.Sqrt2},
		{"too short", r3.Vec{Z: 4}, down, 2, false, 0},
		{"upward", r3.Vec{Z: 0}, r3.Vec{Z: 1}, 10, false, 0},
		{"parallel", r3.Vec{Z: 2}, r3.Vec{X: 1}, 10, false, 0},
		{"below plane", r3.Vec{Z: 0.5}, down, 10, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, ok := p.CastRay(tt.origin, tt.dir, tt.max)
			if ok != tt.hit {
				t.Fatalf("hit = %v, want %v", ok, tt.hit)
			}
			if !ok {
				return
			}
			if math.Abs(h.Distance-tt.dist) > 1e-9 {
				t.Errorf("distance = %v, want %v", h.Distance, tt.dist)
			}
			if math.Abs(h.Point.Z-1) > 1e-9 {
				t.Errorf("hit point z = %v, want 1", h.Point.Z)
			}
			if h.Surface != terrain.SurfaceGravel || h.Normal != (r3.Vec{Z: 1}) {
				t.Errorf("hit = %+v", h)
			}
		})
	}
}

func TestHeightfieldFlat(t *testing.T) {
	gc := testGen()
	gc.Amplitude = 0
	hf := Generate(gc)

	h, ok := hf.CastRay(r3.Vec{X: 3.3, Y: -7.1, Z: 0.9}, down, 1)
	if !ok {
		t.Fatal("expected hit on flat heightfield")
	}
	if math.Abs(h.Distance-0.9) > 1e-5 {
		t.Errorf("distance = %v, want 0.9", h.Distance)
	}
	if math.Abs(h.Normal.Z-1) > 1e-12 {
		t.Errorf("normal = %v, want +Z", h.Normal)
	}
	if _, ok := hf.CastRay(r3.Vec{Z: 2}, down, 1); ok {
		t.Error("ray shorter than the gap should miss")
	}
}

func TestHeightfieldDeterministic(t *testing.T) {
	a := Generate(testGen())
	b := Generate(testGen())
	gc := testGen()
	gc.Seed = 7
	c := Generate(gc)

	same, differ := true, false
	for i := range a.heights {
		if a.heights[i] != b.heights[i] || a.surfaces[i] != b.surfaces[i] {
			same = false
		}
		if a.heights[i] != c.heights[i] {
			differ = true
		}
	}
	if !same {
		t.Error("same seed produced different terrain")
	}
	if !differ {
		t.Error("different seeds produced identical terrain")
	}
}

func TestHeightfieldRayLandsOnSurface(t *testing.T) {
	hf := Generate(testGen())

	for x := -30.0; x <= 30; x += 3.7 {
		for y := -30.0; y <= 30; y += 4.1 {
			top := hf.HeightAt(x, y) + 1
			h, ok := hf.CastRay(r3.Vec{X: x, Y: y, Z: top}, down, 2)
			if !ok {
				t.Fatalf("(%v, %v): missed", x, y)
			}
			if math.Abs(h.Point.Z-hf.HeightAt(x, y)) > 1e-4 {
				t.Fatalf("(%v, %v): hit z %v, terrain %v", x, y, h.Point.Z, hf.HeightAt(x, y))
			}
			if math.Abs(h.Distance-1) > 1e-4 {
				t.Fatalf("(%v, %v): distance %v, want 1", x, y, h.Distance)
			}
			if math.Abs(r3.Norm(h.Normal)-1) > 1e-9 || h.Normal.Z <= 0 {
				t.Fatalf("(%v, %v): bad normal %v", x, y, h.Normal)
			}
		}
	}
}

func TestHeightfieldOriginUnderground(t *testing.T) {
	hf := Generate(testGen())
	z := hf.HeightAt(1, 1) - 0.5
	h, ok := hf.CastRay(r3.Vec{X: 1, Y: 1, Z: z}, down, 1)
	if !ok || h.Distance != 0 {
		t.Errorf("underground origin: ok=%v distance=%v, want hit at 0", ok, h.Distance)
	}
}

func TestHeightfieldClampsOutsideGrid(t *testing.T) {
	hf := Generate(testGen())
	e := hf.Extent()
	if got, want := hf.HeightAt(e+50, 0), hf.HeightAt(e, 0); got != want {
		t.Errorf("height outside grid = %v, want edge %v", got, want)
	}
	_ = hf.SurfaceAt(-e-10, e+10)
}

func TestHeightfieldSurfaces(t *testing.T) {
	gc := testGen()
	gc.Size = 256
	hf := Generate(gc)

	seen := map[terrain.SurfaceType]bool{}
	for _, s := range hf.surfaces {
		seen[s] = true
	}
	if len(seen) < 3 {
		t.Errorf("generated terrain has only %d surface types", len(seen))
	}

	gc.WaterLevel = gc.Amplitude + 1
	flooded := Generate(gc)
	for i, s := range flooded.surfaces {
		if s != terrain.SurfaceWater {
			t.Fatalf("vertex %d is %v under water level", i, s)
		}
	}
}

func TestHeightfieldConcurrentCasts(t *testing.T) {
	hf := Generate(testGen())
	origins := make([]r3.Vec, 64)
	want := make([]float64, len(origins))
	for i := range origins {
		x, y := float64(i%8)*3-12, float64(i/8)*3-12
		origins[i] = r3.Vec{X: x, Y: y, Z: hf.HeightAt(x, y) + 0.8}
		h, _ := hf.CastRay(origins[i], down, 1)
		want[i] = h.Distance
	}

	var wg sync.WaitGroup
	errs := make(chan int, len(origins)*8)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i, o := range origins {
				if h, _ := hf.CastRay(o, down, 1); h.Distance != want[i] {
					errs <- i
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for i := range errs {
		t.Errorf("origin %d: concurrent cast disagreed", i)
	}
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.Cfg().Ground
	q, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := q.(*Plane); !ok {
		t.Errorf("default ground is %T, want *Plane", q)
	}

	cfg.Kind = "heightfield"
	cfg.Size = 32
	q, err = New(cfg)
	if err != nil {
		t.Fatalf("New heightfield: %v", err)
	}
	if _, ok := q.(*Heightfield); !ok {
		t.Errorf("got %T, want *Heightfield", q)
	}

	cfg.Surface = "lava"
	if _, err := New(cfg); err == nil {
		t.Error("unknown surface should fail")
	}
}
