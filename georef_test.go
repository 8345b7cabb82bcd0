package coglib

import (
	"math"
	"testing"
)

var testRef = Georef{Width: 200, Height: 100, Span: Span{100, 120, -5, 5}}

func TestGeoToPixel(t *testing.T) {
	px, py := testRef.GeoToPixel(0, 110)
	if px != 100 || py != 50 {
		t.Fatalf("GeoToPixel(0, 110) = (%d, %d), want (100, 50)", px, py)
	}
	px, py = testRef.GeoToPixel(5, 100)
	if px != 0 || py != 0 {
		t.Fatalf("north-west corner = (%d, %d), want (0, 0)", px, py)
	}
	// 南、东边缘落在界外（半开区间）
	px, py = testRef.GeoToPixel(-5, 120)
	if testRef.InBounds(px, py) {
		t.Fatalf("south-east corner (%d, %d) should be out of bounds", px, py)
	}
}

func TestInBoundsInside(t *testing.T) {
	pts := [][2]float64{{0, 110}, {4.9, 100.1}, {-4.9, 119.9}, {1.23, 107.89}}
	for _, p := range pts {
		px, py := testRef.GeoToPixel(p[0], p[1])
		if !testRef.InBounds(px, py) {
			t.Errorf("point (%v, %v) inside span mapped out of bounds (%d, %d)", p[0], p[1], px, py)
		}
	}
}

func TestInBoundsOutside(t *testing.T) {
	pts := [][2]float64{{6, 110}, {-6, 110}, {0, 99}, {0, 121}, {50, 0}}
	for _, p := range pts {
		px, py := testRef.GeoToPixel(p[0], p[1])
		if testRef.InBounds(px, py) {
			t.Errorf("point (%v, %v) outside span mapped in bounds (%d, %d)", p[0], p[1], px, py)
		}
	}
}

func TestPixelCenterRoundTrip(t *testing.T) {
	for _, p := range [][2]int{{0, 0}, {100, 50}, {199, 99}, {37, 88}} {
		lat, lon := testRef.PixelCenter(p[0], p[1])
		px, py := testRef.GeoToPixel(lat, lon)
		if px != p[0] || py != p[1] {
			t.Errorf("round trip of pixel (%d, %d) got (%d, %d)", p[0], p[1], px, py)
		}
	}
}

func TestDegenerateGeoref(t *testing.T) {
	bad := Georef{Width: 200, Height: 100, Span: Span{100, 100, -5, 5}}
	if bad.Valid() {
		t.Fatal("degenerate span should not be valid")
	}
	fx, _ := bad.geoToPixelF(0, 110)
	if !math.IsInf(fx, 0) && !math.IsNaN(fx) {
		t.Fatalf("degenerate span should yield non-finite pixel coord, got %v", fx)
	}
	px, py := bad.GeoToPixel(0, 110)
	if bad.InBounds(px, py) {
		t.Fatalf("degenerate span produced in-bounds pixel (%d, %d)", px, py)
	}
	if _, ok := bad.ResolveWindow(Span{105, 110, -1, 1}); ok {
		t.Fatal("degenerate georef should resolve no window")
	}
}

func TestResolveWindowOutside(t *testing.T) {
	reqs := []Span{
		{130, 140, 0, 1},    // east of raster
		{100, 120, -20, -6}, // entirely south of minY
		{100, 120, 6, 20},   // north
		{90, 99, -5, 5},     // west
	}
	for _, req := range reqs {
		if win, ok := testRef.ResolveWindow(req); ok {
			t.Errorf("request %v should be empty, got window %+v", req, win)
		}
	}
}

func TestResolveWindowInside(t *testing.T) {
	win, ok := testRef.ResolveWindow(Span{105, 110, -1, 1})
	if !ok {
		t.Fatal("request inside span resolved empty")
	}
	if win.Dx() < 1 || win.Dy() < 1 {
		t.Fatalf("window %+v must be at least 1x1", win)
	}
	if win.X0 < 0 || win.Y0 < 0 || win.X1 > testRef.Width || win.Y1 > testRef.Height {
		t.Fatalf("window %+v exceeds raster bounds", win)
	}
	// 50..100 in x, 40..60 in y
	if win.X0 != 50 || win.X1 != 100 || win.Y0 != 40 || win.Y1 != 60 {
		t.Fatalf("window %+v has unexpected bounds", win)
	}
}

func TestResolveWindowFractionalCover(t *testing.T) {
	// 请求边界落在像素中间时，窗口须外扩整像素以完整覆盖
	win, ok := testRef.ResolveWindow(Span{105.05, 105.95, 0.04, 0.96})
	if !ok {
		t.Fatal("request resolved empty")
	}
	gspan := testRef.WindowSpan(win)
	if gspan[0] > 105.05 || gspan[1] < 105.95 || gspan[2] > 0.04 || gspan[3] < 0.96 {
		t.Fatalf("window span %v does not cover request", gspan)
	}
}

func TestResolveWindowClampsToOnePixel(t *testing.T) {
	// 细长请求在取整后可能塌缩，须钳制为最小1像素
	win, ok := testRef.ResolveWindow(Span{119.999, 120, -0.001, 0})
	if !ok {
		t.Fatal("request touching the edge resolved empty")
	}
	if win.Dx() != 1 || win.Dy() != 1 {
		t.Fatalf("window %+v should clamp to 1x1", win)
	}
	if win.X1 > testRef.Width || win.Y1 > testRef.Height {
		t.Fatalf("window %+v exceeds raster bounds", win)
	}
}

func TestResolveWindowWholeRaster(t *testing.T) {
	win, ok := testRef.ResolveWindow(Span{-180, 180, -90, 90})
	if !ok {
		t.Fatal("covering request resolved empty")
	}
	if win.X0 != 0 || win.Y0 != 0 || win.X1 != testRef.Width || win.Y1 != testRef.Height {
		t.Fatalf("covering request should resolve the full raster, got %+v", win)
	}
}
