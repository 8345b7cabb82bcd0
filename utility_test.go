package coglib

import (
	"math"
	"testing"
)

func TestMercatorRoundTrip(t *testing.T) {
	pts := [][2]float64{
		{113.695688629, 29.971802123},
		{115.075725846, 31.360788281},
		{0, 0},
		{-179.9, -60},
	}
	for _, p := range pts {
		x, y := Convert4326To3857(p[0], p[1])
		lon, lat := Convert3857To4326(x, y)
		if math.Abs(lon-p[0]) > 1e-6 || math.Abs(lat-p[1]) > 1e-6 {
			t.Errorf("round trip of (%v, %v) got (%v, %v)", p[0], p[1], lon, lat)
		}
	}
}

func TestMercatorKnownPoint(t *testing.T) {
	x, y := Convert4326To3857(180, 0)
	if math.Abs(x-20037508.34) > 1e-2 || math.Abs(y) > 1e-6 {
		t.Fatalf("(180, 0) in 3857 = (%v, %v)", x, y)
	}
}
