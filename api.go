package coglib

import (
	"math"

	gdal "github.com/airbusgeo/godal"
)

type Dataset = gdal.Dataset

// 地理范围，次序为 [minX, maxX, minY, maxY]
type Span = [4]float64

// 单点采样结果，Valid为false时表示无数据（出界、无效值或退化栅格）
type SampleValue struct {
	Value float64
	Valid bool
}

// 重采样方式
type ResampleAlg int

const (
	ResampleNearest ResampleAlg = iota
	ResampleBilinear
)

func ParseResampleAlg(s string) (alg ResampleAlg, err error) {
	switch s {
	case "", "nearest":
		alg = ResampleNearest
	case "bilinear":
		alg = ResampleBilinear
	default:
		err = ErrUnknownAlg
	}
	return
}

func (a ResampleAlg) String() string {
	if a == ResampleBilinear {
		return "bilinear"
	}
	return "nearest"
}

// 窗口读取结果，行优先存储的band-0数值
type Grid struct {
	Values    []float64
	Width     int
	Height    int
	NoData    float64
	HasNoData bool
}

func (g Grid) At(x, y int) float64 {
	return g.Values[y*g.Width+x]
}

// 判定无效值（含无数据哨兵值与非有限值）
func (g Grid) IsNoData(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return true
	}
	if !g.HasNoData {
		return false
	}
	return v == g.NoData || (math.IsNaN(g.NoData) && math.IsNaN(v))
}

// 扫描窗口内有效值的最小、最大值，全为无效值时ok为false
func (g Grid) MinMax() (mn, mx float64, ok bool) {
	for _, v := range g.Values {
		if g.IsNoData(v) {
			continue
		}
		if !ok {
			mn, mx = v, v
			ok = true
			continue
		}
		if v < mn {
			mn = v
		} else if v > mx {
			mx = v
		}
	}
	return
}

// 点位深度剖面中单个深度的采样值，Value为nil时表示无数据
type ProfileSample struct {
	Depth string   `json:"depth"`
	Value *float64 `json:"value"`
	Unit  string   `json:"unit"`
}
