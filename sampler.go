package coglib

import (
	"math"

	"golang.org/x/sync/errgroup"
)

// 采样点击坐标处的band-0原始值。出界、无效参考与无数据哨兵均返回
// Valid为false的正常结果；底层读取失败时返回ErrTifReadFailed
func (r *CogRaster) SampleAt(lat, lon float64) (ret SampleValue, err error) {
	if !r.georef.Valid() {
		return
	}
	x, y := lon, lat
	if r.srid != UNIVERSAL_SRID {
		if x, y, err = r.tb.TransformPoint(lon, lat, UNIVERSAL_SRID, r.srid); err != nil {
			return
		}
	}
	px, py := r.georef.GeoToPixel(y, x)
	if !r.georef.InBounds(px, py) {
		return
	}
	v, err := r.readPixel(px, py)
	if err != nil {
		return
	}
	if r.isNoData(v) {
		return
	}
	ret = SampleValue{Value: v, Valid: true}
	return
}

// 采样并按变量的单位换算系数缩放
func (r *CogRaster) SampleScaled(lat, lon, scale float64) (ret SampleValue, err error) {
	if ret, err = r.SampleAt(lat, lon); ret.Valid {
		ret.Value *= scale
	}
	return
}

// 对窗口网格做min/max线性拉伸归一化。返回与网格等长的[0,1]数值，
// 无效值以-1标记；无有效值或min==max（无特征窗口）时ok为false
func NormalizeGrid(grid Grid) (norm []float64, ok bool) {
	mn, mx, ok := grid.MinMax()
	if !ok || mn == mx {
		ok = false
		return
	}
	return NormalizeGridBetween(grid, mn, mx)
}

// 按给定的min/max归一化（全局统计模式），数值截断到[0,1]
func NormalizeGridBetween(grid Grid, mn, mx float64) (norm []float64, ok bool) {
	if mx <= mn || math.IsNaN(mn) || math.IsNaN(mx) {
		return
	}
	norm = make([]float64, len(grid.Values))
	for i, v := range grid.Values {
		if grid.IsNoData(v) {
			norm[i] = -1
			continue
		}
		n := (v - mn) / (mx - mn)
		if n < 0 {
			n = 0
		} else if n > 1 {
			n = 1
		}
		norm[i] = n
	}
	ok = true
	return
}

// 并发采样同一点位在各深度层的数值，结果次序与depths一致
func SampleProfile(depths []string, fetch func(depth string) (*CogRaster, error), v Variable, lat, lon float64) (out []ProfileSample, err error) {
	out = make([]ProfileSample, len(depths))
	var eg errgroup.Group
	for i, d := range depths {
		i, d := i, d
		eg.Go(func() error {
			r, e := fetch(d)
			if e != nil {
				return e
			}
			s, e := r.SampleScaled(lat, lon, v.Scale)
			if e != nil {
				return e
			}
			out[i] = ProfileSample{Depth: d, Unit: v.Unit}
			if s.Valid {
				val := s.Value
				out[i].Value = &val
			}
			return nil
		})
	}
	if err = eg.Wait(); err != nil {
		out = nil
	}
	return
}
