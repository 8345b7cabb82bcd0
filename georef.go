package coglib

import "math"

// 栅格仿射地理参考。像素(0,0)对应范围的西北角，像素行号向南递增
type Georef struct {
	Width  int
	Height int
	Span   Span
}

// 参考是否有效（非退化范围、正尺寸）。无效参考的一切换算结果都应视为无数据
func (g Georef) Valid() bool {
	return g.Width > 0 && g.Height > 0 && g.Span[0] < g.Span[1] && g.Span[2] < g.Span[3]
}

func (g Georef) geoToPixelF(lat, lon float64) (fx, fy float64) {
	fx = (lon - g.Span[0]) / (g.Span[1] - g.Span[0]) * float64(g.Width)
	fy = (g.Span[3] - lat) / (g.Span[3] - g.Span[2]) * float64(g.Height)
	return
}

// 经纬度转像素行列号（向下取整，不做越界检查）。
// 退化范围产生的非有限结果统一折算为(-1,-1)，以便走无数据分支
func (g Georef) GeoToPixel(lat, lon float64) (px, py int) {
	fx, fy := g.geoToPixelF(lat, lon)
	if math.IsNaN(fx) || math.IsInf(fx, 0) || math.IsNaN(fy) || math.IsInf(fy, 0) {
		return -1, -1
	}
	return int(math.Floor(fx)), int(math.Floor(fy))
}

func (g Georef) InBounds(px, py int) bool {
	return px >= 0 && px < g.Width && py >= 0 && py < g.Height
}

// 像素中心点的经纬度
func (g Georef) PixelCenter(px, py int) (lat, lon float64) {
	lon = g.Span[0] + (float64(px)+0.5)/float64(g.Width)*(g.Span[1]-g.Span[0])
	lat = g.Span[3] - (float64(py)+0.5)/float64(g.Height)*(g.Span[3]-g.Span[2])
	return
}

// 整数像素窗口，半开区间 [X0,X1)×[Y0,Y1)
type Window struct {
	X0, Y0, X1, Y1 int
}

func (w Window) Dx() int {
	return w.X1 - w.X0
}

func (w Window) Dy() int {
	return w.Y1 - w.Y0
}

// 窗口对应的地理范围（按像素边缘计）
func (g Georef) WindowSpan(w Window) Span {
	sx := (g.Span[1] - g.Span[0]) / float64(g.Width)
	sy := (g.Span[3] - g.Span[2]) / float64(g.Height)
	return Span{
		g.Span[0] + float64(w.X0)*sx,
		g.Span[0] + float64(w.X1)*sx,
		g.Span[3] - float64(w.Y1)*sy,
		g.Span[3] - float64(w.Y0)*sy,
	}
}

// 将请求的地理范围剪切到栅格范围内并换算为像素窗口。
// 与栅格无交集（或参考无效）时ok为false；非空结果保证至少1×1，
// 两角分别向外取整以完整覆盖小数像素
func (g Georef) ResolveWindow(req Span) (win Window, ok bool) {
	if !g.Valid() {
		return
	}
	lonMin := math.Max(req[0], g.Span[0])
	lonMax := math.Min(req[1], g.Span[1])
	latMin := math.Max(req[2], g.Span[2])
	latMax := math.Min(req[3], g.Span[3])
	if lonMax <= lonMin || latMax <= latMin {
		return
	}
	x0, y0 := g.geoToPixelF(latMax, lonMin)
	x1, y1 := g.geoToPixelF(latMin, lonMax)
	win.X0 = max(0, int(math.Floor(x0)))
	win.Y0 = max(0, int(math.Floor(y0)))
	win.X1 = min(g.Width, int(math.Ceil(x1)))
	win.Y1 = min(g.Height, int(math.Ceil(y1)))
	if win.X1 <= win.X0 {
		if win.X0 >= g.Width {
			win.X0 = g.Width - 1
		}
		win.X1 = win.X0 + 1
	}
	if win.Y1 <= win.Y0 {
		if win.Y0 >= g.Height {
			win.Y0 = g.Height - 1
		}
		win.Y1 = win.Y0 + 1
	}
	ok = true
	return
}
