package coglib

import (
	"bytes"
	"context"
	"image"
	"image/draw"
	"image/png"
	"math"

	"github.com/nfnt/resize"
	"github.com/paulmach/orb"
)

// 瓦片渲染选项。Stats非nil时采用全图统计归一化，否则逐瓦片独立拉伸
type TileOptions struct {
	Size  int
	Alg   ResampleAlg
	Grey  bool
	Stats *[2]float64
}

// 滑动地图瓦片z/x/y对应的4326地理范围
func TileBound(z, x, y uint32) orb.Bound {
	n := float64(uint64(1) << z)
	return orb.Bound{
		Min: orb.Point{float64(x)/n*360 - 180, tileLat(y+1, n)},
		Max: orb.Point{float64(x+1)/n*360 - 180, tileLat(y, n)},
	}
}

func tileLat(y uint32, n float64) float64 {
	return math.Atan(math.Sinh(math.Pi*(1-2*float64(y)/n))) / degToRad
}

func BoundToSpan(b orb.Bound) Span {
	return Span{b.Min[0], b.Max[0], b.Min[1], b.Max[1]}
}

// 渲染指定4326地理范围的叠加瓦片PNG。与栅格无交集或窗口无特征时
// 输出全透明瓦片；底层读取失败时错误原样上抛
func (r *CogRaster) RenderTile(ctx context.Context, span Span, opt TileOptions) (out []byte, err error) {
	size := opt.Size
	if size <= 0 {
		size = DEFAULT_TILE_SIZE
	}
	tspan := span
	if r.srid != UNIVERSAL_SRID {
		if tspan, err = r.tb.TransformSpan(span, UNIVERSAL_SRID, r.srid); err != nil {
			return
		}
	}
	win, ok := r.georef.ResolveWindow(tspan)
	if !ok {
		return transparentTile(size)
	}
	rw, rh := win.Dx(), win.Dy()
	if rw > MAX_NATIVE_READ {
		rh = max(1, rh*MAX_NATIVE_READ/rw)
		rw = MAX_NATIVE_READ
	}
	if rh > MAX_NATIVE_READ {
		rw = max(1, rw*MAX_NATIVE_READ/rh)
		rh = MAX_NATIVE_READ
	}
	grid, err := r.ReadWindow(ctx, win, rw, rh, opt.Alg)
	if err != nil {
		return
	}
	var norm []float64
	if opt.Stats != nil {
		norm, ok = NormalizeGridBetween(grid, opt.Stats[0], opt.Stats[1])
	} else {
		norm, ok = NormalizeGrid(grid)
	}
	if !ok {
		return transparentTile(size)
	}
	// 窗口在瓦片内的落位：按窗口与请求范围的比例折算目标矩形
	wspan := r.georef.WindowSpan(win)
	fs := float64(size)
	dx0 := int(math.Round((wspan[0] - tspan[0]) / (tspan[1] - tspan[0]) * fs))
	dx1 := int(math.Round((wspan[1] - tspan[0]) / (tspan[1] - tspan[0]) * fs))
	dy0 := int(math.Round((tspan[3] - wspan[3]) / (tspan[3] - tspan[2]) * fs))
	dy1 := int(math.Round((tspan[3] - wspan[2]) / (tspan[3] - tspan[2]) * fs))
	dx0, dy0 = min(max(0, dx0), size-1), min(max(0, dy0), size-1)
	dx1, dy1 = min(size, max(dx1, dx0+1)), min(size, max(dy1, dy0+1))
	wimg := gridImage(norm, rw, rh, opt.Grey)
	scaled := resize.Resize(uint(dx1-dx0), uint(dy1-dy0), wimg, opt.Alg.interp())
	tileImg := image.NewNRGBA(image.Rect(0, 0, size, size))
	draw.Draw(tileImg, image.Rect(dx0, dy0, dx1, dy1), scaled, image.Point{}, draw.Src)
	return encodePNG(tileImg)
}

// 归一化网格着色。无效值（-1标记）输出全透明像素
func gridImage(norm []float64, w, h int, grey bool) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i, n := range norm {
		if n < 0 {
			continue
		}
		o := i * 4
		if grey {
			c := uint8(math.Round(n * 255))
			img.Pix[o], img.Pix[o+1], img.Pix[o+2] = c, c, c
		} else {
			c := rampColor(n)
			img.Pix[o], img.Pix[o+1], img.Pix[o+2] = c[0], c[1], c[2]
		}
		img.Pix[o+3] = 255
	}
	return img
}

// 固定色带（浅黄到深褐），线性插值
var rampStops = [...][3]uint8{
	{255, 255, 212},
	{254, 217, 142},
	{254, 153, 41},
	{204, 76, 2},
	{102, 37, 6},
}

func rampColor(t float64) [3]uint8 {
	seg := float64(len(rampStops) - 1)
	i := int(t * seg)
	if i >= len(rampStops)-1 {
		return rampStops[len(rampStops)-1]
	}
	f := t*seg - float64(i)
	a, b := rampStops[i], rampStops[i+1]
	return [3]uint8{
		uint8(float64(a[0]) + (float64(b[0])-float64(a[0]))*f),
		uint8(float64(a[1]) + (float64(b[1])-float64(a[1]))*f),
		uint8(float64(a[2]) + (float64(b[2])-float64(a[2]))*f),
	}
}

func (a ResampleAlg) interp() resize.InterpolationFunction {
	if a == ResampleBilinear {
		return resize.Bilinear
	}
	return resize.NearestNeighbor
}

func transparentTile(size int) ([]byte, error) {
	return encodePNG(image.NewNRGBA(image.Rect(0, 0, size, size)))
}

func encodePNG(img image.Image) (out []byte, err error) {
	var buf bytes.Buffer
	if err = png.Encode(&buf, img); err != nil {
		return
	}
	out = buf.Bytes()
	return
}
