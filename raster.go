package coglib

import (
	"context"
	"strings"
	"sync"

	"github.com/wgdzlh/coglib/log"

	gdal "github.com/airbusgeo/godal"
	"go.uber.org/zap"
)

var registerOnce sync.Once

// 已打开的COG栅格句柄。打开后地理参考等元数据只读，可跨协程共享；
// 底层GDAL数据集不支持同句柄并发RasterIO，读操作经ioLock串行
type CogRaster struct {
	ds     *Dataset
	band   gdal.Band
	georef Georef
	srid   int
	noData float64
	hasNd  bool
	url    string
	ioLock sync.Mutex
	tb     *CogToolbox
}

// 打开COG栅格，http(s)地址经由GDAL /vsicurl/ 做Range分段读取
func (g *CogToolbox) OpenCog(url string) (r *CogRaster, err error) {
	registerOnce.Do(gdal.RegisterAll)
	path := url
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		path = VSI_CURL_PREFIX + url
	}
	sds, err := gdal.Open(path, gdal.RasterOnly())
	if err != nil {
		log.Error(g.logTag+"open cog failed", zap.String("url", url), zap.Error(err))
		err = ErrInvalidTif
		return
	}
	bands := sds.Bands()
	if len(bands) == 0 {
		log.Error(g.logTag+"cog has no band", zap.String("url", url))
		sds.Close()
		err = ErrWrongTif
		return
	}
	band := bands[0]
	bandStruct := band.Structure()
	gt, err := sds.GeoTransform()
	if err != nil {
		log.Error(g.logTag+"cog has no geotransform", zap.String("url", url), zap.Error(err))
		sds.Close()
		err = ErrWrongTif
		return
	}
	// 仅支持朝北的规则网格（无旋转项、行号向南递增）
	if gt[2] != 0 || gt[4] != 0 || gt[1] <= 0 || gt[5] >= 0 {
		log.Error(g.logTag+"cog grid is rotated or flipped", zap.String("url", url))
		sds.Close()
		err = ErrWrongTif
		return
	}
	georef := Georef{
		Width:  bandStruct.SizeX,
		Height: bandStruct.SizeY,
		Span: Span{
			gt[0],
			gt[0] + gt[1]*float64(bandStruct.SizeX),
			gt[3] + gt[5]*float64(bandStruct.SizeY),
			gt[3],
		},
	}
	if !georef.Valid() {
		sds.Close()
		err = ErrInvalidGeoref
		return
	}
	srid := UNIVERSAL_SRID
	if wkt := sds.Projection(); wkt != "" {
		if srid, err = g.getSridOfWkt(wkt); err != nil {
			log.Warn(g.logTag+"cog srid unknown, assume 4326", zap.String("url", url), zap.Error(err))
			srid, err = UNIVERSAL_SRID, nil
		}
	}
	nd, hasNd := band.NoData()
	log.Info(g.logTag+"opened cog", zap.String("url", url),
		zap.Int("width", georef.Width), zap.Int("height", georef.Height),
		zap.Int("srid", srid), zap.Bool("hasNodata", hasNd))
	r = &CogRaster{
		ds:     sds,
		band:   band,
		georef: georef,
		srid:   srid,
		noData: nd,
		hasNd:  hasNd,
		url:    url,
		tb:     g,
	}
	return
}

func (r *CogRaster) Georef() Georef {
	return r.georef
}

func (r *CogRaster) Srid() int {
	return r.srid
}

func (r *CogRaster) NoData() (float64, bool) {
	return r.noData, r.hasNd
}

func (r *CogRaster) URL() string {
	return r.url
}

func (r *CogRaster) Close() {
	if r.ds != nil {
		r.ds.Close()
		r.ds = nil
	}
}

func (r *CogRaster) isNoData(v float64) bool {
	return Grid{NoData: r.noData, HasNoData: r.hasNd}.IsNoData(v)
}

func (r *CogRaster) readPixel(px, py int) (val float64, err error) {
	buf := make([]float64, 1)
	r.ioLock.Lock()
	err = r.band.IO(gdal.IORead, px, py, buf, 1, 1)
	r.ioLock.Unlock()
	if err != nil {
		log.Error(r.tb.logTag+"read cog pixel failed", zap.String("url", r.url),
			zap.Int("px", px), zap.Int("py", py), zap.Error(err))
		err = ErrTifReadFailed
		return
	}
	val = buf[0]
	return
}

// 读取像素窗口并重采样到tw×th的网格。排队等待读取期间ctx取消则中止
func (r *CogRaster) ReadWindow(ctx context.Context, win Window, tw, th int, alg ResampleAlg) (grid Grid, err error) {
	if tw <= 0 || th <= 0 ||
		win.X0 < 0 || win.Y0 < 0 || win.X1 <= win.X0 || win.Y1 <= win.Y0 ||
		win.X1 > r.georef.Width || win.Y1 > r.georef.Height {
		err = ErrWrongWindow
		return
	}
	buf := make([]float64, tw*th)
	if err = r.tb.ioSem.Acquire(ctx, 1); err != nil {
		return
	}
	r.ioLock.Lock()
	err = r.band.IO(gdal.IORead, win.X0, win.Y0, buf, tw, th,
		gdal.Window(win.Dx(), win.Dy()), gdal.Resampling(alg.gdalAlg()))
	r.ioLock.Unlock()
	r.tb.ioSem.Release(1)
	if err != nil {
		log.Error(r.tb.logTag+"read cog window failed", zap.String("url", r.url),
			zap.Int("x0", win.X0), zap.Int("y0", win.Y0),
			zap.Int("dx", win.Dx()), zap.Int("dy", win.Dy()), zap.Error(err))
		err = ErrTifReadFailed
		return
	}
	grid = Grid{Values: buf, Width: tw, Height: th, NoData: r.noData, HasNoData: r.hasNd}
	return
}

// 全图有效值的min/max，基于一次降采样整图读取。
// 全局归一化模式下统计一次、供所有窗口复用
func (r *CogRaster) GlobalStats(ctx context.Context) (mn, mx float64, ok bool, err error) {
	sw, sh := r.georef.Width, r.georef.Height
	if sw > STATS_SAMPLE_DIM {
		sh = max(1, sh*STATS_SAMPLE_DIM/sw)
		sw = STATS_SAMPLE_DIM
	}
	if sh > STATS_SAMPLE_DIM {
		sw = max(1, sw*STATS_SAMPLE_DIM/sh)
		sh = STATS_SAMPLE_DIM
	}
	grid, err := r.ReadWindow(ctx, Window{0, 0, r.georef.Width, r.georef.Height}, sw, sh, ResampleNearest)
	if err != nil {
		return
	}
	mn, mx, ok = grid.MinMax()
	return
}

func (a ResampleAlg) gdalAlg() gdal.ResamplingAlg {
	if a == ResampleBilinear {
		return gdal.Bilinear
	}
	return gdal.Nearest
}
