package coglib

import (
	"fmt"
	"runtime"
	"strconv"
	"sync"

	"github.com/wgdzlh/coglib/log"

	"github.com/lukeroth/gdal"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

type CogToolbox struct {
	refMap map[int]gdal.SpatialReference
	rLock  sync.Mutex
	ioSem  *semaphore.Weighted
	tmpDir string
	logTag string
}

// 初始化COG工具箱，tmpDir为可选的临时目录路径（未提供的话为当前目录）
func NewCogToolbox(tmpDir ...string) *CogToolbox {
	g := &CogToolbox{
		refMap: map[int]gdal.SpatialReference{},
		ioSem:  semaphore.NewWeighted(int64(runtime.NumCPU())),
		logTag: "CogToolbox:",
	}
	if len(tmpDir) > 0 && tmpDir[0] != "" {
		g.tmpDir = tmpDir[0]
	}
	return g
}

// 获取srid对应的坐标系（可复用，故无需回收）
func (g *CogToolbox) getSridRef(srid int) (ref gdal.SpatialReference, err error) {
	g.rLock.Lock()
	defer g.rLock.Unlock()
	ref, ok := g.refMap[srid]
	if ok {
		return
	}
	ref = gdal.CreateSpatialReference("")
	if err = ref.FromEPSG(srid); err != nil {
		log.Error(g.logTag+"set ref srid failed", zap.Int("srid", srid), zap.Error(err))
		ref.Destroy()
		return
	}
	// 数据轴次序固定为(经度,纬度)传统GIS坐标序，避免转换时次序倒置
	ref.SetAxisMappingStrategy(gdal.OAMS_TraditionalGisOrder)
	g.refMap[srid] = ref
	return
}

// 从投影WKT中识别srid
func (g *CogToolbox) getSridOfWkt(wkt string) (srid int, err error) {
	if wkt == "" {
		err = ErrVoidSrid
		return
	}
	sp := gdal.CreateSpatialReference(wkt)
	defer sp.Destroy()
	rawId, ok := sp.AttrValue("AUTHORITY", 1)
	if !ok {
		err = ErrVoidSrid
		return
	}
	srid, err = strconv.Atoi(rawId)
	log.Info(g.logTag+"got srid from wkt", zap.String("id", rawId))
	return
}

// 将单个坐标点从srid转换到tSrid。4326与3857互转走球面墨卡托快速通道
func (g *CogToolbox) TransformPoint(x, y float64, srid, tSrid int) (tx, ty float64, err error) {
	if srid == tSrid {
		return x, y, nil
	}
	if srid == UNIVERSAL_SRID && tSrid == MERCATOR_SRID {
		tx, ty = Convert4326To3857(x, y)
		return
	}
	if srid == MERCATOR_SRID && tSrid == UNIVERSAL_SRID {
		tx, ty = Convert3857To4326(x, y)
		return
	}
	ref, err := g.getSridRef(srid)
	if err != nil {
		return
	}
	tRef, err := g.getSridRef(tSrid)
	if err != nil {
		return
	}
	geo, err := gdal.CreateFromWKT(fmt.Sprintf("POINT(%.9f %.9f)", x, y), ref)
	if err != nil {
		log.Error(g.logTag+"parse point wkt failed", zap.Error(err))
		err = ErrInvalidWKT
		return
	}
	defer geo.Destroy()
	if err = geo.TransformTo(tRef); err != nil {
		log.Error(g.logTag+"point transform failed", zap.Error(err))
		return
	}
	tx, ty = geo.X(0), geo.Y(0)
	return
}

// 将地理范围的两个对角点从srid转换到tSrid（仅适用于朝北的规则网格）
func (g *CogToolbox) TransformSpan(span Span, srid, tSrid int) (ret Span, err error) {
	if srid == tSrid {
		return span, nil
	}
	x0, y0, err := g.TransformPoint(span[0], span[2], srid, tSrid)
	if err != nil {
		return
	}
	x1, y1, err := g.TransformPoint(span[1], span[3], srid, tSrid)
	if err != nil {
		return
	}
	ret = Span{x0, x1, y0, y1}
	return
}
