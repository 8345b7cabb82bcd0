package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/wgdzlh/coglib"
	"github.com/wgdzlh/coglib/log"
	"github.com/wgdzlh/coglib/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const logTag = "Server:"

type Config struct {
	BaseURL    string
	TileSize   int
	Alg        coglib.ResampleAlg
	Grey       bool
	GlobalNorm bool
	TmpDir     string
}

type Server struct {
	tb        *coglib.CogToolbox
	cfg       Config
	version   string
	startTime time.Time
	openCog   func(url string) (*coglib.CogRaster, error)

	mu      sync.Mutex
	rasters map[string]*rasterEntry
}

type rasterEntry struct {
	once  sync.Once
	r     *coglib.CogRaster
	stats *[2]float64
	err   error
}

func New(cfg Config, version string) *Server {
	if cfg.TileSize <= 0 {
		cfg.TileSize = coglib.DEFAULT_TILE_SIZE
	}
	s := &Server{
		tb:        coglib.NewCogToolbox(cfg.TmpDir),
		cfg:       cfg,
		version:   version,
		startTime: time.Now(),
		rasters:   map[string]*rasterEntry{},
	}
	s.openCog = s.tb.OpenCog
	return s
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/variables", s.handleVariables)
		r.Get("/tiles/{variable}/{depth}/{z}/{x}/{y}", s.handleTile)
		r.Get("/sample", s.handleSample)
		r.Get("/profile", s.handleProfile)
		r.Get("/clip", s.handleClip)
	})
	return r
}

// 每个(变量,深度)对应一个惰性打开的栅格句柄，打开成功后跨请求复用。
// 打开失败不落缓存，下次请求重试
func (s *Server) raster(v coglib.Variable, depth string) (*coglib.CogRaster, *[2]float64, error) {
	key := v.Code + "/" + depth
	s.mu.Lock()
	e := s.rasters[key]
	if e == nil {
		e = &rasterEntry{}
		s.rasters[key] = e
	}
	s.mu.Unlock()
	e.once.Do(func() {
		if e.r, e.err = s.openCog(coglib.CogURL(s.cfg.BaseURL, v.Code, depth)); e.err != nil {
			return
		}
		if !s.cfg.GlobalNorm {
			return
		}
		mn, mx, ok, err := e.r.GlobalStats(context.Background())
		if err != nil || !ok {
			// 统计失败则该栅格退回逐瓦片拉伸
			log.Warn(logTag+"global stats unavailable", zap.String("cog", key), zap.Error(err))
			return
		}
		e.stats = &[2]float64{mn, mx}
	})
	if e.err != nil {
		s.mu.Lock()
		if s.rasters[key] == e {
			delete(s.rasters, key)
		}
		s.mu.Unlock()
		return nil, nil, e.err
	}
	return e.r, e.stats, nil
}

// Close releases all opened raster handles.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.rasters {
		if e.r != nil {
			e.r.Close()
		}
	}
	s.rasters = map[string]*rasterEntry{}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now(),
		"uptime":    int(time.Since(s.startTime).Seconds()),
		"version":   s.version,
	})
}

func (s *Server) handleVariables(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"variables": coglib.Variables,
		"depths":    coglib.Depths,
	})
}

func (s *Server) handleTile(w http.ResponseWriter, r *http.Request) {
	v, depth, ok := s.parseLayer(w, r)
	if !ok {
		return
	}
	z, err := strconv.ParseUint(chi.URLParam(r, "z"), 10, 32)
	if err != nil || z > 24 {
		writeError(w, http.StatusBadRequest, "INVALID_TILE", "invalid zoom level")
		return
	}
	x, err := strconv.ParseUint(chi.URLParam(r, "x"), 10, 32)
	if err != nil || x >= 1<<z {
		writeError(w, http.StatusBadRequest, "INVALID_TILE", "invalid tile column")
		return
	}
	yStr, found := strings.CutSuffix(chi.URLParam(r, "y"), ".png")
	if !found {
		writeError(w, http.StatusBadRequest, "INVALID_TILE", "tile path must end with .png")
		return
	}
	y, err := strconv.ParseUint(yStr, 10, 32)
	if err != nil || y >= 1<<z {
		writeError(w, http.StatusBadRequest, "INVALID_TILE", "invalid tile row")
		return
	}
	rst, stats, err := s.raster(v, depth)
	if err != nil {
		writeError(w, http.StatusBadGateway, "COG_OPEN_FAILED", err.Error())
		return
	}
	span := coglib.BoundToSpan(coglib.TileBound(uint32(z), uint32(x), uint32(y)))
	tile, err := rst.RenderTile(r.Context(), span, coglib.TileOptions{
		Size:  s.cfg.TileSize,
		Alg:   s.cfg.Alg,
		Grey:  s.cfg.Grey,
		Stats: stats,
	})
	if err != nil {
		writeError(w, http.StatusBadGateway, "COG_READ_FAILED", err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("Content-Length", strconv.Itoa(len(tile)))
	w.WriteHeader(http.StatusOK)
	if _, err = w.Write(tile); err != nil {
		log.Warn(logTag+"write tile failed", zap.Error(err))
	}
}

type sampleResponse struct {
	Variable string   `json:"variable"`
	Depth    string   `json:"depth"`
	Lat      float64  `json:"lat"`
	Lon      float64  `json:"lon"`
	Value    *float64 `json:"value"`
	Unit     string   `json:"unit"`
}

func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	v, depth, ok := s.parseLayer(w, r)
	if !ok {
		return
	}
	lat, lon, ok := parseLatLon(w, r)
	if !ok {
		return
	}
	rst, _, err := s.raster(v, depth)
	if err != nil {
		writeError(w, http.StatusBadGateway, "COG_OPEN_FAILED", err.Error())
		return
	}
	sv, err := rst.SampleScaled(lat, lon, v.Scale)
	if err != nil {
		writeError(w, http.StatusBadGateway, "COG_READ_FAILED", err.Error())
		return
	}
	rsp := sampleResponse{Variable: v.Code, Depth: depth, Lat: lat, Lon: lon, Unit: v.Unit}
	if sv.Valid {
		rsp.Value = &sv.Value
	}
	writeJSON(w, http.StatusOK, rsp)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	v, ok := s.parseVariable(w, r.URL.Query().Get("variable"))
	if !ok {
		return
	}
	lat, lon, ok := parseLatLon(w, r)
	if !ok {
		return
	}
	profile, err := coglib.SampleProfile(coglib.Depths, func(depth string) (*coglib.CogRaster, error) {
		rst, _, e := s.raster(v, depth)
		return rst, e
	}, v, lat, lon)
	if err != nil {
		writeError(w, http.StatusBadGateway, "COG_READ_FAILED", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"variable": v.Code,
		"lat":      lat,
		"lon":      lon,
		"profile":  profile,
	})
}

func (s *Server) handleClip(w http.ResponseWriter, r *http.Request) {
	v, depth, ok := s.parseLayer(w, r)
	if !ok {
		return
	}
	span, ok := parseBbox(w, r.URL.Query().Get("bbox"))
	if !ok {
		return
	}
	rst, _, err := s.raster(v, depth)
	if err != nil {
		writeError(w, http.StatusBadGateway, "COG_OPEN_FAILED", err.Error())
		return
	}
	out, err := s.tb.ClipToGTiff(rst, span, s.cfg.TmpDir)
	if err == coglib.ErrEmptyTif {
		writeError(w, http.StatusNotFound, "EMPTY_INTERSECTION", "requested bbox does not overlap the raster")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, "COG_READ_FAILED", err.Error())
		return
	}
	f, err := os.Open(out)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	defer func() {
		f.Close()
		os.Remove(out)
	}()
	w.Header().Set("Content-Type", "image/tiff")
	w.Header().Set("Content-Disposition",
		"attachment; filename=\""+v.Code+"_"+depth+"_"+utils.GetFilenameWithoutExt(out)+".tif\"")
	w.WriteHeader(http.StatusOK)
	if _, err = io.Copy(w, f); err != nil {
		log.Warn(logTag+"write clip failed", zap.Error(err))
	}
}

func (s *Server) parseVariable(w http.ResponseWriter, code string) (v coglib.Variable, ok bool) {
	v, err := coglib.LookupVariable(code)
	if err != nil {
		writeError(w, http.StatusNotFound, "UNKNOWN_VARIABLE", "unknown soil variable: "+code)
		return
	}
	ok = true
	return
}

func (s *Server) parseLayer(w http.ResponseWriter, r *http.Request) (v coglib.Variable, depth string, ok bool) {
	code := chi.URLParam(r, "variable")
	if code == "" {
		code = r.URL.Query().Get("variable")
	}
	if v, ok = s.parseVariable(w, code); !ok {
		return
	}
	if depth = chi.URLParam(r, "depth"); depth == "" {
		depth = r.URL.Query().Get("depth")
	}
	if err := coglib.CheckDepth(depth); err != nil {
		writeError(w, http.StatusNotFound, "UNKNOWN_DEPTH", "unknown depth interval: "+depth)
		ok = false
	}
	return
}

func parseLatLon(w http.ResponseWriter, r *http.Request) (lat, lon float64, ok bool) {
	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(q.Get("lon"), 64)
	if errLat != nil || errLon != nil || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		writeError(w, http.StatusBadRequest, "INVALID_COORD", "lat and lon must be valid coordinates")
		return
	}
	ok = true
	return
}

// bbox格式：minLon,minLat,maxLon,maxLat
func parseBbox(w http.ResponseWriter, bbox string) (span coglib.Span, ok bool) {
	parts := strings.Split(bbox, ",")
	if len(parts) != 4 {
		writeError(w, http.StatusBadRequest, "INVALID_BBOX", "bbox must be 'minLon,minLat,maxLon,maxLat'")
		return
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BBOX", "invalid number in bbox: "+p)
			return
		}
		vals[i] = v
	}
	if vals[0] >= vals[2] || vals[1] >= vals[3] {
		writeError(w, http.StatusBadRequest, "INVALID_BBOX", "bbox min must be less than max")
		return
	}
	span = coglib.Span{vals[0], vals[2], vals[1], vals[3]}
	ok = true
	return
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn(logTag+"encode response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{
		"error":   code,
		"message": msg,
	})
}
