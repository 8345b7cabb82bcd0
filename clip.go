package coglib

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/wgdzlh/coglib/log"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 按4326地理范围剪切栅格，输出LZW压缩的GTiff，返回输出路径。
// 范围与栅格无交集时返回ErrEmptyTif
func (g *CogToolbox) ClipToGTiff(r *CogRaster, span Span, outDir string) (out string, err error) {
	tspan := span
	if r.srid != UNIVERSAL_SRID {
		if tspan, err = g.TransformSpan(span, UNIVERSAL_SRID, r.srid); err != nil {
			return
		}
	}
	win, ok := r.georef.ResolveWindow(tspan)
	if !ok {
		err = ErrEmptyTif
		return
	}
	if outDir == "" {
		outDir = g.tmpDir
	}
	out = filepath.Join(outDir, fmt.Sprintf(TMP_CLIP_TIF, uuid.NewString()))
	opts := []string{
		"-srcwin", strconv.Itoa(win.X0), strconv.Itoa(win.Y0),
		strconv.Itoa(win.Dx()), strconv.Itoa(win.Dy()),
		"-co", "compress=lzw",
	}
	log.Info(g.logTag+"clip cog to gtiff", zap.String("url", r.url),
		zap.Ints("srcwin", []int{win.X0, win.Y0, win.Dx(), win.Dy()}), zap.String("out", out))
	r.ioLock.Lock()
	ods, err := r.ds.Translate(out, opts)
	r.ioLock.Unlock()
	if err != nil {
		log.Error(g.logTag+"failed to clip cog", zap.String("url", r.url), zap.Error(err))
		err = ErrTifReadFailed
		out = ""
		return
	}
	ods.Close()
	return
}
