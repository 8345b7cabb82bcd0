package coglib

import "errors"

var (
	ErrInvalidGeoref = errors.New("invalid raster georeference")
	ErrInvalidTif    = errors.New("invalid tif")
	ErrWrongTif      = errors.New("wrong tif")
	ErrTifReadFailed = errors.New("tif read failed")
	ErrEmptyTif      = errors.New("empty tif")
	ErrWrongWindow   = errors.New("wrong raster window")
	ErrVoidSrid      = errors.New("raster with void srid")
	ErrInvalidWKT    = errors.New("invalid WKT")
	ErrUnknownVar    = errors.New("unknown soil variable")
	ErrUnknownDepth  = errors.New("unknown depth interval")
	ErrUnknownAlg    = errors.New("unknown resample alg")
)
