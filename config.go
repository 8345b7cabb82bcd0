package coglib

const (
	UNIVERSAL_SRID = 4326
	MERCATOR_SRID  = 3857

	VSI_CURL_PREFIX = "/vsicurl/"

	DEFAULT_TILE_SIZE = 256
	// 单次瓦片渲染原始读取窗口的边长上限
	MAX_NATIVE_READ = 1024
	// 全图统计降采样读取的边长上限
	STATS_SAMPLE_DIM = 256

	// COG文件名模板：{变量}_{深度}_mean.tif
	COG_NAME_TEMPLATE = "%s_%s_mean.tif"

	TMP_CLIP_TIF = "clip_%s.tif"
)
