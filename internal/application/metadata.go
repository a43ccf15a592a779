package app

import "lungmask/internal/domain/entity"

// ApplyMetadataPolicy переносит разрешённые теги входа на выход и
// выставляет служебные теги маски. Значения окна перезаписываются всегда.
func ApplyMetadataPolicy(in, out *entity.Image) {
	for _, key := range in.MetadataKeys() {
		if entity.IsTagToKeep(key) {
			out.SetMetadata(key, in.Metadata[key])
		}
	}

	out.SetMetadata(entity.TagSeriesDescription, entity.SeriesDescription)

	out.SetMetadata(entity.TagWindowCenter, entity.WindowCenter)
	out.SetMetadata(entity.TagWindowWidth, entity.WindowWidth)
}
