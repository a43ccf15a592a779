package entity

import "fmt"

// Geometry пространственная привязка изображения.
// Порядок осей x, y, z; Direction хранится построчно (3x3).
type Geometry struct {
	Origin    [3]float64
	Spacing   [3]float64
	Direction [9]float64
}

// IdentityGeometry возвращает геометрию с единичным шагом и без поворота.
func IdentityGeometry() Geometry {
	return Geometry{
		Spacing:   [3]float64{1, 1, 1},
		Direction: [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1},
	}
}

// Image медицинское изображение (2D хранится как объём с глубиной 1).
type Image struct {
	Size     [3]int    // x, y, z
	Voxels   []float32 // порядок z, y, x
	Geometry Geometry
	Metadata map[string]string // DICOM-теги в виде "gggg|eeee" -> значение
}

// NewImage создаёт пустое изображение заданного размера.
func NewImage(nx, ny, nz int) *Image {
	return &Image{
		Size:     [3]int{nx, ny, nz},
		Voxels:   make([]float32, nx*ny*nz),
		Geometry: IdentityGeometry(),
		Metadata: make(map[string]string),
	}
}

// Len возвращает число вокселей.
func (img *Image) Len() int {
	return img.Size[0] * img.Size[1] * img.Size[2]
}

// SliceLen возвращает число пикселей в одном срезе.
func (img *Image) SliceLen() int {
	return img.Size[0] * img.Size[1]
}

// Index переводит координаты в индекс массива вокселей.
func (img *Image) Index(x, y, z int) int {
	return (z*img.Size[1]+y)*img.Size[0] + x
}

// At возвращает значение вокселя.
func (img *Image) At(x, y, z int) float32 {
	return img.Voxels[img.Index(x, y, z)]
}

// Validate проверяет согласованность размеров и данных.
func (img *Image) Validate() error {
	for i, n := range img.Size {
		if n <= 0 {
			return fmt.Errorf("%w: size[%d]=%d", ErrInvalidImage, i, n)
		}
	}
	if len(img.Voxels) != img.Len() {
		return fmt.Errorf("%w: %d voxels for size %v", ErrInvalidImage, len(img.Voxels), img.Size)
	}
	return nil
}

// MetadataKeys возвращает ключи метаданных.
func (img *Image) MetadataKeys() []string {
	keys := make([]string, 0, len(img.Metadata))
	for k := range img.Metadata {
		keys = append(keys, k)
	}
	return keys
}

// HasMetadata сообщает, задан ли тег.
func (img *Image) HasMetadata(key string) bool {
	_, ok := img.Metadata[key]
	return ok
}

// SetMetadata устанавливает значение тега.
func (img *Image) SetMetadata(key, value string) {
	if img.Metadata == nil {
		img.Metadata = make(map[string]string)
	}
	img.Metadata[key] = value
}

// CopyInformation переносит геометрию src на изображение.
// Значения вокселей и метаданные не копируются.
func (img *Image) CopyInformation(src *Image) error {
	if img.Size != src.Size {
		return fmt.Errorf("%w: %v vs %v", ErrGeometryMismatch, img.Size, src.Size)
	}
	img.Geometry = src.Geometry
	return nil
}

// Mask результат сегментации: метка на каждый воксель.
type Mask struct {
	Size   [3]int
	Labels []uint8 // порядок z, y, x
}

// NewMask создаёт пустую маску.
func NewMask(size [3]int) *Mask {
	return &Mask{Size: size, Labels: make([]uint8, size[0]*size[1]*size[2])}
}

// Count возвращает число вокселей с ненулевой меткой.
func (m *Mask) Count() int {
	n := 0
	for _, l := range m.Labels {
		if l != 0 {
			n++
		}
	}
	return n
}

// NewImageFromMask оборачивает маску в изображение с единичной геометрией.
func NewImageFromMask(m *Mask) *Image {
	img := &Image{
		Size:     m.Size,
		Voxels:   make([]float32, len(m.Labels)),
		Geometry: IdentityGeometry(),
		Metadata: make(map[string]string),
	}
	for i, l := range m.Labels {
		img.Voxels[i] = float32(l)
	}
	return img
}
