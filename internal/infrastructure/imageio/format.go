package imageio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"lungmask/internal/domain/entity"
	"lungmask/internal/domain/port"
)

// Format формат файла изображения.
type Format string

const (
	FormatDICOM     Format = "dicom"
	FormatMetaImage Format = "metaimage"
	FormatRaster    Format = "raster"
)

var extFormats = map[string]Format{
	".dcm":   FormatDICOM,
	".dicom": FormatDICOM,
	".ima":   FormatDICOM,
	".mha":   FormatMetaImage,
	".mhd":   FormatMetaImage,
	".png":   FormatRaster,
	".jpg":   FormatRaster,
	".jpeg":  FormatRaster,
	".bmp":   FormatRaster,
	".tif":   FormatRaster,
	".tiff":  FormatRaster,
}

// FormatFromExt определяет формат по расширению файла.
func FormatFromExt(path string) (Format, bool) {
	f, ok := extFormats[strings.ToLower(filepath.Ext(path))]
	return f, ok
}

// dicmOffset смещение сигнатуры "DICM" после преамбулы.
const dicmOffset = 128

// Sniff определяет формат по содержимому файла.
func Sniff(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	head := make([]byte, dicmOffset+4)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF {
		return "", fmt.Errorf("%w: %s", entity.ErrUnsupportedFormat, path)
	}
	head = head[:n]

	switch {
	case n == dicmOffset+4 && bytes.Equal(head[dicmOffset:], []byte("DICM")):
		return FormatDICOM, nil
	case bytes.HasPrefix(head, []byte("ObjectType")) || bytes.HasPrefix(head, []byte("NDims")):
		return FormatMetaImage, nil
	}
	return "", fmt.Errorf("%w: %s", entity.ErrUnsupportedFormat, path)
}

// DetectFormat определяет формат по расширению, а при его отсутствии по содержимому.
func DetectFormat(path string) (Format, error) {
	if f, ok := FormatFromExt(path); ok {
		return f, nil
	}
	if filepath.Ext(path) != "" {
		if f, err := Sniff(path); err == nil {
			return f, nil
		}
		return "", fmt.Errorf("%w: %s", entity.ErrUnsupportedFormat, path)
	}
	return Sniff(path)
}

// Store читает и пишет изображения всех поддерживаемых форматов.
type Store struct{}

// NewStore создаёт хранилище изображений.
func NewStore() *Store {
	return &Store{}
}

// Read загружает изображение.
func (s *Store) Read(ctx context.Context, path string, opts port.ReadOptions) (*entity.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	var img *entity.Image
	switch format {
	case FormatDICOM:
		img, err = ReadDICOM(path, opts.ReadMetadata)
	case FormatMetaImage:
		img, err = ReadMetaImage(path)
	case FormatRaster:
		img, err = ReadRaster(path)
	default:
		err = fmt.Errorf("%w: %s", entity.ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, err
	}
	if err := img.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// Write сохраняет изображение. Путь без известного расширения наследует формат входа.
func (s *Store) Write(ctx context.Context, path string, img *entity.Image, opts port.WriteOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	format, ok := FormatFromExt(path)
	if !ok {
		if opts.SourcePath == "" {
			return fmt.Errorf("%w: %s", entity.ErrUnsupportedFormat, path)
		}
		var err error
		if format, err = DetectFormat(opts.SourcePath); err != nil {
			return err
		}
	}

	switch format {
	case FormatDICOM:
		return WriteDICOM(path, img, opts.KeepOriginalUID)
	case FormatMetaImage:
		return WriteMetaImage(path, img)
	case FormatRaster:
		return WriteRaster(path, img)
	}
	return fmt.Errorf("%w: %s", entity.ErrUnsupportedFormat, path)
}

var (
	_ port.ImageReader = (*Store)(nil)
	_ port.ImageWriter = (*Store)(nil)
)
