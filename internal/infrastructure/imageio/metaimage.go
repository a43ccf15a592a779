package imageio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"lungmask/internal/domain/entity"
)

// metaElementTypes размер элемента для поддерживаемых MET_* типов.
var metaElementTypes = map[string]int{
	"MET_UCHAR":  1,
	"MET_CHAR":   1,
	"MET_USHORT": 2,
	"MET_SHORT":  2,
	"MET_UINT":   4,
	"MET_INT":    4,
	"MET_FLOAT":  4,
	"MET_DOUBLE": 8,
}

type metaHeader struct {
	fields map[string]string
}

func (h *metaHeader) get(key string) string {
	return h.fields[strings.ToLower(key)]
}

func (h *metaHeader) floats(key string, n int) ([]float64, error) {
	raw := strings.Fields(h.get(key))
	if len(raw) == 0 {
		return nil, nil
	}
	if len(raw) != n {
		return nil, fmt.Errorf("%s: want %d values, got %d", key, n, len(raw))
	}
	out := make([]float64, n)
	for i, s := range raw {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		out[i] = f
	}
	return out, nil
}

// ReadMetaImage загружает файл MetaImage (.mha со встроенными данными или .mhd с отдельным файлом).
func ReadMetaImage(path string) (*entity.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	h := &metaHeader{fields: make(map[string]string)}
	for {
		line, err := r.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return nil, fmt.Errorf("%w: %s: header: %v", entity.ErrInvalidImage, path, err)
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("%w: %s: malformed header line %q", entity.ErrInvalidImage, path, strings.TrimSpace(line))
		}
		key = strings.ToLower(strings.TrimSpace(key))
		h.fields[key] = strings.TrimSpace(value)
		// ElementDataFile всегда последний ключ заголовка
		if key == "elementdatafile" {
			break
		}
		if err == io.EOF {
			return nil, fmt.Errorf("%w: %s: missing ElementDataFile", entity.ErrInvalidImage, path)
		}
	}

	ndims, err := strconv.Atoi(h.get("NDims"))
	if err != nil || ndims < 2 || ndims > 3 {
		return nil, fmt.Errorf("%w: %s: NDims %q", entity.ErrUnsupportedFormat, path, h.get("NDims"))
	}
	dims, err := h.floats("DimSize", ndims)
	if err != nil || dims == nil {
		return nil, fmt.Errorf("%w: %s: DimSize: %v", entity.ErrInvalidImage, path, err)
	}
	if n, _ := strconv.Atoi(h.get("ElementNumberOfChannels")); n > 1 {
		return nil, fmt.Errorf("%w: %s: %d channels", entity.ErrUnsupportedFormat, path, n)
	}
	elemType := strings.ToUpper(h.get("ElementType"))
	elemSize, ok := metaElementTypes[elemType]
	if !ok {
		return nil, fmt.Errorf("%w: %s: ElementType %q", entity.ErrUnsupportedFormat, path, elemType)
	}

	size := [3]int{1, 1, 1}
	for i := 0; i < ndims; i++ {
		size[i] = int(dims[i])
	}
	img := entity.NewImage(size[0], size[1], size[2])
	if err := applyMetaGeometry(h, ndims, &img.Geometry); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", entity.ErrInvalidImage, path, err)
	}

	var data io.Reader = r
	if df := h.get("ElementDataFile"); !strings.EqualFold(df, "LOCAL") {
		raw, err := os.Open(filepath.Join(filepath.Dir(path), df))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: data file: %v", entity.ErrInvalidImage, path, err)
		}
		defer raw.Close()
		data = bufio.NewReader(raw)
	}
	if strings.EqualFold(h.get("CompressedData"), "True") {
		return nil, fmt.Errorf("%w: %s: compressed data", entity.ErrUnsupportedFormat, path)
	}

	var order binary.ByteOrder = binary.LittleEndian
	msb := h.get("ElementByteOrderMSB")
	if msb == "" {
		msb = h.get("BinaryDataByteOrderMSB")
	}
	if strings.EqualFold(msb, "True") {
		order = binary.BigEndian
	}

	buf := make([]byte, img.Len()*elemSize)
	if _, err := io.ReadFull(data, buf); err != nil {
		return nil, fmt.Errorf("%w: %s: pixel data: %v", entity.ErrInvalidImage, path, err)
	}
	decodeMetaElements(buf, elemType, order, img.Voxels)
	return img, nil
}

func applyMetaGeometry(h *metaHeader, ndims int, g *entity.Geometry) error {
	spacing, err := h.floats("ElementSpacing", ndims)
	if err != nil {
		return err
	}
	for i, s := range spacing {
		g.Spacing[i] = s
	}

	offsetKey := "Offset"
	if h.get(offsetKey) == "" {
		offsetKey = "Position"
	}
	offset, err := h.floats(offsetKey, ndims)
	if err != nil {
		return err
	}
	for i, o := range offset {
		g.Origin[i] = o
	}

	matKey := "TransformMatrix"
	if h.get(matKey) == "" {
		matKey = "Orientation"
	}
	m, err := h.floats(matKey, ndims*ndims)
	if err != nil {
		return err
	}
	if m != nil {
		// в MetaImage матрица хранится по столбцам
		for c := 0; c < ndims; c++ {
			for r := 0; r < ndims; r++ {
				g.Direction[r*3+c] = m[c*ndims+r]
			}
		}
	}
	return nil
}

func decodeMetaElements(buf []byte, elemType string, order binary.ByteOrder, dst []float32) {
	for i := range dst {
		switch elemType {
		case "MET_UCHAR":
			dst[i] = float32(buf[i])
		case "MET_CHAR":
			dst[i] = float32(int8(buf[i]))
		case "MET_USHORT":
			dst[i] = float32(order.Uint16(buf[i*2:]))
		case "MET_SHORT":
			dst[i] = float32(int16(order.Uint16(buf[i*2:])))
		case "MET_UINT":
			dst[i] = float32(order.Uint32(buf[i*4:]))
		case "MET_INT":
			dst[i] = float32(int32(order.Uint32(buf[i*4:])))
		case "MET_FLOAT":
			dst[i] = math.Float32frombits(order.Uint32(buf[i*4:]))
		case "MET_DOUBLE":
			dst[i] = float32(math.Float64frombits(order.Uint64(buf[i*8:])))
		}
	}
}

// WriteMetaImage сохраняет изображение как MET_UCHAR.
// Для .mhd данные пишутся в соседний .raw файл.
func WriteMetaImage(path string, img *entity.Image) error {
	if err := img.Validate(); err != nil {
		return err
	}
	g := img.Geometry

	dataFile := "LOCAL"
	detached := strings.EqualFold(filepath.Ext(path), ".mhd")
	if detached {
		dataFile = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + ".raw"
	}

	var hdr bytes.Buffer
	fmt.Fprintf(&hdr, "ObjectType = Image\n")
	fmt.Fprintf(&hdr, "NDims = 3\n")
	fmt.Fprintf(&hdr, "BinaryData = True\n")
	fmt.Fprintf(&hdr, "BinaryDataByteOrderMSB = False\n")
	fmt.Fprintf(&hdr, "CompressedData = False\n")
	fmt.Fprintf(&hdr, "TransformMatrix = %s\n", joinFloats([]float64{
		g.Direction[0], g.Direction[3], g.Direction[6],
		g.Direction[1], g.Direction[4], g.Direction[7],
		g.Direction[2], g.Direction[5], g.Direction[8],
	}))
	fmt.Fprintf(&hdr, "Offset = %s\n", joinFloats(g.Origin[:]))
	fmt.Fprintf(&hdr, "CenterOfRotation = 0 0 0\n")
	fmt.Fprintf(&hdr, "AnatomicalOrientation = RAI\n")
	fmt.Fprintf(&hdr, "ElementSpacing = %s\n", joinFloats(g.Spacing[:]))
	fmt.Fprintf(&hdr, "DimSize = %d %d %d\n", img.Size[0], img.Size[1], img.Size[2])
	fmt.Fprintf(&hdr, "ElementType = MET_UCHAR\n")
	fmt.Fprintf(&hdr, "ElementDataFile = %s\n", dataFile)

	pixels := make([]byte, len(img.Voxels))
	for i, v := range img.Voxels {
		pixels[i] = clampUint8(v)
	}

	if detached {
		if err := os.WriteFile(filepath.Join(filepath.Dir(path), dataFile), pixels, 0o644); err != nil {
			return err
		}
		return os.WriteFile(path, hdr.Bytes(), 0o644)
	}
	return os.WriteFile(path, append(hdr.Bytes(), pixels...), 0o644)
}

func joinFloats(fs []float64) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strings.Join(parts, " ")
}
