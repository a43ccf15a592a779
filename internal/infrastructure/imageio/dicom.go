package imageio

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"
	"gonum.org/v1/gonum/spatial/r3"

	"lungmask/internal/domain/entity"
)

const (
	explicitVRLittleEndian = "1.2.840.10008.1.2.1"
	secondaryCaptureSOP    = "1.2.840.10008.5.1.4.1.1.7"
)

// ReadDICOM загружает одно- или многокадровый DICOM-файл.
// Значения пикселей переводятся в единицы Хаунсфилда через Rescale Slope/Intercept.
func ReadDICOM(path string, readMetadata bool) (*entity.Image, error) {
	ds, err := dicom.ParseFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", entity.ErrInvalidImage, path, err)
	}

	pixEl, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: no pixel data", entity.ErrInvalidImage, path)
	}
	info, ok := pixEl.Value.GetValue().(dicom.PixelDataInfo)
	if !ok || len(info.Frames) == 0 {
		return nil, fmt.Errorf("%w: %s: no frames", entity.ErrInvalidImage, path)
	}
	if info.IsEncapsulated {
		return nil, fmt.Errorf("%w: %s: compressed transfer syntax", entity.ErrUnsupportedFormat, path)
	}

	rows := intValue(ds, tag.Rows, 0)
	cols := intValue(ds, tag.Columns, 0)
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: %s: rows=%d columns=%d", entity.ErrInvalidImage, path, rows, cols)
	}
	bitsStored := intValue(ds, tag.BitsStored, 16)
	signed := intValue(ds, tag.PixelRepresentation, 0) == 1
	slope := floatValue(ds, tag.RescaleSlope, 1)
	intercept := floatValue(ds, tag.RescaleIntercept, 0)

	img := entity.NewImage(cols, rows, len(info.Frames))
	plane := rows * cols
	for z := range info.Frames {
		nf, err := info.Frames[z].GetNativeFrame()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: frame %d: %v", entity.ErrInvalidImage, path, z, err)
		}
		if len(nf.Data) < plane {
			return nil, fmt.Errorf("%w: %s: frame %d has %d pixels, want %d", entity.ErrInvalidImage, path, z, len(nf.Data), plane)
		}
		dst := img.Voxels[z*plane : (z+1)*plane]
		for i := range dst {
			if len(nf.Data[i]) == 0 {
				continue
			}
			v := nf.Data[i][0]
			if signed {
				v = signExtend(v, bitsStored)
			}
			dst[i] = float32(float64(v)*slope + intercept)
		}
	}

	img.Geometry = dicomGeometry(ds)
	if readMetadata {
		img.Metadata = dicomMetadata(ds)
	}
	return img, nil
}

func signExtend(v, bits int) int {
	if v < 0 || bits <= 0 || bits >= 32 {
		return v
	}
	v &= 1<<bits - 1
	if v&(1<<(bits-1)) != 0 {
		v -= 1 << bits
	}
	return v
}

// dicomGeometry собирает геометрию из Image Position/Orientation и Pixel Spacing.
// Нормаль к срезу — векторное произведение направлений строки и столбца.
func dicomGeometry(ds dicom.Dataset) entity.Geometry {
	g := entity.IdentityGeometry()

	if pos := floatValues(ds, tag.ImagePositionPatient); len(pos) == 3 {
		copy(g.Origin[:], pos)
	}
	if ps := floatValues(ds, tag.PixelSpacing); len(ps) == 2 {
		g.Spacing[0], g.Spacing[1] = ps[1], ps[0]
	}
	if dz := floatValue(ds, tag.SpacingBetweenSlices, 0); dz > 0 {
		g.Spacing[2] = dz
	} else if dz := floatValue(ds, tag.SliceThickness, 0); dz > 0 {
		g.Spacing[2] = dz
	}

	if iop := floatValues(ds, tag.ImageOrientationPatient); len(iop) == 6 {
		row := r3.Vec{X: iop[0], Y: iop[1], Z: iop[2]}
		col := r3.Vec{X: iop[3], Y: iop[4], Z: iop[5]}
		if r3.Norm(row) > 0 && r3.Norm(col) > 0 {
			row, col = r3.Unit(row), r3.Unit(col)
			normal := r3.Cross(row, col)
			g.Direction = [9]float64{
				row.X, col.X, normal.X,
				row.Y, col.Y, normal.Y,
				row.Z, col.Z, normal.Z,
			}
		}
	}
	return g
}

// dicomMetadata переводит элементы набора в словарь "gggg|eeee" -> значение.
// Мета-группа файла, пиксельные данные и последовательности пропускаются.
func dicomMetadata(ds dicom.Dataset) map[string]string {
	md := make(map[string]string, len(ds.Elements))
	for _, el := range ds.Elements {
		if el == nil || el.Value == nil || el.Tag.Group == 0x0002 || el.Tag == tag.PixelData {
			continue
		}
		s, ok := valueString(el.Value.GetValue())
		if !ok {
			continue
		}
		md[TagKey(el.Tag)] = s
	}
	return md
}

func valueString(v interface{}) (string, bool) {
	switch vv := v.(type) {
	case []string:
		return strings.Join(vv, `\`), true
	case []int:
		parts := make([]string, len(vv))
		for i, n := range vv {
			parts[i] = strconv.Itoa(n)
		}
		return strings.Join(parts, `\`), true
	case []float64:
		parts := make([]string, len(vv))
		for i, f := range vv {
			parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
		}
		return strings.Join(parts, `\`), true
	}
	return "", false
}

// TagKey форматирует тег в виде "gggg|eeee".
func TagKey(t tag.Tag) string {
	return fmt.Sprintf("%04x|%04x", t.Group, t.Element)
}

// ParseTagKey разбирает ключ "gggg|eeee".
func ParseTagKey(key string) (tag.Tag, error) {
	g, e, ok := strings.Cut(key, "|")
	if !ok {
		return tag.Tag{}, fmt.Errorf("malformed tag key %q", key)
	}
	group, err := strconv.ParseUint(g, 16, 16)
	if err != nil {
		return tag.Tag{}, fmt.Errorf("malformed tag key %q: %w", key, err)
	}
	elem, err := strconv.ParseUint(e, 16, 16)
	if err != nil {
		return tag.Tag{}, fmt.Errorf("malformed tag key %q: %w", key, err)
	}
	return tag.Tag{Group: uint16(group), Element: uint16(elem)}, nil
}

func findValue(ds dicom.Dataset, t tag.Tag) interface{} {
	el, err := ds.FindElementByTag(t)
	if err != nil || el.Value == nil {
		return nil
	}
	return el.Value.GetValue()
}

func floatValues(ds dicom.Dataset, t tag.Tag) []float64 {
	switch v := findValue(ds, t).(type) {
	case []string:
		out := make([]float64, 0, len(v))
		for _, s := range v {
			for _, part := range strings.Split(s, `\`) {
				f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
				if err != nil {
					return nil
				}
				out = append(out, f)
			}
		}
		return out
	case []float64:
		return v
	case []int:
		out := make([]float64, len(v))
		for i, n := range v {
			out[i] = float64(n)
		}
		return out
	}
	return nil
}

func floatValue(ds dicom.Dataset, t tag.Tag, def float64) float64 {
	if v := floatValues(ds, t); len(v) > 0 {
		return v[0]
	}
	return def
}

func intValue(ds dicom.Dataset, t tag.Tag, def int) int {
	if v := floatValues(ds, t); len(v) > 0 {
		return int(v[0])
	}
	return def
}

// NewUID генерирует UID в корне 2.25 из случайного UUID.
func NewUID() string {
	u := uuid.New()
	return "2.25." + new(big.Int).SetBytes(u[:]).String()
}

// structuralTags выставляются писателем и не берутся из метаданных.
var structuralTags = map[tag.Tag]struct{}{
	tag.SOPClassUID:               {},
	tag.SOPInstanceUID:            {},
	tag.SeriesInstanceUID:         {},
	tag.StudyInstanceUID:          {},
	tag.Rows:                      {},
	tag.Columns:                   {},
	tag.NumberOfFrames:            {},
	tag.SamplesPerPixel:           {},
	tag.PhotometricInterpretation: {},
	tag.BitsAllocated:             {},
	tag.BitsStored:                {},
	tag.HighBit:                   {},
	tag.PixelRepresentation:       {},
	tag.PixelSpacing:              {},
	tag.ImagePositionPatient:      {},
	tag.ImageOrientationPatient:   {},
	tag.SpacingBetweenSlices:      {},
	tag.RescaleSlope:              {},
	tag.RescaleIntercept:          {},
	tag.PixelData:                 {},
}

// WriteDICOM сохраняет маску как 8-битный многокадровый DICOM (Secondary Capture).
// При keepUID UID исследования, серии и экземпляра берутся из метаданных изображения.
func WriteDICOM(path string, img *entity.Image, keepUID bool) error {
	if err := img.Validate(); err != nil {
		return err
	}
	nx, ny, nz := img.Size[0], img.Size[1], img.Size[2]

	uidOf := func(key string) string {
		if v := img.Metadata[key]; keepUID && v != "" {
			return v
		}
		return NewUID()
	}
	sopInstance := uidOf(entity.TagSOPInstanceUID)

	g := img.Geometry
	b := &elementBuilder{}
	b.add(tag.FileMetaInformationVersion, []byte{0x00, 0x01})
	b.add(tag.MediaStorageSOPClassUID, []string{secondaryCaptureSOP})
	b.add(tag.MediaStorageSOPInstanceUID, []string{sopInstance})
	b.add(tag.TransferSyntaxUID, []string{explicitVRLittleEndian})
	b.add(tag.SOPClassUID, []string{secondaryCaptureSOP})
	b.add(tag.SOPInstanceUID, []string{sopInstance})
	b.add(tag.StudyInstanceUID, []string{uidOf(entity.TagStudyInstanceUID)})
	b.add(tag.SeriesInstanceUID, []string{uidOf(entity.TagSeriesInstanceUID)})
	b.add(tag.Rows, []int{ny})
	b.add(tag.Columns, []int{nx})
	b.add(tag.NumberOfFrames, []string{strconv.Itoa(nz)})
	b.add(tag.SamplesPerPixel, []int{1})
	b.add(tag.PhotometricInterpretation, []string{"MONOCHROME2"})
	b.add(tag.BitsAllocated, []int{8})
	b.add(tag.BitsStored, []int{8})
	b.add(tag.HighBit, []int{7})
	b.add(tag.PixelRepresentation, []int{0})
	b.add(tag.PixelSpacing, []string{formatDS(g.Spacing[1]), formatDS(g.Spacing[0])})
	b.add(tag.SpacingBetweenSlices, []string{formatDS(g.Spacing[2])})
	b.add(tag.ImagePositionPatient, []string{formatDS(g.Origin[0]), formatDS(g.Origin[1]), formatDS(g.Origin[2])})
	b.add(tag.ImageOrientationPatient, []string{
		formatDS(g.Direction[0]), formatDS(g.Direction[3]), formatDS(g.Direction[6]),
		formatDS(g.Direction[1]), formatDS(g.Direction[4]), formatDS(g.Direction[7]),
	})

	keys := img.MetadataKeys()
	sort.Strings(keys)
	for _, key := range keys {
		t, err := ParseTagKey(key)
		if err != nil || t.Group == 0x0002 {
			continue
		}
		if _, ok := structuralTags[t]; ok {
			continue
		}
		value, err := typedValue(t, img.Metadata[key])
		if err != nil {
			continue
		}
		b.add(t, value)
	}
	if !img.HasMetadata(entity.TagModality) {
		b.add(tag.Modality, []string{"OT"})
	}

	frames := make([]*frame.Frame, nz)
	plane := nx * ny
	for z := 0; z < nz; z++ {
		data := make([][]int, plane)
		for i := range data {
			data[i] = []int{int(clampUint8(img.Voxels[z*plane+i]))}
		}
		frames[z] = &frame.Frame{
			NativeData: frame.NativeFrame{Data: data, Rows: ny, Cols: nx, BitsPerSample: 8},
		}
	}
	b.add(tag.PixelData, dicom.PixelDataInfo{Frames: frames})

	if b.err != nil {
		return fmt.Errorf("build dicom dataset: %w", b.err)
	}
	sort.SliceStable(b.elements, func(i, j int) bool {
		a, c := b.elements[i].Tag, b.elements[j].Tag
		if a.Group != c.Group {
			return a.Group < c.Group
		}
		return a.Element < c.Element
	})

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := dicom.Write(f, dicom.Dataset{Elements: b.elements}, dicom.SkipVRVerification()); err != nil {
		f.Close()
		return fmt.Errorf("write dicom %s: %w", path, err)
	}
	return f.Close()
}

type elementBuilder struct {
	elements []*dicom.Element
	err      error
}

func (b *elementBuilder) add(t tag.Tag, value interface{}) {
	if b.err != nil {
		return
	}
	el, err := dicom.NewElement(t, value)
	if err != nil {
		b.err = fmt.Errorf("tag %s: %w", TagKey(t), err)
		return
	}
	b.elements = append(b.elements, el)
}

// typedValue приводит строковое значение к типу, который ожидает VR тега.
func typedValue(t tag.Tag, s string) (interface{}, error) {
	info, err := tag.Find(t)
	if err != nil {
		return nil, err
	}
	vr, _, _ := strings.Cut(info.VR, " ")
	parts := strings.Split(s, `\`)

	switch vr {
	case "US", "SS", "UL", "SL":
		out := make([]int, 0, len(parts))
		for _, p := range parts {
			n, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		return out, nil
	case "FL", "FD":
		out := make([]float64, 0, len(parts))
		for _, p := range parts {
			f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return nil, err
			}
			out = append(out, f)
		}
		return out, nil
	case "OB", "OW", "OF", "OD", "UN", "SQ", "AT":
		return nil, errors.New("binary value representation " + vr)
	}
	return parts, nil
}

func formatDS(f float64) string {
	s := strconv.FormatFloat(f, 'g', 10, 64)
	if len(s) > 16 {
		s = strconv.FormatFloat(f, 'g', 8, 64)
	}
	return s
}

func clampUint8(v float32) uint8 {
	switch {
	case v <= 0 || math.IsNaN(float64(v)):
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v + 0.5)
}
