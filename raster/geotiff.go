package raster

import (
	"bytes"
	"encoding/binary"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"
	"golang.org/x/image/tiff/lzw"

	"evstudy.dev/zmap/frame"
)

// TIFF tags
const (
	tImageWidth      = 256
	tImageLength     = 257
	tBitsPerSample   = 258
	tCompression     = 259
	tStripOffsets    = 273
	tSamplesPerPixel = 277
	tRowsPerStrip    = 278
	tStripByteCounts = 279
	tPlanarConfig    = 284
	tPredictor       = 317
	tTileWidth       = 322
	tTileLength      = 323
	tTileOffsets     = 324
	tTileByteCounts  = 325
	tSampleFormat    = 339

	tModelPixelScale = 33550
	tModelTiepoint   = 33922
	tModelTransform  = 34264
	tGeoKeyDirectory = 34735
	tGDALNoData      = 42113
)

// TIFF field types
const (
	dtByte      = 1
	dtASCII     = 2
	dtShort     = 3
	dtLong      = 4
	dtRational  = 5
	dtSByte     = 6
	dtUndefined = 7
	dtSShort    = 8
	dtSLong     = 9
	dtSRational = 10
	dtFloat     = 11
	dtDouble    = 12
)

var typeSize = map[uint16]uint32{
	dtByte: 1, dtASCII: 1, dtShort: 2, dtLong: 4, dtRational: 8, dtSByte: 1,
	dtUndefined: 1, dtSShort: 2, dtSLong: 4, dtSRational: 8, dtFloat: 4, dtDouble: 8,
}

const (
	compressionNone     = 1
	compressionLZW      = 5
	compressionDeflate  = 8
	compressionDeflate2 = 32946

	predictorNone       = 1
	predictorHorizontal = 2
	predictorFloat      = 3

	sampleUint  = 1
	sampleInt   = 2
	sampleFloat = 3

	// GeoKeys
	keyRasterType      = 1025
	keyGeographicType  = 2048
	keyProjectedType   = 3072
	rasterPixelIsPoint = 2
	userDefined        = 32767
)

type entry struct {
	typ   uint16
	count uint32
	raw   []byte
}

type tiff struct {
	data    []byte
	order   binary.ByteOrder
	entries map[uint16]entry
}

func ReadGeoTIFF(path string) (*Grid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not read raster")
	}
	g, err := DecodeGeoTIFF(data)
	return g, errors.Wrapf(err, "could not decode raster %s", path)
}

// DecodeGeoTIFF decodes the first band of the first image in a GeoTIFF.
func DecodeGeoTIFF(data []byte) (*Grid, error) {
	t, err := parseTIFF(data)
	if err != nil {
		return nil, err
	}

	width := int(t.first(tImageWidth, 0))
	height := int(t.first(tImageLength, 0))
	spp := int(t.first(tSamplesPerPixel, 1))
	bps := int(t.first(tBitsPerSample, 8))
	format := t.first(tSampleFormat, sampleUint)
	compression := t.first(tCompression, compressionNone)
	predictor := t.first(tPredictor, predictorNone)
	planar := t.first(tPlanarConfig, 1)
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid image size %dx%d", width, height)
	}
	if spp < 1 {
		return nil, errors.Errorf("invalid samples per pixel %d", spp)
	}
	if _, err := sampleReader(format, bps, binary.LittleEndian); err != nil {
		return nil, err
	}
	if spp > 1 {
		slog.Debug("raster has several samples per pixel, reading the first", "samples", spp)
	}

	chunks, err := t.layout(width, height)
	if err != nil {
		return nil, err
	}

	pixelSamples := spp
	if planar == 2 {
		pixelSamples = 1
	}
	bytesPerSample := bps / 8
	samples := make([]float64, width*height)

	for i := range chunks.chunksAcross * chunks.chunksDown {
		if i >= len(chunks.offsets) || i >= len(chunks.counts) {
			return nil, errors.New("raster is missing chunk offsets")
		}
		off, n := chunks.offsets[i], chunks.counts[i]
		if off+n > uint64(len(data)) || off+n < off {
			return nil, errors.Errorf("chunk %d is outside the file", i)
		}
		raw, err := decompress(data[off:off+n], compression)
		if err != nil {
			return nil, errors.Wrapf(err, "could not decompress chunk %d", i)
		}

		chunkRows := chunks.chunkHeight
		rowBytes := chunks.chunkWidth * pixelSamples * bytesPerSample
		if rows := len(raw) / rowBytes; rows < chunkRows {
			// the last strip is usually short
			chunkRows = rows
		}

		order := t.order
		switch predictor {
		case predictorNone:
		case predictorHorizontal:
			undoHorizontal(raw[:chunkRows*rowBytes], rowBytes, pixelSamples, bytesPerSample, order)
		case predictorFloat:
			undoFloat(raw[:chunkRows*rowBytes], rowBytes, bytesPerSample)
			order = binary.BigEndian
		default:
			return nil, errors.Errorf("unsupported predictor %d", predictor)
		}
		read, _ := sampleReader(format, bps, order)

		originRow := (i / chunks.chunksAcross) * chunks.chunkHeight
		originCol := (i % chunks.chunksAcross) * chunks.chunkWidth
		for r := range chunkRows {
			row := originRow + r
			if row >= height {
				break
			}
			for c := range chunks.chunkWidth {
				col := originCol + c
				if col >= width {
					break
				}
				at := r*rowBytes + c*pixelSamples*bytesPerSample
				samples[row*width+col] = read(raw[at : at+bytesPerSample])
			}
		}
	}

	gt, err := t.geoTransform()
	if err != nil {
		return nil, err
	}

	var nodata *float64
	if s, ok := t.ascii(tGDALNoData); ok && s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid nodata value %q", s)
		}
		if format == sampleFloat && bps == 32 {
			// compare in the band's precision
			v = float64(float32(v))
		}
		nodata = &v
	}

	g, err := NewGrid(width, height, samples, gt, nodata)
	if err != nil {
		return nil, err
	}
	g.EPSG = t.epsg()
	if g.EPSG != 0 {
		if crs, err := frame.EPSGProj4(g.EPSG); err == nil {
			g.CRS = crs
		}
	}
	return g, nil
}

func parseTIFF(data []byte) (*tiff, error) {
	if len(data) < 8 {
		return nil, errors.New("file too short for a TIFF header")
	}
	t := &tiff{data: data, entries: map[uint16]entry{}}
	switch string(data[:2]) {
	case "II":
		t.order = binary.LittleEndian
	case "MM":
		t.order = binary.BigEndian
	default:
		return nil, errors.New("not a TIFF file")
	}
	switch magic := t.order.Uint16(data[2:4]); magic {
	case 42:
	case 43:
		return nil, errors.New("BigTIFF is not supported")
	default:
		return nil, errors.Errorf("bad TIFF magic %d", magic)
	}

	ifd := t.order.Uint32(data[4:8])
	if uint64(ifd)+2 > uint64(len(data)) {
		return nil, errors.New("IFD offset outside the file")
	}
	n := uint32(t.order.Uint16(data[ifd : ifd+2]))
	if uint64(ifd)+2+uint64(n)*12 > uint64(len(data)) {
		return nil, errors.New("IFD runs past the end of the file")
	}
	for i := range n {
		e := data[ifd+2+i*12 : ifd+2+(i+1)*12]
		tag := t.order.Uint16(e[0:2])
		typ := t.order.Uint16(e[2:4])
		count := t.order.Uint32(e[4:8])
		size, ok := typeSize[typ]
		if !ok {
			continue
		}
		length := uint64(size) * uint64(count)
		var raw []byte
		if length <= 4 {
			raw = e[8 : 8+length]
		} else {
			off := uint64(t.order.Uint32(e[8:12]))
			if off+length > uint64(len(data)) {
				return nil, errors.Errorf("tag %d data outside the file", tag)
			}
			raw = data[off : off+length]
		}
		t.entries[tag] = entry{typ: typ, count: count, raw: raw}
	}
	return t, nil
}

func (t *tiff) uints(tag uint16) []uint64 {
	e, ok := t.entries[tag]
	if !ok {
		return nil
	}
	out := make([]uint64, 0, e.count)
	for i := range e.count {
		switch e.typ {
		case dtByte, dtUndefined:
			out = append(out, uint64(e.raw[i]))
		case dtShort:
			out = append(out, uint64(t.order.Uint16(e.raw[i*2:])))
		case dtLong:
			out = append(out, uint64(t.order.Uint32(e.raw[i*4:])))
		default:
			return nil
		}
	}
	return out
}

func (t *tiff) first(tag uint16, def uint64) uint64 {
	v := t.uints(tag)
	if len(v) == 0 {
		return def
	}
	return v[0]
}

func (t *tiff) floats(tag uint16) []float64 {
	e, ok := t.entries[tag]
	if !ok {
		return nil
	}
	if e.typ != dtDouble {
		out := []float64{}
		for _, v := range t.uints(tag) {
			out = append(out, float64(v))
		}
		return out
	}
	out := make([]float64, e.count)
	for i := range out {
		out[i] = math.Float64frombits(t.order.Uint64(e.raw[i*8:]))
	}
	return out
}

func (t *tiff) ascii(tag uint16) (string, bool) {
	e, ok := t.entries[tag]
	if !ok || e.typ != dtASCII {
		return "", false
	}
	return strings.TrimSpace(strings.TrimRight(string(e.raw), "\x00")), true
}

type layout struct {
	chunkWidth   int
	chunkHeight  int
	chunksAcross int
	chunksDown   int
	offsets      []uint64
	counts       []uint64
}

func (t *tiff) layout(width, height int) (layout, error) {
	if _, tiled := t.entries[tTileOffsets]; tiled {
		l := layout{
			chunkWidth:  int(t.first(tTileWidth, 0)),
			chunkHeight: int(t.first(tTileLength, 0)),
			offsets:     t.uints(tTileOffsets),
			counts:      t.uints(tTileByteCounts),
		}
		if l.chunkWidth <= 0 || l.chunkHeight <= 0 {
			return l, errors.New("invalid tile size")
		}
		l.chunksAcross = (width + l.chunkWidth - 1) / l.chunkWidth
		l.chunksDown = (height + l.chunkHeight - 1) / l.chunkHeight
		return l, nil
	}

	rowsPerStrip := int(t.first(tRowsPerStrip, uint64(height)))
	if rowsPerStrip <= 0 || rowsPerStrip > height {
		rowsPerStrip = height
	}
	l := layout{
		chunkWidth:   width,
		chunkHeight:  rowsPerStrip,
		chunksAcross: 1,
		chunksDown:   (height + rowsPerStrip - 1) / rowsPerStrip,
		offsets:      t.uints(tStripOffsets),
		counts:       t.uints(tStripByteCounts),
	}
	if len(l.offsets) == 0 {
		return l, errors.New("raster has no strip offsets")
	}
	return l, nil
}

func decompress(chunk []byte, compression uint64) ([]byte, error) {
	switch compression {
	case compressionNone:
		return chunk, nil
	case compressionLZW:
		r := lzw.NewReader(bytes.NewReader(chunk), lzw.MSB, 8)
		defer r.Close()
		return io.ReadAll(r)
	case compressionDeflate, compressionDeflate2:
		r, err := zlib.NewReader(bytes.NewReader(chunk))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	}
	return nil, errors.Errorf("unsupported compression %d", compression)
}

func sampleReader(format uint64, bps int, order binary.ByteOrder) (func([]byte) float64, error) {
	switch {
	case format == sampleUint && bps == 8:
		return func(b []byte) float64 { return float64(b[0]) }, nil
	case format == sampleUint && bps == 16:
		return func(b []byte) float64 { return float64(order.Uint16(b)) }, nil
	case format == sampleUint && bps == 32:
		return func(b []byte) float64 { return float64(order.Uint32(b)) }, nil
	case format == sampleInt && bps == 8:
		return func(b []byte) float64 { return float64(int8(b[0])) }, nil
	case format == sampleInt && bps == 16:
		return func(b []byte) float64 { return float64(int16(order.Uint16(b))) }, nil
	case format == sampleInt && bps == 32:
		return func(b []byte) float64 { return float64(int32(order.Uint32(b))) }, nil
	case format == sampleFloat && bps == 32:
		return func(b []byte) float64 { return float64(math.Float32frombits(order.Uint32(b))) }, nil
	case format == sampleFloat && bps == 64:
		return func(b []byte) float64 { return math.Float64frombits(order.Uint64(b)) }, nil
	}
	return nil, errors.Errorf("unsupported sample format %d with %d bits", format, bps)
}

// undoHorizontal reverses TIFF predictor 2 in place.
func undoHorizontal(raw []byte, rowBytes, spp, size int, order binary.ByteOrder) {
	stride := spp * size
	for start := 0; start+rowBytes <= len(raw); start += rowBytes {
		row := raw[start : start+rowBytes]
		for i := stride; i+size <= len(row); i += size {
			prev := row[i-stride:]
			switch size {
			case 1:
				row[i] += prev[0]
			case 2:
				order.PutUint16(row[i:], order.Uint16(row[i:])+order.Uint16(prev))
			case 4:
				order.PutUint32(row[i:], order.Uint32(row[i:])+order.Uint32(prev))
			case 8:
				order.PutUint64(row[i:], order.Uint64(row[i:])+order.Uint64(prev))
			}
		}
	}
}

// undoFloat reverses TIFF predictor 3. The result holds big endian samples.
func undoFloat(raw []byte, rowBytes, size int) {
	tmp := make([]byte, rowBytes)
	n := rowBytes / size
	for start := 0; start+rowBytes <= len(raw); start += rowBytes {
		row := raw[start : start+rowBytes]
		for i := 1; i < len(row); i++ {
			row[i] += row[i-1]
		}
		copy(tmp, row)
		for s := range n {
			for b := range size {
				row[s*size+b] = tmp[b*n+s]
			}
		}
	}
}

func (t *tiff) geoKeys() map[uint16]uint16 {
	dir := t.uints(tGeoKeyDirectory)
	keys := map[uint16]uint16{}
	if len(dir) < 4 {
		return keys
	}
	n := int(dir[3])
	for i := range n {
		k := dir[4+i*4:]
		if len(k) < 4 {
			break
		}
		// only keys stored inline in the directory are needed
		if k[1] == 0 {
			keys[uint16(k[0])] = uint16(k[3])
		}
	}
	return keys
}

func (t *tiff) epsg() int {
	keys := t.geoKeys()
	if code, ok := keys[keyProjectedType]; ok && code != userDefined {
		return int(code)
	}
	if code, ok := keys[keyGeographicType]; ok && code != userDefined {
		return int(code)
	}
	return 0
}

func (t *tiff) geoTransform() (GeoTransform, error) {
	var gt GeoTransform
	if m := t.floats(tModelTransform); len(m) >= 16 {
		gt = GeoTransform{m[3], m[0], m[1], m[7], m[4], m[5]}
	} else {
		scale := t.floats(tModelPixelScale)
		tie := t.floats(tModelTiepoint)
		if len(scale) < 2 || len(tie) < 6 {
			return gt, errors.New("raster has no georeferencing")
		}
		gt = GeoTransform{tie[3] - tie[0]*scale[0], scale[0], 0, tie[4] + tie[1]*scale[1], 0, -scale[1]}
	}
	if t.geoKeys()[keyRasterType] == rasterPixelIsPoint {
		gt[0] -= 0.5*gt[1] + 0.5*gt[2]
		gt[3] -= 0.5*gt[4] + 0.5*gt[5]
	}
	return gt, nil
}
