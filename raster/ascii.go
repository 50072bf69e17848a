package raster

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ReadASCII reads an ESRI ASCII grid. The grid carries no CRS; callers set
// it from configuration.
func ReadASCII(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not open raster")
	}
	defer f.Close()
	g, err := DecodeASCII(f)
	return g, errors.Wrapf(err, "could not decode raster %s", path)
}

func DecodeASCII(r io.Reader) (*Grid, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 64*1024*1024)
	scanner.Split(bufio.ScanWords)

	header := map[string]float64{}
	var first string
	for scanner.Scan() {
		word := scanner.Text()
		key := strings.ToLower(word)
		if _, err := strconv.ParseFloat(word, 64); err == nil {
			first = word
			break
		}
		if !scanner.Scan() {
			return nil, errors.Errorf("header %s has no value", word)
		}
		v, err := strconv.ParseFloat(scanner.Text(), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid header %s", word)
		}
		header[key] = v
	}

	ncols, okc := header["ncols"]
	nrows, okr := header["nrows"]
	if !okc || !okr {
		return nil, errors.New("missing ncols or nrows")
	}
	width, height := int(ncols), int(nrows)

	dx, dy := header["cellsize"], header["cellsize"]
	if v, ok := header["dx"]; ok {
		dx = v
	}
	if v, ok := header["dy"]; ok {
		dy = v
	}
	if dx <= 0 || dy <= 0 {
		return nil, errors.New("missing or invalid cellsize")
	}

	var originX, originY float64
	switch {
	case has(header, "xllcorner") && has(header, "yllcorner"):
		originX = header["xllcorner"]
		originY = header["yllcorner"] + float64(height)*dy
	case has(header, "xllcenter") && has(header, "yllcenter"):
		originX = header["xllcenter"] - dx/2
		originY = header["yllcenter"] - dy/2 + float64(height)*dy
	default:
		return nil, errors.New("missing lower left corner")
	}

	var nodata *float64
	if v, ok := header["nodata_value"]; ok {
		nodata = &v
	}

	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid raster size %dx%d", width, height)
	}
	data := make([]float64, 0, width*height)
	if first != "" {
		v, _ := strconv.ParseFloat(first, 64)
		data = append(data, v)
	}
	for len(data) < width*height && scanner.Scan() {
		v, err := strconv.ParseFloat(scanner.Text(), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid sample %d", len(data))
		}
		data = append(data, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "could not read samples")
	}

	gt := GeoTransform{originX, dx, 0, originY, 0, -dy}
	return NewGrid(width, height, data, gt, nodata)
}

func has(m map[string]float64, key string) bool {
	_, ok := m[key]
	return ok
}
