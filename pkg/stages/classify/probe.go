package classify

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"strconv"
	"strings"

	_ "golang.org/x/image/webp"

	"github.com/user/postergen/pkg/pipeline"
)

// Media types accepted for classification.
const (
	MediaJPEG = "image/jpeg"
	MediaPNG  = "image/png"
	MediaSVG  = "image/svg+xml"
	MediaWebP = "image/webp"
)

var allowedMedia = map[string]bool{
	MediaJPEG: true,
	MediaPNG:  true,
	MediaSVG:  true,
	MediaWebP: true,
}

// IsValidImage reports whether mediaType is on the allow-list.
func IsValidImage(mediaType string) bool {
	return allowedMedia[strings.ToLower(strings.TrimSpace(mediaType))]
}

// FilterValid splits files into those on the allow-list and the names of the others.
func FilterValid(files []pipeline.AssetFile) (valid []pipeline.AssetFile, rejected []string) {
	for _, f := range files {
		if IsValidImage(f.MediaType) {
			valid = append(valid, f)
		} else {
			rejected = append(rejected, f.Name)
		}
	}
	return valid, rejected
}

// Measure returns the pixel size of an image file. Raster formats are read
// from their headers; SVG uses the root element's width and height, falling
// back to its viewBox.
func Measure(file pipeline.AssetFile) (int, int, error) {
	if isSVG(file) {
		w, h, err := measureSVG(file.Data)
		if err != nil {
			return 0, 0, pipeline.WrapError(pipeline.KindDecode, err, "decode %s", file.Name)
		}
		return w, h, nil
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(file.Data))
	if err != nil {
		return 0, 0, pipeline.WrapError(pipeline.KindDecode, err, "decode %s", file.Name)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, pipeline.NewError(pipeline.KindDecode, "decode %s: empty image", file.Name)
	}
	return cfg.Width, cfg.Height, nil
}

func isSVG(file pipeline.AssetFile) bool {
	return strings.EqualFold(strings.TrimSpace(file.MediaType), MediaSVG)
}

func measureSVG(data []byte) (int, int, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return 0, 0, errors.New("no svg element")
		}
		if err != nil {
			return 0, 0, fmt.Errorf("parse svg: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Local != "svg" {
			return 0, 0, fmt.Errorf("root element is <%s>, not <svg>", start.Name.Local)
		}

		var width, height float64
		var viewBox string
		for _, a := range start.Attr {
			switch a.Name.Local {
			case "width":
				width = svgLength(a.Value)
			case "height":
				height = svgLength(a.Value)
			case "viewBox":
				viewBox = a.Value
			}
		}
		if (width <= 0 || height <= 0) && viewBox != "" {
			vw, vh := parseViewBox(viewBox)
			switch {
			case width <= 0 && height <= 0:
				width, height = vw, vh
			case width <= 0 && vh > 0:
				width = height * vw / vh
			case height <= 0 && vw > 0:
				height = width * vh / vw
			}
		}
		w, h := int(math.Round(width)), int(math.Round(height))
		if w <= 0 || h <= 0 {
			return 0, 0, errors.New("svg has no intrinsic size")
		}
		return w, h, nil
	}
}

// svgLength parses absolute lengths in px or unitless form. Relative units yield 0.
func svgLength(v string) float64 {
	v = strings.TrimSuffix(strings.TrimSpace(v), "px")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return 0
	}
	return f
}

func parseViewBox(v string) (float64, float64) {
	parts := strings.FieldsFunc(v, func(r rune) bool { return r == ' ' || r == ',' || r == '\t' || r == '\n' })
	if len(parts) != 4 {
		return 0, 0
	}
	w, err1 := strconv.ParseFloat(parts[2], 64)
	h, err2 := strconv.ParseFloat(parts[3], 64)
	if err1 != nil || err2 != nil {
		return 0, 0
	}
	return w, h
}
