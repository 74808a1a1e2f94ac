package media

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"
)

var encodable = map[string]imaging.Format{
	"image/jpeg": imaging.JPEG,
	"image/png":  imaging.PNG,
}

// normalize applies a policy transform. Formats imaging cannot re-encode, and
// images already within bounds, are returned unchanged.
func normalize(data []byte, contentType string, t *Transform) ([]byte, error) {
	format, ok := encodable[contentType]
	if !ok || t == nil {
		return data, nil
	}
	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}

	var out image.Image
	switch {
	case t.Fill && t.Width > 0 && t.Height > 0:
		out = imaging.Fill(src, t.Width, t.Height, imaging.Center, imaging.Lanczos)
	case t.MaxWidth > 0 && src.Bounds().Dx() > t.MaxWidth:
		out = imaging.Resize(src, t.MaxWidth, 0, imaging.Lanczos)
	default:
		return data, nil
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, format, imaging.JPEGQuality(85)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
