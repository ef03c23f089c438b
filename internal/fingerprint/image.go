package fingerprint

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var (
	// ErrEmptyImage is returned when no image data was supplied.
	ErrEmptyImage = errors.New("image data is required")
	// ErrUndecodableImage is returned when the data is not a supported image.
	ErrUndecodableImage = errors.New("invalid image data")
)

// formats the embedding server accepts as-is
var passthroughFormats = map[string]bool{"jpeg": true, "png": true}

// DecodeDataURL returns the bytes of a browser data URL
// ("data:image/jpeg;base64,...") or of a bare base64 string.
func DecodeDataURL(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrEmptyImage
	}

	if strings.HasPrefix(s, "data:") {
		header, payload, ok := strings.Cut(s, ",")
		if !ok {
			return nil, fmt.Errorf("%w: malformed data URL", ErrUndecodableImage)
		}
		if !strings.HasSuffix(header, ";base64") {
			return nil, fmt.Errorf("%w: data URL is not base64 encoded", ErrUndecodableImage)
		}
		s = payload
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		// Some clients strip the padding.
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUndecodableImage, err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	return data, nil
}

// PrepareImage checks that data is a decodable image and makes it suitable
// for upload: frames larger than maxSide on either axis are downscaled, and
// formats other than JPEG and PNG are re-encoded as JPEG. A maxSide of 0
// disables downscaling.
func PrepareImage(data []byte, maxSide int) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUndecodableImage, err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrUndecodableImage)
	}

	fits := maxSide <= 0 || (width <= maxSide && height <= maxSide)
	if fits && passthroughFormats[format] {
		return data, nil
	}

	out := img
	if !fits {
		var newWidth, newHeight int
		if width > height {
			newWidth = maxSide
			newHeight = max(1, int(float64(height)*float64(maxSide)/float64(width)))
		} else {
			newHeight = maxSide
			newWidth = max(1, int(float64(width)*float64(maxSide)/float64(height)))
		}
		resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
		draw.BiLinear.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
		out = resized
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
