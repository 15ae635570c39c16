package extract

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/cubebuddy/cubebuddy/internal/domain"
)

// Decode parses an encoded image. Raw bytes in any registered format are
// accepted, as are base64 data URLs such as a browser canvas produces.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", domain.ErrImageDecode)
	}
	if raw, ok, err := fromDataURL(data); ok {
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrImageDecode, err)
		}
		data = raw
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrImageDecode, err)
	}
	return img, nil
}

func fromDataURL(data []byte) ([]byte, bool, error) {
	const prefix = "data:"
	if !bytes.HasPrefix(data, []byte(prefix)) {
		return nil, false, nil
	}
	s := string(data)
	comma := strings.IndexByte(s, ',')
	if comma < 0 {
		return nil, true, fmt.Errorf("malformed data URL")
	}
	if !strings.HasSuffix(s[:comma], ";base64") {
		return nil, true, fmt.Errorf("data URL is not base64 encoded")
	}
	raw, err := base64.StdEncoding.DecodeString(s[comma+1:])
	return raw, true, err
}
