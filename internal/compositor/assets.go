package compositor

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/webp"
)

// Assets are the decoded images a render uses. Either may be nil.
type Assets struct {
	Logo       image.Image
	Background image.Image
}

// LoadAssets decodes the logo and background images. An empty path leaves
// that asset unset.
func LoadAssets(logoPath, backgroundPath string) (Assets, error) {
	var a Assets
	var err error
	if logoPath != "" {
		if a.Logo, err = loadImage(logoPath); err != nil {
			return Assets{}, fmt.Errorf("loading logo: %w", err)
		}
	}
	if backgroundPath != "" {
		if a.Background, err = loadImage(backgroundPath); err != nil {
			return Assets{}, fmt.Errorf("loading background: %w", err)
		}
	}
	return a, nil
}

func loadImage(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeImage(data)
}

// DecodeImage decodes PNG, JPEG, GIF or WebP bytes.
func DecodeImage(data []byte) (image.Image, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("decoding image: empty %s", format)
	}
	return img, nil
}
