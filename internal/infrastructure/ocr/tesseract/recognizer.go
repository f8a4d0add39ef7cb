package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

const minRecognizeHeight = 900

// client is the subset of *gosseract.Client the recognizer drives.
type client interface {
	SetLanguage(langs ...string) error
	SetImageFromBytes(data []byte) error
	Text() (string, error)
	Close() error
}

// Recognizer implements ports.TextRecognizer with Tesseract. Each call gets
// its own client; the images are small and calls are sequential.
type Recognizer struct {
	languages     []string
	clientFactory func() client
}

func NewRecognizer(languages []string) *Recognizer {
	langs := make([]string, 0, len(languages))
	for _, lang := range languages {
		if lang = strings.TrimSpace(lang); lang != "" {
			langs = append(langs, lang)
		}
	}
	if len(langs) == 0 {
		langs = []string{"eng"}
	}
	return &Recognizer{
		languages:     langs,
		clientFactory: func() client { return gosseract.NewClient() },
	}
}

func (r *Recognizer) Recognize(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := preprocess(path)
	if err != nil {
		data, err = os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read image: %w", err)
		}
	}

	c := r.clientFactory()
	defer c.Close()

	if err := c.SetLanguage(r.languages...); err != nil {
		return "", fmt.Errorf("set languages: %w", err)
	}
	if err := c.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return text, nil
}

// preprocess boosts legibility of phone photos: grayscale, more contrast,
// a light sharpen and an upscale for small captures.
func preprocess(path string) ([]byte, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	prepared := prepareImage(img)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, prepared, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}

func prepareImage(img image.Image) *image.NRGBA {
	gray := imaging.Grayscale(img)
	gray = imaging.AdjustContrast(gray, 15)
	gray = imaging.Sharpen(gray, 0.7)
	if gray.Bounds().Dy() < minRecognizeHeight {
		gray = imaging.Resize(gray, 0, 1300, imaging.Lanczos)
	}
	return gray
}
