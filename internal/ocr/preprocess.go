package ocr

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	"image/png"

	_ "golang.org/x/image/bmp" // register decoder
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff" // register decoder
	_ "golang.org/x/image/webp" // register decoder

	"github.com/joseph-ayodele/idverify/constants"
	"github.com/joseph-ayodele/idverify/internal/common"
)

// DefaultWorkingWidth is the width every image is scaled to before recognition.
const DefaultWorkingWidth = 2000

// maxWorkingPixels bounds the resized canvas for extreme aspect ratios.
const maxWorkingPixels = 40_000_000

// maxSourcePixels bounds the decoded upload. Dimensions are read from the
// header first so a tiny file cannot claim a huge canvas.
const maxSourcePixels = 100_000_000

// Preprocess decodes an uploaded image and returns a PNG ready for the engine:
// grayscale, scaled to width (aspect preserved), binarized with Otsu's threshold.
func Preprocess(data []byte, width int) ([]byte, error) {
	if width <= 0 {
		width = DefaultWorkingWidth
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, common.NewAppError(constants.ErrCodeInvalidImage, "decode image header",
			fmt.Errorf("%w: %w", common.ErrInvalidImage, err))
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, common.NewAppError(constants.ErrCodeInvalidImage, fmt.Sprintf("empty %s image", format), common.ErrInvalidImage)
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxSourcePixels {
		return nil, common.NewAppError(constants.ErrCodeInvalidImage,
			fmt.Sprintf("%s image %dx%d exceeds %d pixels", format, cfg.Width, cfg.Height, maxSourcePixels), common.ErrInvalidImage)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, common.NewAppError(constants.ErrCodeInvalidImage, "decode image",
			fmt.Errorf("%w: %w", common.ErrInvalidImage, err))
	}
	b := src.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, common.NewAppError(constants.ErrCodeInvalidImage, fmt.Sprintf("empty %s image", format), common.ErrInvalidImage)
	}

	height := int(float64(b.Dy()) * float64(width) / float64(b.Dx()))
	height = max(height, 1)
	if width*height > maxWorkingPixels {
		return nil, common.NewAppError(constants.ErrCodeInvalidImage,
			fmt.Sprintf("image %dx%d too tall to scale", b.Dx(), b.Dy()), common.ErrInvalidImage)
	}

	gray := image.NewGray(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(gray, gray.Bounds(), src, b, draw.Src, nil)
	Binarize(gray)

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, gray); err != nil {
		return nil, common.WrapError(err, "encode png")
	}
	return buf.Bytes(), nil
}

// Binarize thresholds img in place at its Otsu level: pixels above it turn
// white, the rest black.
func Binarize(img *image.Gray) {
	t := OtsuThreshold(img)
	b := img.Bounds()
	for y := 0; y < b.Dy(); y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+b.Dx()]
		for i, v := range row {
			if v > t {
				row[i] = 0xff
			} else {
				row[i] = 0
			}
		}
	}
}

// OtsuThreshold returns the gray level that maximizes between-class variance.
func OtsuThreshold(img *image.Gray) uint8 {
	var hist [256]int
	b := img.Bounds()
	for y := 0; y < b.Dy(); y++ {
		for _, v := range img.Pix[y*img.Stride : y*img.Stride+b.Dx()] {
			hist[v]++
		}
	}
	total := b.Dx() * b.Dy()
	if total == 0 {
		return 0
	}

	var sum float64
	for i, n := range hist {
		sum += float64(i * n)
	}

	var (
		sumB     float64
		weightB  int
		best     float64
		selected uint8
	)
	for t := 0; t < 256; t++ {
		weightB += hist[t]
		if weightB == 0 {
			continue
		}
		weightF := total - weightB
		if weightF == 0 {
			break
		}
		sumB += float64(t * hist[t])
		meanB := sumB / float64(weightB)
		meanF := (sum - sumB) / float64(weightF)
		between := float64(weightB) * float64(weightF) * (meanB - meanF) * (meanB - meanF)
		if between > best {
			best = between
			selected = uint8(t)
		}
	}
	return selected
}
