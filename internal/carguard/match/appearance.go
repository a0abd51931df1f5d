package match

import (
	"image"
	"math"

	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/imaging"
)

// Hue/saturation histogram layout. Hue uses the 8-bit [0,180) range and
// saturation [0,256).
const (
	hueBins = 50
	satBins = 60
)

// HistogramScorer compares 2-D hue/saturation histograms by Pearson
// correlation, mapped from [-1,1] to [0,1].
type HistogramScorer struct{}

func (HistogramScorer) Similarity(a, b image.Image) float64 {
	c := correlation(hsHistogram(a), hsHistogram(b))
	return clamp01((c + 1) / 2)
}

func resize(img image.Image, side int) image.Image {
	if b := img.Bounds(); b.Dx() == side && b.Dy() == side {
		return img
	}
	return imaging.Resize(img, side)
}

func hsHistogram(img image.Image) []float64 {
	hist := make([]float64, hueBins*satBins)
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			h, s := hueSat(uint8(r>>8), uint8(g>>8), uint8(bl>>8))
			hb := int(h * hueBins / 180)
			sb := int(s * satBins / 256)
			if hb >= hueBins {
				hb = hueBins - 1
			}
			if sb >= satBins {
				sb = satBins - 1
			}
			hist[hb*satBins+sb]++
		}
	}
	return hist
}

// hueSat converts 8-bit RGB to hue in [0,180) and saturation in [0,255].
func hueSat(r, g, b uint8) (float64, float64) {
	rf, gf, bf := float64(r), float64(g), float64(b)
	hi := math.Max(rf, math.Max(gf, bf))
	lo := math.Min(rf, math.Min(gf, bf))
	delta := hi - lo

	var s float64
	if hi > 0 {
		s = delta / hi * 255
	}
	if delta == 0 {
		return 0, s
	}

	var h float64
	switch hi {
	case rf:
		h = 60 * (gf - bf) / delta
	case gf:
		h = 120 + 60*(bf-rf)/delta
	default:
		h = 240 + 60*(rf-gf)/delta
	}
	if h < 0 {
		h += 360
	}
	return h / 2, s
}

// correlation is Pearson's r over histogram bins. Two flat histograms
// compare as identical.
func correlation(a, b []float64) float64 {
	n := float64(len(a))
	var sa, sb float64
	for i := range a {
		sa += a[i]
		sb += b[i]
	}
	ma, mb := sa/n, sb/n

	var num, da, db float64
	for i := range a {
		xa, xb := a[i]-ma, b[i]-mb
		num += xa * xb
		da += xa * xa
		db += xb * xb
	}
	denom := math.Sqrt(da * db)
	if denom < 1e-12 {
		return 1
	}
	return num / denom
}
