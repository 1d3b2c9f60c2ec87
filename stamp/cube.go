package stamp

import (
	"image"
	"math"
	"sync"
)

// CubeBand is the HSV acceptance band used to classify a cube cell as
// foreground. Hue is on a [0,1] circular scale; the band accepts hues below
// HueLowMax or above HueHighMin, with saturation above SaturationMin.
type CubeBand struct {
	HueLowMax     float64
	HueHighMin    float64
	SaturationMin float64
}

// DefaultBand returns the red-ink policy: hue within ±0.05 of the hue
// circle's origin and saturation above 0.3.
func DefaultBand() CubeBand {
	return CubeBand{HueLowMax: hueLowMax, HueHighMin: hueHighMin, SaturationMin: saturationMin}
}

func (b CubeBand) accepts(h, s float64) bool {
	return (h < b.HueLowMax || h > b.HueHighMin) && s > b.SaturationMin
}

// colorCube is a 3-D foreground lookup over a quantized RGB cube. Building
// it amortizes the HSV conversion and thresholding to dim^3 cells instead of
// once per pixel, and the built cube is immutable and shared.
type colorCube struct {
	dim int
	fg  []bool
}

func newColorCube(dim int, band CubeBand) *colorCube {
	c := &colorCube{dim: dim, fg: make([]bool, dim*dim*dim)}
	for r := 0; r < dim; r++ {
		for g := 0; g < dim; g++ {
			for b := 0; b < dim; b++ {
				// Classify by the cell's center color.
				h, s, _ := rgbToHSV(
					(float64(r)+0.5)/float64(dim),
					(float64(g)+0.5)/float64(dim),
					(float64(b)+0.5)/float64(dim),
				)
				c.fg[(r*dim+g)*dim+b] = band.accepts(h, s)
			}
		}
	}
	return c
}

var (
	redCubeOnce sync.Once
	redCube     *colorCube
)

func defaultCube() *colorCube {
	redCubeOnce.Do(func() {
		redCube = newColorCube(cubeDimension, DefaultBand())
	})
	return redCube
}

// foreground maps an 8-bit RGB triple to its nearest cell.
func (c *colorCube) foreground(r, g, b uint8) bool {
	d := c.dim
	ri := int(r) * d / 256
	gi := int(g) * d / 256
	bi := int(b) * d / 256
	return c.fg[(ri*d+gi)*d+bi]
}

// Mask is a per-pixel opacity field aligned to one image's extent. Values
// are 0 (background) or 255 (foreground) after cube classification.
type Mask struct {
	W, H  int
	Alpha []uint8
}

func (m *Mask) at(x, y int) uint8 { return m.Alpha[y*m.W+x] }

// mask classifies every pixel of src through the cube by nearest-cell
// mapping.
func (c *colorCube) mask(src *image.NRGBA) *Mask {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	m := &Mask{W: w, H: h, Alpha: make([]uint8, w*h)}
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+w*4]
		for x := 0; x < w; x++ {
			if c.foreground(row[x*4], row[x*4+1], row[x*4+2]) {
				m.Alpha[y*w+x] = 255
			}
		}
	}
	return m
}

// rgbToHSV converts r,g,b in [0,1] to HSV with hue on a [0,1] circular
// scale.
func rgbToHSV(r, g, b float64) (h, s, v float64) {
	max := math.Max(r, math.Max(g, b))
	min := math.Min(r, math.Min(g, b))
	v = max
	d := max - min
	if max > 0 {
		s = d / max
	}
	if d == 0 {
		return 0, s, v
	}
	switch max {
	case r:
		h = math.Mod((g-b)/d, 6) / 6
	case g:
		h = ((b-r)/d + 2) / 6
	default:
		h = ((r-g)/d + 4) / 6
	}
	if h < 0 {
		h++
	}
	return h, s, v
}
