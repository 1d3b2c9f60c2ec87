package stamp

import (
	"image"
	"image/color"
	"sort"

	"github.com/disintegration/imaging"

	"github.com/ygzhang/sealkit/raster"
)

// Point is an image coordinate normalized to [0,1] on both axes.
type Point struct{ X, Y float64 }

// Box is a normalized bounding rectangle.
type Box struct{ MinX, MinY, MaxX, MaxY float64 }

// Contour is one traced boundary curve.
type Contour struct {
	Points []Point
	// Area is the enclosed area as a fraction of the image area.
	Area float64
}

// ContourSet carries every traced contour sorted by enclosed area, the
// bounding box of the largest one, and a confidence score derived from it.
type ContourSet struct {
	Contours   []Contour
	Bounds     Box
	Confidence float64
}

// EdgeOptions configures boundary detection.
type EdgeOptions struct {
	// ContrastBoost is applied to the grayscale image before thresholding.
	ContrastBoost float64
	// DarkOnLight selects which side of the threshold is traced. The
	// default (false) traces light regions against a darker surround.
	DarkOnLight bool
}

func defaultEdgeOptions() EdgeOptions {
	return EdgeOptions{ContrastBoost: edgeContrastBoost, DarkOnLight: false}
}

// DetectEdges runs boundary detection with the fixed contrast boost and
// polarity and returns the highest-confidence contour set. A zero-contour
// result is reported as ErrNoEdgesDetected and is a normal outcome, not a
// pipeline failure.
func DetectEdges(img image.Image) (*ContourSet, error) {
	return detectEdges(img, defaultEdgeOptions())
}

func detectEdges(img image.Image, opts EdgeOptions) (*ContourSet, error) {
	if err := raster.Validate(img); err != nil {
		return nil, err
	}
	fg, w, h := binarize(img, opts)
	contours := traceContours(fg, w, h)
	if len(contours) == 0 {
		return nil, ErrNoEdgesDetected
	}
	best := contours[0]
	conf := best.Area
	if conf > 1 {
		conf = 1
	}
	return &ContourSet{Contours: contours, Bounds: boundsOf(best), Confidence: conf}, nil
}

// binarize produces the boolean foreground field: grayscale, linear contrast
// scale about mid-gray, then a midpoint threshold. A uniform image yields no
// foreground.
func binarize(img image.Image, opts EdgeOptions) ([]bool, int, int) {
	gray := imaging.Grayscale(img)
	if opts.ContrastBoost > 0 && opts.ContrastBoost != 1 {
		boost := opts.ContrastBoost
		gray = imaging.AdjustFunc(gray, func(c color.NRGBA) color.NRGBA {
			v := scaleAboutMidGray(c.R, boost)
			return color.NRGBA{R: v, G: v, B: v, A: c.A}
		})
	}
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	lum := make([]uint8, w*h)
	lo, hi := uint8(255), uint8(0)
	for y := 0; y < h; y++ {
		row := gray.Pix[y*gray.Stride:]
		for x := 0; x < w; x++ {
			v := row[x*4]
			lum[y*w+x] = v
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}
	thr := uint8((int(lo) + int(hi)) / 2)
	fg := make([]bool, w*h)
	for i, v := range lum {
		if opts.DarkOnLight {
			fg[i] = v < thr
		} else {
			fg[i] = v > thr
		}
	}
	return fg, w, h
}

func scaleAboutMidGray(v uint8, boost float64) uint8 {
	f := (float64(v)/255-0.5)*boost + 0.5
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	return uint8(f*255 + 0.5)
}

// Moore neighbourhood in clockwise order: W, NW, N, NE, E, SE, S, SW.
var mooreSteps = [8][2]int{{-1, 0}, {-1, -1}, {0, -1}, {1, -1}, {1, 0}, {1, 1}, {0, 1}, {-1, 1}}

// traceContours walks the foreground field row-major and traces the boundary
// of every region whose west neighbour is background, using Moore-neighbour
// following. Traced pixels are claimed so a boundary is walked once.
func traceContours(fg []bool, w, h int) []Contour {
	at := func(x, y int) bool {
		return x >= 0 && x < w && y >= 0 && y < h && fg[y*w+x]
	}
	claimed := make([]bool, w*h)
	var out []Contour
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			idx := y*w + x
			if !fg[idx] || claimed[idx] || at(x-1, y) {
				continue
			}
			pts := traceFrom(x, y, at, w, h)
			for _, p := range pts {
				claimed[p[1]*w+p[0]] = true
			}
			if len(pts) < minContourPoints {
				continue
			}
			out = append(out, makeContour(pts, w, h))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Area > out[j].Area })
	return out
}

func traceFrom(sx, sy int, at func(int, int) bool, w, h int) [][2]int {
	pts := [][2]int{{sx, sy}}
	cx, cy := sx, sy
	dir := 0 // entered from the west
	limit := 4 * w * h
	for steps := 0; steps < limit; steps++ {
		found := -1
		for i := 1; i <= 8; i++ {
			d := (dir + i) % 8
			nx, ny := cx+mooreSteps[d][0], cy+mooreSteps[d][1]
			if at(nx, ny) {
				found = d
				cx, cy = nx, ny
				break
			}
		}
		if found < 0 {
			break // isolated pixel
		}
		if cx == sx && cy == sy {
			break
		}
		pts = append(pts, [2]int{cx, cy})
		// Resume scanning from the last background neighbour, expressed in
		// the new pixel's frame.
		dir = (found + 6) % 8
	}
	return pts
}

func makeContour(pts [][2]int, w, h int) Contour {
	c := Contour{Points: make([]Point, len(pts))}
	for i, p := range pts {
		c.Points[i] = Point{X: float64(p[0]) / float64(w), Y: float64(p[1]) / float64(h)}
	}
	// Shoelace over the pixel polygon, normalized to the image area.
	var area2 float64
	for i := range pts {
		j := (i + 1) % len(pts)
		area2 += float64(pts[i][0]*pts[j][1] - pts[j][0]*pts[i][1])
	}
	if area2 < 0 {
		area2 = -area2
	}
	c.Area = area2 / 2 / float64(w*h)
	return c
}

func boundsOf(c Contour) Box {
	b := Box{MinX: 1, MinY: 1}
	for _, p := range c.Points {
		if p.X < b.MinX {
			b.MinX = p.X
		}
		if p.Y < b.MinY {
			b.MinY = p.Y
		}
		if p.X > b.MaxX {
			b.MaxX = p.X
		}
		if p.Y > b.MaxY {
			b.MaxY = p.Y
		}
	}
	return b
}
