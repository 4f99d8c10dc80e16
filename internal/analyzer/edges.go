package analyzer

import (
	"image"

	"golang.org/x/image/draw"
)

// EdgeDetector groups Sobel edges into blocks: edges are thickened until
// neighbouring glyphs touch, then every connected blob becomes a region.
type EdgeDetector struct {
	MinArea     int     // px², smaller blobs are noise
	MaxCoverage float64 // blobs covering more of the page are the page itself
	Threshold   int     // gradient magnitude
	Radius      int     // dilation radius
	Passes      int
}

func NewEdgeDetector() *EdgeDetector {
	return &EdgeDetector{
		MinArea:     500,
		MaxCoverage: 0.9,
		Threshold:   30,
		Radius:      2,
		Passes:      2,
	}
}

func (d *EdgeDetector) Detect(img image.Image) ([]Region, error) {
	b := img.Bounds()
	if b.Dx() < 3 || b.Dy() < 3 {
		return nil, nil
	}
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)

	edges := sobel(gray, d.Threshold)
	mask := edges
	for i := 0; i < d.Passes; i++ {
		mask = dilate(mask, gray.Rect.Dx(), gray.Rect.Dy(), d.Radius)
	}

	pageArea := float64(b.Dx() * b.Dy())
	var regions []Region
	for _, c := range components(mask, b.Dx(), b.Dy()) {
		area := c.rect.Dx() * c.rect.Dy()
		if area < d.MinArea || float64(area) > d.MaxCoverage*pageArea {
			continue
		}
		regions = append(regions, Region{
			Rect:    c.rect.Add(b.Min),
			Density: float64(countIn(edges, b.Dx(), c.rect)) / float64(area),
		})
	}
	return regions, nil
}

// sobel marks pixels whose gradient magnitude exceeds threshold.
func sobel(g *image.Gray, threshold int) []bool {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	out := make([]bool, w*h)
	t2 := threshold * threshold
	at := func(x, y int) int { return int(g.Pix[y*g.Stride+x]) }

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gx := at(x+1, y-1) + 2*at(x+1, y) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x-1, y) - at(x-1, y+1)
			gy := at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1)
			out[y*w+x] = gx*gx+gy*gy > t2
		}
	}
	return out
}

// dilate grows set pixels by r in both directions, as two 1-D passes.
func dilate(in []bool, w, h, r int) []bool {
	if r <= 0 {
		return in
	}
	tmp := make([]bool, len(in))
	for y := 0; y < h; y++ {
		row := in[y*w : (y+1)*w]
		for x := 0; x < w; x++ {
			if !row[x] {
				continue
			}
			for dx := max(0, x-r); dx <= min(w-1, x+r); dx++ {
				tmp[y*w+dx] = true
			}
		}
	}
	out := make([]bool, len(in))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !tmp[y*w+x] {
				continue
			}
			for dy := max(0, y-r); dy <= min(h-1, y+r); dy++ {
				out[dy*w+x] = true
			}
		}
	}
	return out
}

type component struct {
	rect image.Rectangle
}

// components returns the bounding boxes of 4-connected set pixels in scan
// order.
func components(mask []bool, w, h int) []component {
	seen := make([]bool, len(mask))
	var out []component
	var stack []int

	for start, set := range mask {
		if !set || seen[start] {
			continue
		}
		minX, minY := start%w, start/w
		maxX, maxY := minX, minY
		seen[start] = true
		stack = append(stack[:0], start)

		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := i%w, i/w
			minX, maxX = min(minX, x), max(maxX, x)
			minY, maxY = min(minY, y), max(maxY, y)

			for _, n := range [4]int{i - 1, i + 1, i - w, i + w} {
				if n < 0 || n >= len(mask) || seen[n] || !mask[n] {
					continue
				}
				// no wrapping across rows
				if (n == i-1 || n == i+1) && n/w != y {
					continue
				}
				seen[n] = true
				stack = append(stack, n)
			}
		}
		out = append(out, component{rect: image.Rect(minX, minY, maxX+1, maxY+1)})
	}
	return out
}

func countIn(set []bool, w int, r image.Rectangle) int {
	n := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if set[y*w+x] {
				n++
			}
		}
	}
	return n
}
