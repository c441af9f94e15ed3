package embedding

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/wiktor-jurek/stewthius/internal/model"
)

// ProjectOptions tunes the 2D layout. Zero values select the defaults.
type ProjectOptions struct {
	Neighbors      int     // capped at n-1, default 15
	MinDist        float64 // default 0.5
	Spread         float64 // default 2.5
	Epochs         int     // default 400
	NegativeSample int     // negative samples per positive edge, default 5
	LearningRate   float64 // default 1
	Seed           uint64  // default 42
}

// DefaultProjectOptions returns the layout parameters used by the map view
func DefaultProjectOptions() ProjectOptions {
	return ProjectOptions{
		Neighbors:      15,
		MinDist:        0.5,
		Spread:         2.5,
		Epochs:         400,
		NegativeSample: 5,
		LearningRate:   1,
		Seed:           42,
	}
}

func (o ProjectOptions) withDefaults() ProjectOptions {
	d := DefaultProjectOptions()
	if o.Neighbors <= 0 {
		o.Neighbors = d.Neighbors
	}
	if o.MinDist <= 0 {
		o.MinDist = d.MinDist
	}
	if o.Spread <= 0 {
		o.Spread = d.Spread
	}
	if o.Epochs <= 0 {
		o.Epochs = d.Epochs
	}
	if o.NegativeSample <= 0 {
		o.NegativeSample = d.NegativeSample
	}
	if o.LearningRate <= 0 {
		o.LearningRate = d.LearningRate
	}
	if o.Seed == 0 {
		o.Seed = d.Seed
	}
	return o
}

// Project lays out vectors in the unit square with a neighbour-graph embedding driven by
// cosine distance. Output i belongs to vectors[i]. The layout is reproducible for a fixed
// seed only.
func Project(vectors [][]float32, opts ProjectOptions) []model.Point {
	n := len(vectors)
	switch n {
	case 0:
		return []model.Point{}
	case 1:
		return []model.Point{{X: 0.5, Y: 0.5}}
	}

	opts = opts.withDefaults()
	k := min(opts.Neighbors, n-1)
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed))

	dist := distanceMatrix(vectors)
	knnIdx, knnDist := nearestNeighbours(dist, k)
	graph := fuzzyGraph(knnIdx, knnDist, k)
	a, b := fitCurve(opts.Spread, opts.MinDist)

	layout := make([][2]float64, n)
	for i := range layout {
		layout[i] = [2]float64{rng.Float64()*20 - 10, rng.Float64()*20 - 10}
	}
	optimizeLayout(layout, graph, a, b, opts, rng)

	return normalize(layout)
}

func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range min(len(a), len(b)) {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

func distanceMatrix(vectors [][]float32) [][]float64 {
	n := len(vectors)
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := max(cosineDistance(vectors[i], vectors[j]), 0)
			dist[i][j] = d
			dist[j][i] = d
		}
	}
	return dist
}

// nearestNeighbours returns, per point, the k closest other points in ascending distance
func nearestNeighbours(dist [][]float64, k int) ([][]int, [][]float64) {
	n := len(dist)
	idx := make([][]int, n)
	ds := make([][]float64, n)
	for i := 0; i < n; i++ {
		others := make([]int, 0, n-1)
		for j := 0; j < n; j++ {
			if j != i {
				others = append(others, j)
			}
		}
		sort.SliceStable(others, func(x, y int) bool {
			return dist[i][others[x]] < dist[i][others[y]]
		})
		idx[i] = others[:k]
		ds[i] = make([]float64, k)
		for m, j := range idx[i] {
			ds[i][m] = dist[i][j]
		}
	}
	return idx, ds
}

type edge struct {
	head, tail int
	weight     float64
}

const (
	smoothIterations = 64
	smoothTolerance  = 1e-5
	minKDistScale    = 1e-3
)

// fuzzyGraph computes the symmetric membership strengths of the kNN graph
func fuzzyGraph(knnIdx [][]int, knnDist [][]float64, k int) []edge {
	n := len(knnIdx)
	target := math.Log2(float64(k))

	var meanAll float64
	for i := range knnDist {
		for _, d := range knnDist[i] {
			meanAll += d
		}
	}
	meanAll /= float64(n * k)

	directed := make([]map[int]float64, n)
	for i := 0; i < n; i++ {
		rho := 0.0
		for _, d := range knnDist[i] {
			if d > 0 {
				rho = d
				break
			}
		}

		lo, hi, sigma := 0.0, math.Inf(1), 1.0
		for range smoothIterations {
			psum := 0.0
			for _, d := range knnDist[i] {
				if r := d - rho; r > 0 {
					psum += math.Exp(-r / sigma)
				} else {
					psum++
				}
			}
			if math.Abs(psum-target) < smoothTolerance {
				break
			}
			if psum > target {
				hi = sigma
				sigma = (lo + hi) / 2
			} else {
				lo = sigma
				if math.IsInf(hi, 1) {
					sigma *= 2
				} else {
					sigma = (lo + hi) / 2
				}
			}
		}

		mean := meanAll
		if rho > 0 {
			mean = 0
			for _, d := range knnDist[i] {
				mean += d
			}
			mean /= float64(k)
		}
		sigma = max(sigma, minKDistScale*mean, 1e-12)

		directed[i] = make(map[int]float64, k)
		for m, j := range knnIdx[i] {
			w := 1.0
			if r := knnDist[i][m] - rho; r > 0 {
				w = math.Exp(-r / sigma)
			}
			directed[i][j] = w
		}
	}

	var edges []edge
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			a, b := directed[i][j], directed[j][i]
			if w := a + b - a*b; w > 0 {
				edges = append(edges, edge{head: i, tail: j, weight: w})
			}
		}
	}
	return edges
}

// fitCurve finds a, b so that 1/(1+a*d^(2b)) approximates the target membership curve
// defined by spread and minDist
func fitCurve(spread, minDist float64) (float64, float64) {
	const samples = 300
	xs := make([]float64, samples)
	ys := make([]float64, samples)
	for i := range xs {
		x := 3 * spread * float64(i) / float64(samples-1)
		xs[i] = x
		if x < minDist {
			ys[i] = 1
		} else {
			ys[i] = math.Exp(-(x - minDist) / spread)
		}
	}

	loss := func(a, b float64) float64 {
		var s float64
		for i, x := range xs {
			r := 1/(1+a*math.Pow(x, 2*b)) - ys[i]
			s += r * r
		}
		return s
	}

	a, b := 1.0, 1.0
	best := loss(a, b)
	stepA, stepB := 0.5, 0.25
	for range 200 {
		improved := false
		for _, c := range [][2]float64{
			{a + stepA, b}, {a - stepA, b}, {a, b + stepB}, {a, b - stepB},
		} {
			if c[0] <= 0 || c[1] <= 0 {
				continue
			}
			if l := loss(c[0], c[1]); l < best {
				best, a, b = l, c[0], c[1]
				improved = true
			}
		}
		if !improved {
			stepA /= 2
			stepB /= 2
			if stepA < 1e-6 && stepB < 1e-6 {
				break
			}
		}
	}
	return a, b
}

func clip(v float64) float64 {
	return max(-4, min(4, v))
}

// optimizeLayout runs stochastic gradient descent with negative sampling over the graph
func optimizeLayout(y [][2]float64, edges []edge, a, b float64, opts ProjectOptions, rng *rand.Rand) {
	if len(edges) == 0 {
		return
	}
	n := len(y)
	epochs := float64(opts.Epochs)

	maxW := 0.0
	for _, e := range edges {
		maxW = max(maxW, e.weight)
	}
	kept := edges[:0]
	for _, e := range edges {
		if e.weight >= maxW/epochs {
			kept = append(kept, e)
		}
	}
	edges = kept

	perSample := make([]float64, len(edges))
	nextSample := make([]float64, len(edges))
	perNegative := make([]float64, len(edges))
	nextNegative := make([]float64, len(edges))
	for i, e := range edges {
		perSample[i] = maxW / e.weight
		nextSample[i] = perSample[i]
		perNegative[i] = perSample[i] / float64(opts.NegativeSample)
		nextNegative[i] = perNegative[i]
	}

	for epoch := 0; epoch < opts.Epochs; epoch++ {
		alpha := opts.LearningRate * (1 - float64(epoch)/epochs)
		current := float64(epoch)

		for i, e := range edges {
			if nextSample[i] > current {
				continue
			}
			head, tail := &y[e.head], &y[e.tail]

			d2 := sqDist(*head, *tail)
			if d2 > 0 {
				coeff := -2 * a * b * math.Pow(d2, b-1) / (a*math.Pow(d2, b) + 1)
				for d := 0; d < 2; d++ {
					g := clip(coeff * (head[d] - tail[d]))
					head[d] += g * alpha
					tail[d] -= g * alpha
				}
			}
			nextSample[i] += perSample[i]

			negatives := int((current - nextNegative[i]) / perNegative[i])
			for range max(negatives, 0) {
				other := rng.IntN(n)
				if other == e.head {
					continue
				}
				neg := y[other]
				d2 := sqDist(*head, neg)
				for d := 0; d < 2; d++ {
					g := 4.0
					if d2 > 0 {
						coeff := 2 * b / ((0.001 + d2) * (a*math.Pow(d2, b) + 1))
						g = clip(coeff * (head[d] - neg[d]))
					}
					head[d] += g * alpha
				}
			}
			nextNegative[i] += float64(max(negatives, 0)) * perNegative[i]
		}
	}
}

func sqDist(p, q [2]float64) float64 {
	dx, dy := p[0]-q[0], p[1]-q[1]
	return dx*dx + dy*dy
}

// normalize min-max scales each axis into [0,1], treating a zero range as 1
func normalize(y [][2]float64) []model.Point {
	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, p := range y {
		minX, maxX = min(minX, p[0]), max(maxX, p[0])
		minY, maxY = min(minY, p[1]), max(maxY, p[1])
	}
	rangeX, rangeY := maxX-minX, maxY-minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}

	out := make([]model.Point, len(y))
	for i, p := range y {
		out[i] = model.Point{
			X: clamp01((p[0] - minX) / rangeX),
			Y: clamp01((p[1] - minY) / rangeY),
		}
	}
	return out
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0.5
	}
	return max(0, min(1, v))
}
