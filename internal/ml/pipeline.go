// Package ml implements the trained scoring pipelines: feature preprocessing,
// the two classifier families, and the serialized artifact format consumed by
// the serving cascade. No ML library in the ecosystem covers sklearn-style
// pipelines with grid search, so the estimators live here; numerics lean on
// gonum where it helps.
package ml

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/funil-digital/leadscore/internal/feature"
)

// Preprocessor turns a feature row into the dense vector a classifier expects.
// It is fitted on the training split only and frozen inside the artifact.
//
// Numeric columns: NaN imputed with the fitted median, optionally standardized.
// Categorical columns: empty values imputed with the fitted mode, then one-hot
// encoded; categories unseen at fit time encode as an all-zero block.
type Preprocessor struct {
	Scale      bool
	Medians    []float64
	Means      []float64
	Stds       []float64
	Categories [][]string
	Modes      []string
}

// FitPreprocessor learns imputation, scaling, and encoding parameters from the
// given rows.
func FitPreprocessor(rows []feature.Row, scale bool) *Preprocessor {
	numCols := len(feature.NumericColumns)
	catCols := len(feature.CategoricalColumns)

	p := &Preprocessor{
		Scale:      scale,
		Medians:    make([]float64, numCols),
		Means:      make([]float64, numCols),
		Stds:       make([]float64, numCols),
		Categories: make([][]string, catCols),
		Modes:      make([]string, catCols),
	}

	for j := 0; j < numCols; j++ {
		var col []float64
		for _, r := range rows {
			if v := r.Numeric()[j]; !math.IsNaN(v) {
				col = append(col, v)
			}
		}
		p.Medians[j] = median(col)

		var sum, sumSq float64
		n := float64(len(col))
		for _, v := range col {
			sum += v
		}
		if n > 0 {
			p.Means[j] = sum / n
		}
		for _, v := range col {
			d := v - p.Means[j]
			sumSq += d * d
		}
		if n > 0 {
			p.Stds[j] = math.Sqrt(sumSq / n)
		}
		if p.Stds[j] == 0 {
			p.Stds[j] = 1
		}
	}

	for j := 0; j < catCols; j++ {
		counts := make(map[string]int)
		for _, r := range rows {
			if v := r.Categorical()[j]; v != "" {
				counts[v]++
			}
		}
		cats := make([]string, 0, len(counts))
		for v := range counts {
			cats = append(cats, v)
		}
		sort.Strings(cats)
		p.Categories[j] = cats

		best, bestCount := "", -1
		for _, v := range cats {
			if counts[v] > bestCount {
				best, bestCount = v, counts[v]
			}
		}
		p.Modes[j] = best
	}

	return p
}

// Width returns the length of vectors produced by Transform.
func (p *Preprocessor) Width() int {
	w := len(p.Medians)
	for _, cats := range p.Categories {
		w += len(cats)
	}
	return w
}

// Transform encodes one row with the fitted parameters.
func (p *Preprocessor) Transform(r feature.Row) []float64 {
	out := make([]float64, 0, p.Width())

	for j, v := range r.Numeric() {
		if math.IsNaN(v) {
			v = p.Medians[j]
		}
		if p.Scale {
			v = (v - p.Means[j]) / p.Stds[j]
		}
		out = append(out, v)
	}

	for j, v := range r.Categorical() {
		if v == "" {
			v = p.Modes[j]
		}
		block := make([]float64, len(p.Categories[j]))
		for k, cat := range p.Categories[j] {
			if v == cat {
				block[k] = 1
				break
			}
		}
		out = append(out, block...)
	}

	return out
}

// TransformAll encodes a batch of rows.
func (p *Preprocessor) TransformAll(rows []feature.Row) [][]float64 {
	out := make([][]float64, len(rows))
	for i, r := range rows {
		out[i] = p.Transform(r)
	}
	return out
}

func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	s := append([]float64(nil), vals...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 0 {
		return (s[mid-1] + s[mid]) / 2
	}
	return s[mid]
}

// classWeights returns per-class sample weights. Balanced weighting follows
// the sklearn convention n / (k * n_c).
func classWeights(y []int, balanced bool) (w0, w1 float64, err error) {
	var n0, n1 int
	for _, label := range y {
		switch label {
		case 0:
			n0++
		case 1:
			n1++
		default:
			return 0, 0, eris.Errorf("ml: label %d is not binary", label)
		}
	}
	if n0 == 0 || n1 == 0 {
		return 0, 0, eris.New("ml: training data has a single class")
	}
	if !balanced {
		return 1, 1, nil
	}
	n := float64(n0 + n1)
	return n / (2 * float64(n0)), n / (2 * float64(n1)), nil
}

func clampProb(p float64) float64 {
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
