package index

import "math"

// Default BM25 parameters.
const (
	DefaultK1 = 1.5
	DefaultB  = 0.75
)

// Params carries the BM25 constants and corpus statistics a score
// computation runs against.
type Params struct {
	K1    float64
	B     float64
	N     int
	AvgDL float64
}

// IDF computes log(((N - df + 0.5) / (df + 0.5)) + 1).
func IDF(n int, df uint32) float64 {
	return math.Log((float64(n)-float64(df)+0.5)/(float64(df)+0.5) + 1)
}

// Score computes tf * idf / (tf + norm) where
// norm = k1 * (1 - b + b * len/avgdl). Documents with zero length never
// reach here (they carry no postings); a zero avgdl therefore only occurs
// while the corpus is empty and degrades the norm to k1 * (1 - b).
func Score(tf, docLen uint32, idf float64, p Params) float64 {
	ratio := 0.0
	if p.AvgDL > 0 {
		ratio = float64(docLen) / p.AvgDL
	}
	norm := p.K1 * (1 - p.B + p.B*ratio)
	return float64(tf) * idf / (float64(tf) + norm)
}
