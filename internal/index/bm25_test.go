package index

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDF(t *testing.T) {
	// log(((10 - 2 + 0.5) / (2 + 0.5)) + 1) = log(4.4)
	assert.InDelta(t, math.Log(4.4), IDF(10, 2), 1e-12)
}

func TestIDFNeverNegative(t *testing.T) {
	// A term present in every document still gets a small positive idf
	// because of the +1 inside the log.
	idf := IDF(5, 5)
	assert.Greater(t, idf, 0.0)
}

func TestScore(t *testing.T) {
	p := Params{K1: 1.5, B: 0.75, N: 10, AvgDL: 8}
	idf := IDF(p.N, 3)
	// norm = 1.5 * (1 - 0.75 + 0.75 * 4/8) = 0.9375
	want := 2 * idf / (2 + 0.9375)
	assert.InDelta(t, want, Score(2, 4, idf, p), 1e-12)
}

func TestScoreZeroAvgDL(t *testing.T) {
	p := Params{K1: 1.5, B: 0.75, N: 1, AvgDL: 0}
	idf := IDF(1, 1)
	// ratio collapses to zero: norm = k1 * (1 - b)
	want := 1 * idf / (1 + 1.5*0.25)
	assert.InDelta(t, want, Score(1, 0, idf, p), 1e-12)
}

func TestScoreGrowsWithTF(t *testing.T) {
	p := Params{K1: 1.5, B: 0.75, N: 100, AvgDL: 10}
	idf := IDF(p.N, 10)
	s1 := Score(1, 10, idf, p)
	s2 := Score(2, 10, idf, p)
	s5 := Score(5, 10, idf, p)
	assert.Less(t, s1, s2)
	assert.Less(t, s2, s5)
	// Saturation: the score never exceeds idf.
	assert.Less(t, s5, idf)
}

func TestScorePenalisesLongDocuments(t *testing.T) {
	p := Params{K1: 1.5, B: 0.75, N: 100, AvgDL: 10}
	idf := IDF(p.N, 10)
	short := Score(2, 5, idf, p)
	long := Score(2, 50, idf, p)
	assert.Greater(t, short, long)
}
