package storage

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/okapisearch/okapi/internal/index"
)

// Score entries are persisted as a little-endian blob: u32 count, count
// doc ids (u32), count scores (f32). Struct-of-arrays, same layout as the
// in-memory entry.

const entryHeaderSize = 4

func encodeScoreEntry(e *index.ScoreEntry) []byte {
	n := len(e.Docs)
	buf := make([]byte, entryHeaderSize+n*8)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(n))
	off := entryHeaderSize
	for _, d := range e.Docs {
		binary.LittleEndian.PutUint32(buf[off:], d)
		off += 4
	}
	for _, s := range e.Scores {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(s))
		off += 4
	}
	return buf
}

func decodeScoreEntry(buf []byte) (*index.ScoreEntry, error) {
	if len(buf) < entryHeaderSize {
		return nil, fmt.Errorf("score entry blob too short: %d bytes", len(buf))
	}
	n := int(binary.LittleEndian.Uint32(buf[0:4]))
	if len(buf) != entryHeaderSize+n*8 {
		return nil, fmt.Errorf("score entry blob length mismatch: header says %d docs, got %d bytes", n, len(buf))
	}
	e := &index.ScoreEntry{
		Docs:   make([]uint32, n),
		Scores: make([]float32, n),
	}
	off := entryHeaderSize
	for i := 0; i < n; i++ {
		e.Docs[i] = binary.LittleEndian.Uint32(buf[off:])
		off += 4
	}
	for i := 0; i < n; i++ {
		e.Scores[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
		off += 4
	}
	return e, nil
}
