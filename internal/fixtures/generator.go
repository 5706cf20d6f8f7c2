package fixtures

import (
	"encoding/binary"
	mathrand "math/rand/v2"
)

var regions = []string{"us", "eu", "apac", "latam", "mea", "ca"}

// startTSMS is the timestamp of row 0; rows are spaced one minute apart.
const startTSMS int64 = 1_700_000_000_000

// Row is one record of the narrow sales dataset.
type Row struct {
	ID       int64  `json:"id"`
	TSMS     int64  `json:"ts_ms"`
	Region   string `json:"region"`
	ValueI64 int64  `json:"value_i64"`
	Flag     bool   `json:"flag"`
}

// GenerateRows produces the dataset for a seed. Output is fully determined
// by seed and count, so fixture fingerprints are stable across hosts.
func GenerateRows(seed uint64, count int) []Row {
	var key [32]byte
	binary.LittleEndian.PutUint64(key[:8], seed)
	rng := mathrand.New(mathrand.NewChaCha8(key))

	out := make([]Row, 0, count)
	for id := 0; id < count; id++ {
		regionIdx := rng.IntN(len(regions))
		skew := int64(regionIdx) * 7
		out = append(out, Row{
			ID:       int64(id),
			TSMS:     startTSMS + int64(id)*60_000,
			Region:   regions[regionIdx],
			ValueI64: rng.Int64N(55_000) - 5_000 + skew,
			Flag:     rng.Float64() < 0.35,
		})
	}
	return out
}
