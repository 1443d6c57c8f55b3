package gemm

import (
	"cmp"
	"slices"
)

// KnowledgeVersion identifies the revision of the curated tiling tables.
const KnowledgeVersion = "2026.10"

// ShapeKey identifies a problem in the curated tiling table.
type ShapeKey struct {
	M       int `json:"m" yaml:"m"`
	K       int `json:"k" yaml:"k"`
	N       int `json:"n" yaml:"n"`
	UBBytes int `json:"ub_bytes" yaml:"ub_bytes"`
}

// KnownTiling is one curated table entry.
type KnownTiling struct {
	Key    ShapeKey `json:"key"`
	Tiling string   `json:"tiling"`
}

// knownTilings overrides the oracle on low-core-count parts when B is stored
// transposed. Only shapes where the generic search was measured to
// underperform belong here.
var knownTilings = map[ShapeKey]string{
	{M: 1664, K: 4096, N: 1024, UBBytes: 2}: "176_320_176_176_80_176",
	{M: 1664, K: 1024, N: 4096, UBBytes: 2}: "176_256_128_176_64_128",
	{M: 1664, K: 4096, N: 4096, UBBytes: 2}: "176_320_256_176_80_256",
	{M: 3328, K: 4096, N: 1024, UBBytes: 2}: "208_256_128_208_64_128",
	{M: 832, K: 4096, N: 1024, UBBytes: 2}:  "208_256_176_208_64_176",
	{M: 1664, K: 1024, N: 1024, UBBytes: 4}: "176_128_176_176_64_176",
}

// shapeCorrections replaces the L0 tile for shapes whose resolved tiling is
// known to be wrong after the generic correction step.
var shapeCorrections = map[TileShape]TileShape{
	{M: 16, K: 4096, N: 16384}: {M: 16, K: 256, N: 256},
	{M: 4096, K: 1024, N: 16}:  {M: 256, K: 128, N: 16},
}

// LookupKnownTiling returns the curated tiling string for key.
func LookupKnownTiling(key ShapeKey) (string, bool) {
	s, ok := knownTilings[key]
	return s, ok
}

// KnownTilings lists the curated table sorted by shape.
func KnownTilings() []KnownTiling {
	out := make([]KnownTiling, 0, len(knownTilings))
	for k, v := range knownTilings {
		out = append(out, KnownTiling{Key: k, Tiling: v})
	}
	slices.SortFunc(out, func(a, b KnownTiling) int {
		return cmp.Or(
			cmp.Compare(a.Key.M, b.Key.M),
			cmp.Compare(a.Key.K, b.Key.K),
			cmp.Compare(a.Key.N, b.Key.N),
			cmp.Compare(a.Key.UBBytes, b.Key.UBBytes),
		)
	})
	return out
}
