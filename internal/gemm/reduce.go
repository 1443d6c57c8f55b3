package gemm

// vectorBlockBytes is the UB access granule.
const vectorBlockBytes = 32

// reduceProbe is the element count used to turn scratch bytes into a
// per-element width.
const reduceProbe = BlockQuantum * BlockQuantum

// ReduceScratchBytes sizes the accumulation scratch a reduction over extent
// elements of dtype needs: one block per block-sized group plus one block for
// the running partial.
func ReduceScratchBytes(dtype Dtype, extent int) (int, error) {
	switch dtype {
	case Float16, Float32, Int32:
		perBlock := vectorBlockBytes / dtype.Bytes()
		return (ceilDiv(max(extent, 1), perBlock) + 1) * vectorBlockBytes, nil
	default:
		return 0, &UnsupportedDtypeError{Dtype: dtype, Op: "reduce"}
	}
}
