package gemm

// Validate checks that l0 fits in l1, l1 fits in the problem, and every tile
// dimension is a whole number of block quanta. A dimension of 1 is allowed
// only where the problem dimension is also 1.
func Validate(problem, l1, l0 TileShape) error {
	if err := checkProblem(problem); err != nil {
		return err
	}
	dims := [...]struct {
		name      string
		p, t1, t0 int
	}{
		{"m", problem.M, l1.M, l0.M},
		{"k", problem.K, l1.K, l0.K},
		{"n", problem.N, l1.N, l0.N},
	}
	for _, d := range dims {
		if d.t1 <= 0 {
			return &InvalidTilingError{Level: "L1", Dim: d.name, Value: d.t1, Reason: "must be positive"}
		}
		if d.t0 <= 0 {
			return &InvalidTilingError{Level: "L0", Dim: d.name, Value: d.t0, Reason: "must be positive"}
		}
		if d.t1 > d.p {
			return &InvalidTilingError{Level: "L1", Dim: d.name, Value: d.t1, Limit: d.p, Reason: "exceeds problem dimension"}
		}
		if d.t0 > d.t1 {
			return &InvalidTilingError{Level: "L0", Dim: d.name, Value: d.t0, Limit: d.t1, Reason: "exceeds L1 tile"}
		}
		if !onQuantum(d.p, d.t1) {
			return &InvalidTilingError{Level: "L1", Dim: d.name, Value: d.t1, Limit: BlockQuantum, Reason: "is not a multiple of the block quantum"}
		}
		if !onQuantum(d.p, d.t0) {
			return &InvalidTilingError{Level: "L0", Dim: d.name, Value: d.t0, Limit: BlockQuantum, Reason: "is not a multiple of the block quantum"}
		}
	}
	return nil
}

func onQuantum(problem, tile int) bool {
	if tile%BlockQuantum == 0 {
		return true
	}
	return problem == 1 && tile == 1
}

func checkProblem(p TileShape) error {
	for _, d := range [...]struct {
		name string
		v    int
	}{{"M", p.M}, {"K", p.K}, {"N", p.N}} {
		if d.v <= 0 {
			return &InvalidTilingError{Level: "problem", Dim: d.name, Value: d.v, Reason: "must be positive"}
		}
	}
	return nil
}
