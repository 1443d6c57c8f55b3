package gemm

import "fmt"

// CycleError reports a tensor that is reachable from its own inputs.
type CycleError struct {
	Tensor string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("tensor graph has a cycle through %q", e.Tensor)
}

// SortTensors orders ts so every tensor follows the tensors it reads.
// Tensors with no ordering constraint keep their listed order. Inputs that
// name no tensor in ts are ignored.
func SortTensors(ts []Tensor) ([]Tensor, error) {
	index := make(map[string]int, len(ts))
	for i, t := range ts {
		index[t.Name] = i
	}

	pending := make([]int, len(ts))
	readers := make([][]int, len(ts))
	for i, t := range ts {
		for _, in := range t.Inputs {
			j, ok := index[in]
			if !ok {
				continue
			}
			if j == i {
				return nil, &CycleError{Tensor: t.Name}
			}
			pending[i]++
			readers[j] = append(readers[j], i)
		}
	}

	out := make([]Tensor, 0, len(ts))
	done := make([]bool, len(ts))
	// Rescanning from the front after each placement keeps the listed order
	// among ready tensors. Graphs here are a handful of tensors.
	for len(out) < len(ts) {
		next := -1
		for i := range ts {
			if !done[i] && pending[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			for i := range ts {
				if !done[i] {
					return nil, &CycleError{Tensor: ts[i].Name}
				}
			}
		}
		done[next] = true
		out = append(out, ts[next])
		for _, r := range readers[next] {
			pending[r]--
		}
	}
	return out, nil
}
