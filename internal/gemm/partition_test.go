package gemm

import (
	"math/bits"
	"testing"
)

func TestChooseCorePartitionExactFit(t *testing.T) {
	t.Parallel()

	if got := ChooseCorePartition(16, 16, 16, 1); got != (CorePartition{M: 1, N: 1}) {
		t.Fatalf("ChooseCorePartition(16,16,16,1) = %+v", got)
	}
	if got := ChooseCorePartition(64, 32, 128, 32); got != (CorePartition{M: 4, N: 2}) {
		t.Fatalf("every block gets a unit: got %+v", got)
	}
}

func TestChooseCorePartition32Cores(t *testing.T) {
	t.Parallel()

	got := ChooseCorePartition(1024, 1024, 1024, 32)
	if got.Cores() > 32 {
		t.Fatalf("partition %+v exceeds 32 cores", got)
	}
	// (4,8) and (8,4) tie; the first candidate found wins.
	if got != (CorePartition{M: 4, N: 8}) {
		t.Fatalf("ChooseCorePartition(1024,1024,1024,32) = %+v, want {4 8}", got)
	}
}

func TestChooseCorePartitionGEVM(t *testing.T) {
	t.Parallel()

	if got := ChooseCorePartition(1, 1024, 256, 32); got != (CorePartition{M: 1, N: 32}) {
		t.Fatalf("wide GEVM = %+v, want {1 32}", got)
	}
	if got := ChooseCorePartition(1, 64, 256, 32); got != (CorePartition{M: 1, N: 1}) {
		t.Fatalf("narrow GEVM = %+v, want {1 1}", got)
	}
}

func TestChooseCorePartitionPrefersCheaperOperand(t *testing.T) {
	t.Parallel()

	// Tall and thin: splitting M avoids copying the large A operand again.
	got := ChooseCorePartition(4096, 32, 64, 2)
	if got != (CorePartition{M: 2, N: 1}) {
		t.Fatalf("ChooseCorePartition(4096,32,64,2) = %+v, want {2 1}", got)
	}
}

func TestChooseCorePartitionBudgetAndOptimality(t *testing.T) {
	t.Parallel()

	for _, cores := range []int{1, 2, 4, 8, 24, 32} {
		for _, m := range []int{16, 48, 256, 1000, 4096} {
			for _, n := range []int{16, 80, 512, 2048} {
				k := 512
				got := ChooseCorePartition(m, n, k, cores)
				if got.Cores() > cores || got.M < 1 || got.N < 1 {
					t.Fatalf("ChooseCorePartition(%d,%d,%d,%d) = %+v breaks the budget", m, n, k, cores, got)
				}
				mb, nb := blocks(m), blocks(n)
				if mb*nb <= cores {
					continue
				}
				gotCost := copyCost(mb, nb, got.M, got.N, k)
				for e := 0; e < bits.Len(uint(cores)); e++ {
					i := 1 << e
					if cores%i != 0 || i > mb || cores/i > nb {
						continue
					}
					if c := copyCost(mb, nb, i, cores/i, k); c < gotCost {
						t.Fatalf("(%d,%d,%d cores): candidate (%d,%d) cost %d beats chosen %+v cost %d", m, n, cores, i, cores/i, c, got, gotCost)
					}
				}
			}
		}
	}
}
