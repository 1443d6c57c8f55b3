package main

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"

	"github.com/samcharles93/tilesched/internal/gemm"
	"github.com/samcharles93/tilesched/internal/hardware"
)

type planReport struct {
	Name    string             `json:"name,omitempty"`
	Profile string             `json:"profile"`
	Plan    *gemm.SchedulePlan `json:"plan"`
}

func writeJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}

func writePlan(w io.Writer, format string, r planReport) error {
	switch format {
	case "json":
		return writeJSON(w, r)
	case "text", "":
	default:
		return fmt.Errorf("unknown output format %q (want text or json)", format)
	}

	d := r.Plan.Decisions
	if r.Name != "" {
		fmt.Fprintf(w, "problem:    %s\n", r.Name)
	}
	fmt.Fprintf(w, "profile:    %s\n", r.Profile)
	fmt.Fprintf(w, "tiling:     %s (%s)\n", d.Tiling, d.TilingSource)
	fmt.Fprintf(w, "tiles:      L1 %s  L0 %s\n", d.Tiles.L1, d.Tiles.L0)
	fmt.Fprintf(w, "partition:  m=%d n=%d (per core %dx%d)\n", d.Partition.M, d.Partition.N, d.CoreInnerM, d.CoreInnerN)
	fmt.Fprintf(w, "reuse:      a=%s b=%s batch_double=%t double_once=%t\n", d.Reuse.A, d.Reuse.B, d.Reuse.BatchDouble, d.Reuse.DoubleOnce)
	fmt.Fprintf(w, "regime:     %s\n", d.Regime)
	fmt.Fprintf(w, "inner:      factor_max=%d m=%d n=%d\n", d.Inner.FactorMax, d.Inner.M, d.Inner.N)
	fmt.Fprintf(w, "overload:   %t\n", d.Overload)
	if fused := d.Fusion.Tensors(); len(fused) > 0 {
		fmt.Fprintf(w, "fused:      %v\n", fused)
	}
	fmt.Fprintf(w, "\n%d operation(s):\n", len(r.Plan.Ops))
	for i, op := range r.Plan.Ops {
		fmt.Fprintf(w, "  %3d  %s\n", i, op)
	}
	return nil
}

func writeKnowledge(w io.Writer, format string) error {
	entries := gemm.KnownTilings()
	switch format {
	case "json":
		return writeJSON(w, struct {
			Version string             `json:"version"`
			Data    []gemm.KnownTiling `json:"data"`
		}{gemm.KnowledgeVersion, entries})
	case "text", "":
	default:
		return fmt.Errorf("unknown output format %q (want text or json)", format)
	}

	fmt.Fprintf(w, "Curated tilings (revision %s):\n\n", gemm.KnowledgeVersion)
	fmt.Fprintf(w, "  %-6s %-6s %-6s %-4s  %s\n", "M", "K", "N", "UB", "TILING")
	for _, e := range entries {
		fmt.Fprintf(w, "  %-6d %-6d %-6d %-4d  %s\n", e.Key.M, e.Key.K, e.Key.N, e.Key.UBBytes, e.Tiling)
	}
	return nil
}

func writeProfiles(w io.Writer, format string, profiles []hardware.Profile, current string) error {
	switch format {
	case "json":
		return writeJSON(w, profiles)
	case "text", "":
	default:
		return fmt.Errorf("unknown output format %q (want text or json)", format)
	}

	for _, p := range profiles {
		mark := " "
		if p.Name == current {
			mark = "*"
		}
		low := ""
		if p.LowCores {
			low = "  (low core count)"
		}
		fmt.Fprintf(w, "%s %-12s cores=%-3d l1=%-8s ub=%-8s l0a=%-8s l0b=%-8s l0c=%s%s\n",
			mark, p.Name, p.Cores, formatBytes(p.L1), formatBytes(p.UB), formatBytes(p.L0A), formatBytes(p.L0B), formatBytes(p.L0C), low)
	}
	return nil
}

func formatBytes(n int) string {
	switch {
	case n >= 1<<20 && n%(1<<20) == 0:
		return fmt.Sprintf("%dMiB", n>>20)
	case n >= 1<<10 && n%(1<<10) == 0:
		return fmt.Sprintf("%dKiB", n>>10)
	default:
		return fmt.Sprintf("%dB", n)
	}
}
