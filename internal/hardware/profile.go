package hardware

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Profile describes one accelerator variant's parallel units and buffer
// capacities. Capacities are in bytes.
type Profile struct {
	Name     string `yaml:"name" json:"name"`
	Cores    int    `yaml:"cores" json:"cores"`
	L1       int    `yaml:"l1_bytes" json:"l1_bytes"`
	UB       int    `yaml:"ub_bytes" json:"ub_bytes"`
	L0A      int    `yaml:"l0a_bytes" json:"l0a_bytes"`
	L0B      int    `yaml:"l0b_bytes" json:"l0b_bytes"`
	L0C      int    `yaml:"l0c_bytes" json:"l0c_bytes"`
	LowCores bool   `yaml:"low_core_count" json:"low_core_count"`
}

func (p Profile) CoreCount() int            { return p.Cores }
func (p Profile) MidLevelCapacity() int     { return p.L1 }
func (p Profile) VectorBufferCapacity() int { return p.UB }
func (p Profile) LowCoreCount() bool        { return p.LowCores }

// Validate rejects profiles the planner cannot work with.
func (p Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("profile name is required")
	}
	checks := []struct {
		field string
		v     int
	}{
		{"cores", p.Cores},
		{"l1_bytes", p.L1},
		{"ub_bytes", p.UB},
		{"l0a_bytes", p.L0A},
		{"l0b_bytes", p.L0B},
		{"l0c_bytes", p.L0C},
	}
	for _, c := range checks {
		if c.v <= 0 {
			return fmt.Errorf("profile %q: %s must be positive, got %d", p.Name, c.field, c.v)
		}
	}
	return nil
}

const kib = 1024

var builtin = []Profile{
	{Name: "cloud", Cores: 32, L1: 1024 * kib, UB: 256 * kib, L0A: 64 * kib, L0B: 64 * kib, L0C: 256 * kib},
	{Name: "cloud-24", Cores: 24, L1: 512 * kib, UB: 192 * kib, L0A: 64 * kib, L0B: 64 * kib, L0C: 128 * kib},
	{Name: "lite", Cores: 2, L1: 1024 * kib, UB: 248 * kib, L0A: 64 * kib, L0B: 64 * kib, L0C: 256 * kib, LowCores: true},
	{Name: "edge", Cores: 1, L1: 1024 * kib, UB: 248 * kib, L0A: 64 * kib, L0B: 64 * kib, L0C: 256 * kib, LowCores: true},
}

// DefaultProfile is used when nothing else is configured.
const DefaultProfile = "cloud"

// Registry resolves profile names.
type Registry struct {
	profiles map[string]Profile
}

// NewRegistry returns a registry holding the built-in profiles.
func NewRegistry() *Registry {
	r := &Registry{profiles: make(map[string]Profile, len(builtin))}
	for _, p := range builtin {
		r.profiles[p.Name] = p
	}
	return r
}

// Add registers p, replacing any profile with the same name.
func (r *Registry) Add(p Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r.profiles[p.Name] = p
	return nil
}

func (r *Registry) Get(name string) (Profile, error) {
	if name == "" {
		name = DefaultProfile
	}
	p, ok := r.profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("unknown hardware profile %q (known: %s)", name, strings.Join(r.Names(), ", "))
	}
	return p, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.profiles))
	for n := range r.profiles {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// List returns every profile sorted by name.
func (r *Registry) List() []Profile {
	out := make([]Profile, 0, len(r.profiles))
	for _, n := range r.Names() {
		out = append(out, r.profiles[n])
	}
	return out
}

type profileFile struct {
	Profiles []Profile `yaml:"profiles"`
}

// LoadFile adds the profiles listed in a YAML file:
//
//	profiles:
//	  - name: custom
//	    cores: 8
//	    l1_bytes: 524288
//	    ...
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read profiles: %w", err)
	}
	return r.Load(data)
}

func (r *Registry) Load(data []byte) error {
	var f profileFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse profiles: %w", err)
	}
	for _, p := range f.Profiles {
		if err := r.Add(p); err != nil {
			return err
		}
	}
	return nil
}
