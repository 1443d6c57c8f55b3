package api

import (
	"context"
	"sync"

	"github.com/samcharles93/tilesched/internal/gemm"
	"github.com/samcharles93/tilesched/internal/hardware"
	"github.com/samcharles93/tilesched/internal/oracle"
)

// Planner schedules problems against named device profiles. Each profile
// gets one memoizing oracle that lives as long as the planner.
type Planner struct {
	profiles *hardware.Registry
	fallback string

	mu      sync.Mutex
	oracles map[string]*oracle.Cached
}

func NewPlanner(profiles *hardware.Registry, defaultProfile string) *Planner {
	if profiles == nil {
		profiles = hardware.NewRegistry()
	}
	if defaultProfile == "" {
		defaultProfile = hardware.DefaultProfile
	}
	return &Planner{
		profiles: profiles,
		fallback: defaultProfile,
		oracles:  make(map[string]*oracle.Cached),
	}
}

// Profile resolves name, falling back to the planner default.
func (p *Planner) Profile(name string) (hardware.Profile, error) {
	if name == "" {
		name = p.fallback
	}
	return p.profiles.Get(name)
}

func (p *Planner) DefaultProfile() string {
	return p.fallback
}

func (p *Planner) Profiles() []hardware.Profile {
	return p.profiles.List()
}

func (p *Planner) oracleFor(prof hardware.Profile) *oracle.Cached {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.oracles[prof.Name]
	if !ok {
		o = oracle.NewCached(oracle.NewHeuristic(prof))
		p.oracles[prof.Name] = o
	}
	return o
}

// Plan schedules g on the named profile.
func (p *Planner) Plan(ctx context.Context, profile string, g *gemm.Graph, opts gemm.Options) (*gemm.SchedulePlan, hardware.Profile, error) {
	prof, err := p.Profile(profile)
	if err != nil {
		return nil, hardware.Profile{}, newInvalidRequest(err.Error())
	}
	plan, err := gemm.NewScheduler(prof, p.oracleFor(prof)).Schedule(ctx, g, opts)
	if err != nil {
		return nil, prof, err
	}
	return plan, prof, nil
}
