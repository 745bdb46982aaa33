// Package metrics tracks per-stage pipeline outcomes for the stats endpoint.
package metrics

import (
	"sync"
	"time"
)

// StageStats is the accumulated outcome of one pipeline stage.
type StageStats struct {
	Started   int           `json:"started"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	TotalTime time.Duration `json:"total_time_ns"`
}

// Pipeline aggregates stage outcomes across all interviews.
type Pipeline struct {
	mu      sync.Mutex
	started time.Time
	stages  map[string]*StageStats
}

func NewPipeline() *Pipeline {
	return &Pipeline{
		started: time.Now(),
		stages:  make(map[string]*StageStats),
	}
}

func (p *Pipeline) stage(name string) *StageStats {
	s, ok := p.stages[name]
	if !ok {
		s = &StageStats{}
		p.stages[name] = s
	}
	return s
}

// StageStarted records a stage beginning execution.
func (p *Pipeline) StageStarted(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stage(name).Started++
}

// StageFinished records a completed stage execution and its duration.
func (p *Pipeline) StageFinished(name string, elapsed time.Duration, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.stage(name)
	if err != nil {
		s.Failed++
	} else {
		s.Succeeded++
	}
	s.TotalTime += elapsed
}

// Snapshot is the JSON shape served at the stats endpoint.
type Snapshot struct {
	UptimeSeconds float64               `json:"uptime_seconds"`
	Stages        map[string]StageStats `json:"stages"`
}

func (p *Pipeline) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := Snapshot{
		UptimeSeconds: time.Since(p.started).Seconds(),
		Stages:        make(map[string]StageStats, len(p.stages)),
	}
	for name, s := range p.stages {
		out.Stages[name] = *s
	}
	return out
}
