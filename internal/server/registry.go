package server

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/seastar-sci/seastar/internal/run"
	"github.com/seastar-sci/seastar/internal/status"
)

// Registry tracks runs started through the API. Each run is still
// exclusively owned by its handle; the registry only maps IDs to handles.
type Registry struct {
	mu   sync.Mutex
	runs map[string]*run.Run
}

// RunInfo is the JSON representation of a tracked run.
type RunInfo struct {
	ID         string                 `json:"id"`
	Command    []string               `json:"command"`
	Status     status.ExecutionStatus `json:"status"`
	OutputFile string                 `json:"output_file"`
	PID        int                    `json:"pid"`
	Started    time.Time              `json:"started"`
}

func NewRegistry() *Registry {
	return &Registry{runs: make(map[string]*run.Run)}
}

// Start launches a run and registers it under a fresh ID.
func (g *Registry) Start(spec run.Spec) (string, *run.Run, error) {
	r, err := run.Start(spec)
	if err != nil {
		return "", nil, err
	}

	id := uuid.NewString()
	g.mu.Lock()
	g.runs[id] = r
	g.mu.Unlock()
	return id, r, nil
}

// Get returns the run registered under id.
func (g *Registry) Get(id string) (*run.Run, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.runs[id]
	if !ok {
		return nil, fmt.Errorf("run %s not found", id)
	}
	return r, nil
}

// List returns info for every registered run, newest first.
func (g *Registry) List() []RunInfo {
	g.mu.Lock()
	defer g.mu.Unlock()

	infos := make([]RunInfo, 0, len(g.runs))
	for id, r := range g.runs {
		infos = append(infos, RunInfo{
			ID:         id,
			Command:    r.Command(),
			Status:     r.Status(),
			OutputFile: r.OutputFile(),
			PID:        r.PID(),
			Started:    r.Started(),
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Started.Equal(infos[j].Started) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].Started.After(infos[j].Started)
	})
	return infos
}

// Close kills every live run. Best-effort: all failures are reported,
// none stops the sweep.
func (g *Registry) Close() error {
	g.mu.Lock()
	runs := make([]*run.Run, 0, len(g.runs))
	for _, r := range g.runs {
		runs = append(runs, r)
	}
	g.mu.Unlock()

	var errs *multierror.Error
	for _, r := range runs {
		if err := r.CancelKill(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}
