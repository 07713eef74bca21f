package sampler

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/norm/focusd/internal/verdict"
)

// DefaultProcessLimit caps how many application names are reported.
const DefaultProcessLimit = 80

// ProcessLister returns the names of running processes.
type ProcessLister func(ctx context.Context) ([]string, error)

// Processes reports the names of running applications.
type Processes struct {
	list  ProcessLister
	limit int
}

// NewProcesses creates a process sampler backed by gopsutil.
func NewProcesses(limit int) *Processes {
	return NewProcessesWith(ListProcesses, limit)
}

// NewProcessesWith creates a process sampler with a custom lister.
func NewProcessesWith(list ProcessLister, limit int) *Processes {
	if limit <= 0 {
		limit = DefaultProcessLimit
	}
	return &Processes{list: list, limit: limit}
}

func (p *Processes) Sample(ctx context.Context) (string, error) {
	names, err := p.list(ctx)
	if err != nil {
		return "", &verdict.SamplingError{Err: fmt.Errorf("list processes: %w", err)}
	}

	seen := make(map[string]struct{}, len(names))
	unique := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		unique = append(unique, n)
	}
	if len(unique) == 0 {
		return "", &verdict.SamplingError{Err: verdict.ErrEmptySample}
	}
	sort.Strings(unique)
	if len(unique) > p.limit {
		unique = unique[:p.limit]
	}
	return strings.Join(unique, "\n"), nil
}

// ListProcesses lists process names via gopsutil. Processes that vanish or
// deny access mid-scan are skipped.
func ListProcesses(ctx context.Context) ([]string, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(procs))
	for _, proc := range procs {
		name, err := proc.NameWithContext(ctx)
		if err != nil {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}
