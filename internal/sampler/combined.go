package sampler

import (
	"context"
	"strings"

	"github.com/norm/focusd/internal/logging"
	"github.com/norm/focusd/internal/verdict"
)

// Combined joins the screen text with the running application list. Either
// half may fail on its own; the sample only fails when both do.
type Combined struct {
	screen    Sampler
	processes Sampler
}

// NewCombined creates a combined sampler. processes may be nil.
func NewCombined(screen, processes Sampler) *Combined {
	return &Combined{screen: screen, processes: processes}
}

func (c *Combined) Sample(ctx context.Context) (string, error) {
	screenText, screenErr := c.screen.Sample(ctx)
	if c.processes == nil {
		return screenText, screenErr
	}
	if screenErr != nil {
		logging.Info("sampler", "screen sample failed, using process list only: %v", screenErr)
	}

	procText, procErr := c.processes.Sample(ctx)
	if procErr != nil {
		logging.Debug("sampler", "process sample failed: %v", procErr)
	}

	if screenErr != nil && procErr != nil {
		return "", screenErr
	}

	var b strings.Builder
	if screenErr == nil {
		b.WriteString(screenText)
	}
	if procErr == nil {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("Running applications:\n")
		b.WriteString(procText)
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", &verdict.SamplingError{Err: verdict.ErrEmptySample}
	}
	return b.String(), nil
}
