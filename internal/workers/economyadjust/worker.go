package economyadjust

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/paisa-play/paisa_play/internal/economy"
)

// Worker periodically checks whether traded volume has crossed the policy
// threshold and, if so, moves the platform token price.
type Worker struct {
	cron   *cron.Cron
	econ   *economy.Service
	logger *slog.Logger
}

// New schedules the adjustment check on the given cron spec.
func New(econ *economy.Service, schedule string, logger *slog.Logger) (*Worker, error) {
	c := cron.New()
	w := &Worker{cron: c, econ: econ, logger: logger}
	if _, err := c.AddFunc(schedule, w.run); err != nil {
		return nil, err
	}
	return w, nil
}

// Start begins the schedule in its own goroutine.
func (w *Worker) Start() {
	w.cron.Start()
}

// Stop halts the schedule and waits for a running check to finish.
func (w *Worker) Stop() {
	ctx := w.cron.Stop()
	<-ctx.Done()
}

func (w *Worker) run() {
	if err := w.econ.CheckAdjustment(context.Background()); err != nil {
		w.logger.Error("economy adjustment check failed", slog.Any("error", err))
	}
}
