package scheduler

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"stockwatch/internal/engine"
)

// CycleJob runs one availability cycle for every chain with tracked
// products. Errors are logged; the schedule keeps going.
func CycleJob(configs engine.ConfigSource, eng *engine.Engine, log *logrus.Entry) HandlerFunc {
	return func(ctx context.Context) {
		cfgs, err := configs.CycleConfigs(ctx)
		if err != nil {
			log.WithError(err).Error("build cycle configs")
			return
		}
		if len(cfgs) == 0 {
			log.Debug("no tracked products, skipping cycle")
			return
		}
		for _, r := range eng.RunAll(ctx, cfgs) {
			switch {
			case errors.Is(r.Err, engine.ErrCycleInFlight):
				log.WithField("chain", r.Chain).Debug("cycle in flight, tick dropped")
			case r.Err != nil:
				log.WithField("chain", r.Chain).WithError(r.Err).Warn("availability cycle failed")
			}
		}
	}
}
