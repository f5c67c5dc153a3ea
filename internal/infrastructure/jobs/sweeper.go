package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hilthontt/roomdrop/internal/domain"
	"github.com/hilthontt/roomdrop/internal/infrastructure/logging"
	"github.com/hilthontt/roomdrop/internal/infrastructure/metrics"
	"github.com/hilthontt/roomdrop/internal/infrastructure/repository"
)

const defaultSweepInterval = time.Minute

// RoomSweepJob evicts expired rooms on a ticker so that storage is reclaimed
// even for codes nobody asks for again.
//
// With a store set, it also removes expired blobs under roomPrefix that the
// registry no longer holds a room for: the files of evicted rooms and the
// leftovers of failed batches. Leave store nil when the registry is itself
// derived from the store, since its own Sweep already does this.
type RoomSweepJob struct {
	registry   domain.RoomRegistry
	store      domain.ContentStore
	roomPrefix string
	logger     logging.Logger
	metrics    *metrics.Metrics
	interval   time.Duration
	now        domain.Clock
	stopChan   chan struct{}
	stopOnce   sync.Once
}

func NewRoomSweepJob(
	registry domain.RoomRegistry,
	store domain.ContentStore,
	roomPrefix string,
	logger logging.Logger,
	m *metrics.Metrics,
	interval time.Duration,
) *RoomSweepJob {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if m == nil {
		m = metrics.New()
	}
	if roomPrefix == "" {
		roomPrefix = domain.DefaultRoomPrefix
	}
	return &RoomSweepJob{
		registry:   registry,
		store:      store,
		roomPrefix: roomPrefix,
		logger:     logger,
		metrics:    m,
		interval:   interval,
		now:        time.Now,
		stopChan:   make(chan struct{}),
	}
}

// Start blocks until Stop is called or ctx is done.
func (j *RoomSweepJob) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info(logging.Internal, logging.Startup, "room sweep job started", map[logging.ExtraKey]any{
		logging.Latency: j.interval.String(),
	})

	for {
		select {
		case <-ticker.C:
			j.RunOnce(ctx)
		case <-j.stopChan:
			j.logger.Info(logging.Internal, logging.Shutdown, "room sweep job stopped", nil)
			return
		case <-ctx.Done():
			j.logger.Info(logging.Internal, logging.Shutdown, "room sweep job context cancelled", nil)
			return
		}
	}
}

func (j *RoomSweepJob) Stop() {
	j.stopOnce.Do(func() { close(j.stopChan) })
}

// RunOnce performs a single sweep and returns how many rooms it evicted.
// Failures are logged and swallowed; the next tick tries again.
func (j *RoomSweepJob) RunOnce(ctx context.Context) int {
	startTime := time.Now()

	n, err := j.registry.Sweep(ctx)
	if err != nil {
		j.logger.Error(logging.Internal, logging.Sweep, "room sweep failed", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
			logging.Latency:      time.Since(startTime).String(),
		})
	}
	if n > 0 {
		j.metrics.RoomsSwept(n)
		j.logger.Info(logging.Internal, logging.Sweep, "expired rooms swept", map[logging.ExtraKey]any{
			logging.Evicted: n,
			logging.Latency: time.Since(startTime).String(),
		})
	}

	if j.store != nil {
		j.sweepObjects(ctx)
	}

	return n
}

// sweepObjects runs after the registry sweep, so a room it still finds is live.
// Registry errors keep the objects; they are retried on the next tick.
func (j *RoomSweepJob) sweepObjects(ctx context.Context) {
	keep := func(code domain.RoomCode) bool {
		_, err := j.registry.Get(ctx, code)
		return !errors.Is(err, domain.ErrRoomNotFound)
	}

	codes, removed, err := repository.SweepExpiredObjects(ctx, j.store, j.roomPrefix, j.now(), keep)
	if err != nil {
		j.logger.Error(logging.Storage, logging.Sweep, "object sweep failed", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
			logging.Removed:      removed,
		})
		return
	}
	if removed > 0 {
		j.logger.Info(logging.Storage, logging.Sweep, "expired objects removed", map[logging.ExtraKey]any{
			logging.Removed: removed,
			logging.Evicted: len(codes),
		})
	}
}
