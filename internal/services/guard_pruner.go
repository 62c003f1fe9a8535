package services

import (
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ruma-go/homeserver/internal/services/membership"
	"github.com/ruma-go/homeserver/pkg/logger"
	"gorm.io/gorm"
)

const guardPruneLock = "guard_prune"

// GuardPruner periodically deletes duplicate-transition gates that can no
// longer deny anything. Only one instance prunes at a time.
type GuardPruner struct {
	db            *gorm.DB
	guard         *membership.Guard
	lock          *SchedulerLock
	schedule      string
	cronScheduler *cron.Cron
	entryID       cron.EntryID
}

func NewGuardPruner(db *gorm.DB, guard *membership.Guard, schedule string) *GuardPruner {
	return &GuardPruner{
		db:       db,
		guard:    guard,
		lock:     NewSchedulerLock(db, 5*time.Minute),
		schedule: schedule,
	}
}

// Start schedules pruning. An empty schedule disables it.
func (p *GuardPruner) Start() error {
	if p.schedule == "" {
		logger.Info().Msg("guard pruner: disabled")
		return nil
	}

	p.cronScheduler = cron.New()
	entryID, err := p.cronScheduler.AddFunc(p.schedule, func() {
		p.RunOnce(time.Now())
	})
	if err != nil {
		return err
	}
	p.entryID = entryID

	p.cronScheduler.Start()
	logger.Info().Str("schedule", p.schedule).Msg("guard pruner: started")
	return nil
}

func (p *GuardPruner) Stop() {
	if p.cronScheduler != nil {
		<-p.cronScheduler.Stop().Done()
	}
}

// RunOnce prunes immediately and returns the number of deleted gates. It
// does nothing while another instance holds the prune lock.
func (p *GuardPruner) RunOnce(now time.Time) int64 {
	ok, err := p.lock.TryAcquire(guardPruneLock, "global", now)
	if err != nil {
		logger.Error().Err(err).Msg("guard pruner: lock failed")
		return 0
	}
	if !ok {
		logger.Debug().Msg("guard pruner: another instance is pruning")
		return 0
	}
	defer p.lock.Release(guardPruneLock, "global")

	n, err := p.guard.Prune(p.db, now)
	if err != nil {
		logger.Error().Err(err).Msg("guard pruner: prune failed")
		return 0
	}
	if n > 0 {
		logger.Debug().Int64("deleted", n).Msg("guard pruner: pruned gates")
	}
	return n
}
