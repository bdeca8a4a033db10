package jobs

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/emrgen/wikistore/internal/store"
)

// LockSweeper drops advisory locks that outlived their ttl. Locks are
// informational, so a missed sweep only delays cleanup.
type LockSweeper struct {
	store    store.Store
	wikis    []string
	ttl      time.Duration
	schedule string
}

func NewLockSweeper(s store.Store, wikis []string, ttl time.Duration, schedule string) *LockSweeper {
	if schedule == "" {
		schedule = "@every 10m"
	}
	return &LockSweeper{store: s, wikis: wikis, ttl: ttl, schedule: schedule}
}

func (l *LockSweeper) Schedule() string {
	return l.schedule
}

func (l *LockSweeper) Run() {
	ctx := context.Background()
	before := time.Now().Add(-l.ttl)
	for _, wiki := range l.wikis {
		expired, err := l.store.ExpireLocks(ctx, wiki, before)
		if err != nil {
			logrus.Errorf("sweeping locks of wiki %s: %v", wiki, err)
			continue
		}
		if expired > 0 {
			logrus.Infof("expired %d locks in wiki %s", expired, wiki)
		}
	}
}
