package store

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Pruner periodically removes search records past their retention window.
type Pruner struct {
	store     *Store
	logger    *logrus.Logger
	retention time.Duration
	interval  time.Duration
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// NewPruner creates a pruner that keeps records for the retention duration,
// checking once per interval.
func NewPruner(store *Store, retention, interval time.Duration, logger *logrus.Logger) *Pruner {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return &Pruner{
		store:     store,
		logger:    logger,
		retention: retention,
		interval:  interval,
		stopChan:  make(chan struct{}),
	}
}

// Start begins the prune schedule. The first pass runs immediately so a
// long-stopped server catches up on restart.
func (p *Pruner) Start() {
	p.wg.Add(1)
	go p.run()
}

func (p *Pruner) run() {
	defer p.wg.Done()

	p.prune()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopChan:
			return
		case <-ticker.C:
			p.prune()
		}
	}
}

func (p *Pruner) prune() {
	cutoff := time.Now().UTC().Add(-p.retention)
	removed, err := p.store.Prune(cutoff)
	if err != nil {
		p.logger.WithError(err).Error("History prune failed")
		return
	}
	if removed > 0 {
		p.logger.WithFields(logrus.Fields{
			"removed": removed,
			"cutoff":  cutoff.Format(time.RFC3339),
		}).Info("Pruned search history")
	}
}

// Stop gracefully stops the pruner.
func (p *Pruner) Stop() {
	close(p.stopChan)
	p.wg.Wait()
}
