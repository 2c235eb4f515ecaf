package replication

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/automoto/warband-mp/shared/state"
)

// Loop drives a Peer from a wall-clock ticker.
type Loop struct {
	peer     *Peer
	tickRate int
	onTick   func(*state.State)

	stopOnce sync.Once
	stopChan chan struct{}
	done     chan struct{}
}

// NewLoop creates a loop ticking peer tickRate times per second. onTick, if
// set, receives the state after every tick (the render hook).
func NewLoop(peer *Peer, tickRate int, onTick func(*state.State)) *Loop {
	if tickRate <= 0 {
		tickRate = 60
	}
	return &Loop{
		peer:     peer,
		tickRate: tickRate,
		onTick:   onTick,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (l *Loop) Run() {
	defer close(l.done)

	ticker := time.NewTicker(time.Second / time.Duration(l.tickRate))
	defer ticker.Stop()

	log.Printf("[%s] loop started at %d ticks/second", l.peer.Role(), l.tickRate)

	last := time.Now()
	for {
		select {
		case <-l.stopChan:
			log.Printf("[%s] loop stopped", l.peer.Role())
			return
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			if err := l.peer.Tick(dt); err != nil {
				if errors.Is(err, ErrClosed) {
					return
				}
				log.Printf("[%s] tick: %v", l.peer.Role(), err)
			}
			if l.onTick != nil {
				if st := l.peer.State(); st != nil {
					l.onTick(st)
				}
			}
		}
	}
}

// Stop ends Run and waits for the current tick to finish. It must only be
// called once Run has been started.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stopChan) })
	<-l.done
}
