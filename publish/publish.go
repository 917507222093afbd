/*
   Copyright 2018-2019 Banco Bilbao Vizcaya Argentaria, S.A.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

// Package publish delivers group events to external systems.
package publish

import (
	"sync"

	"github.com/bbva/imtree/group"
	"github.com/bbva/imtree/log"
	"github.com/bbva/imtree/metrics"
)

// Publisher delivers one event.
type Publisher interface {
	Publish(e *group.Event) error
}

// Notifier queues the events it is notified and delivers each of them to
// every publisher from a pool of workers. It never blocks the caller: when
// the queue is full the event is dropped. Delivery failures are logged and
// never reported back to the registry.
type Notifier struct {
	ch         chan *group.Event
	publishers []Publisher
	workers    int
	wg         sync.WaitGroup

	sync.RWMutex
	stopped bool
}

func NewNotifier(queueSize, workers int, publishers ...Publisher) *Notifier {
	if workers < 1 {
		workers = 1
	}
	return &Notifier{
		ch:         make(chan *group.Event, queueSize),
		publishers: publishers,
		workers:    workers,
	}
}

// Start spawns the workers.
func (n *Notifier) Start() {
	for i := 0; i < n.workers; i++ {
		n.wg.Add(1)
		go n.publish()
	}
}

// Stop delivers the queued events and waits for the workers to finish.
func (n *Notifier) Stop() {
	n.Lock()
	if n.stopped {
		n.Unlock()
		return
	}
	n.stopped = true
	close(n.ch)
	n.Unlock()
	n.wg.Wait()
}

// Notify implements group.Notifier.
func (n *Notifier) Notify(e *group.Event) {
	n.RLock()
	defer n.RUnlock()
	if n.stopped {
		log.Debugf("Notifier stopped, discarding event %s", e.ID)
		return
	}
	select {
	case n.ch <- e:
	default:
		metrics.EventsFailedTotal.Inc()
		log.Errorf("Publisher queue full, dropping event %s of group %d", e.ID, e.GroupID)
	}
}

func (n *Notifier) publish() {
	defer n.wg.Done()
	for e := range n.ch {
		for _, p := range n.publishers {
			if err := p.Publish(e); err != nil {
				metrics.EventsFailedTotal.Inc()
				log.Infof("Error publishing event %s: %v", e.ID, err)
				continue
			}
			metrics.EventsPublishedTotal.Inc()
		}
	}
}

// ChanPublisher forwards events to a channel.
type ChanPublisher struct {
	ch chan<- *group.Event
}

func NewChanPublisher(ch chan<- *group.Event) *ChanPublisher {
	return &ChanPublisher{ch}
}

func (p *ChanPublisher) Publish(e *group.Event) error {
	p.ch <- e
	return nil
}
