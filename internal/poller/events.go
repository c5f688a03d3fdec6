// internal/poller/events.go
package poller

import (
	"github.com/tamzrod/modbus-devices/internal/schema"
)

const subscriptionBuffer = 32

type subscription struct {
	key string
	ch  chan PointEvent
}

// Subscribe returns a channel of events for the point named key, or for every
// point when key is empty. Slow subscribers miss events rather than block the
// poll loop. cancel closes the channel.
func (c *Coordinator) Subscribe(key string) (<-chan PointEvent, func()) {
	ch := make(chan PointEvent, subscriptionBuffer)

	c.subMu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = subscription{key: key, ch: ch}
	c.subMu.Unlock()

	cancel := func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		if s, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(s.ch)
		}
	}
	return ch, cancel
}

func (c *Coordinator) publish(ev PointEvent) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	for _, s := range c.subs {
		if s.key != "" && s.key != ev.Key {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			c.log.Debug().Str("key", ev.Key).Msg("subscriber full, event dropped")
		}
	}
}

func (c *Coordinator) publishPoint(id schema.GroupID, key string) {
	g, ok := c.dev.Group(id)
	if !ok {
		return
	}
	c.publish(PointEvent{Group: id, Name: g.Name, Key: key, Value: c.dev.Value(id, key)})
}

// publishAll announces every point except the Config group, which only
// changes through SelectConfig.
func (c *Coordinator) publishAll() {
	c.subMu.Lock()
	n := len(c.subs)
	c.subMu.Unlock()
	if n == 0 {
		return
	}

	for _, g := range c.dev.Groups() {
		if g.ID == c.dev.Config() {
			continue
		}
		for _, key := range c.dev.Keys(g.ID) {
			c.publishPoint(g.ID, key)
		}
	}
}
