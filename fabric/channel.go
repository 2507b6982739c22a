package fabric

import (
	"context"
)

// Channel binds a source tag so that producer and consumer code does not
// have to repeat it. Many independent channels multiplex one fabric: a
// typical tag is the integration's name plus its build version, which also
// keeps instances running different builds from feeding each other frames
// they cannot decode. Tag agreement is purely a caller convention.
type Channel struct {
	fabric *Fabric
	tag    string
}

// Channel returns a sender/receiver bound to the given source tag.
func (f *Fabric) Channel(tag string) *Channel {
	return &Channel{
		fabric: f,
		tag:    tag,
	}
}

// Tag returns the channel's source tag.
func (c *Channel) Tag() string {
	return c.tag
}

// Send broadcasts the payload to all siblings under the channel's tag.
func (c *Channel) Send(ctx context.Context, payload []byte) error {
	return c.fabric.Broadcast(ctx, c.tag, payload)
}

// Subscribe registers a handler that only sees frames carrying the
// channel's tag; everything else on the fabric is ignored.
func (c *Channel) Subscribe(h func(payload []byte)) {
	tag := c.tag

	c.fabric.Subscribe(func(sourceTag string, payload []byte) {
		if sourceTag != tag {
			return
		}

		h(payload)
	})
}
