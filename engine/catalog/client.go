package catalog

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/bmwdex/bmwdex/engine/domain"
	"github.com/bmwdex/bmwdex/pkg/natsutil"
)

// Client publishes to the subjects StartConsumer serves.
type Client struct {
	nc *nats.Conn
}

func NewClient(nc *nats.Conn) *Client { return &Client{nc: nc} }

// PublishCar queues a car payload.
func (c *Client) PublishCar(ctx context.Context, p domain.CarPayload) error {
	return natsutil.Publish(ctx, c.nc, SubjectCars, p)
}

// PublishEngine queues an engine payload.
func (c *Client) PublishEngine(ctx context.Context, p domain.EnginePayload) error {
	return natsutil.Publish(ctx, c.nc, SubjectEngines, p)
}

// Sync asks a consumer to sync its data directory and waits for the reply
// until ctx is done.
func (c *Client) Sync(ctx context.Context, req SyncRequest) (SyncReply, error) {
	return natsutil.Request[SyncRequest, SyncReply](ctx, c.nc, SubjectSync, req)
}
