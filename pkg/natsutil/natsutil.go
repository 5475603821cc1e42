// Package natsutil wraps nats.go with typed JSON publish, subscribe and
// request helpers that carry OpenTelemetry context in message headers.
package natsutil

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
)

// RetryHeader counts redeliveries of a message.
const RetryHeader = "X-Retry-Count"

// headerCarrier lets the OTel propagator read and write nats.Msg headers.
type headerCarrier nats.Msg

func (c *headerCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *headerCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = nats.Header{}
	}
	c.Header.Set(key, val)
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

// Msg is a decoded message.
type Msg[T any] struct {
	Subject string
	Reply   string
	Value   T
	Data    []byte
	Header  nats.Header
}

// Retries reads RetryHeader, 0 when absent or malformed.
func (m Msg[T]) Retries() int {
	n, err := strconv.Atoi(m.Header.Get(RetryHeader))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func newMsg(ctx context.Context, subject string, data []byte, hdr nats.Header) *nats.Msg {
	msg := &nats.Msg{Subject: subject, Data: data, Header: nats.Header{}}
	for k, vs := range hdr {
		for _, v := range vs {
			msg.Header.Add(k, v)
		}
	}
	otel.GetTextMapPropagator().Inject(ctx, (*headerCarrier)(msg))
	return msg
}

// Publish encodes v as JSON and publishes it with the trace context of ctx.
func Publish[T any](ctx context.Context, nc *nats.Conn, subject string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("natsutil: encode %s: %w", subject, err)
	}
	return PublishRaw(ctx, nc, subject, data, nil)
}

// PublishRaw publishes already encoded data with extra headers.
func PublishRaw(ctx context.Context, nc *nats.Conn, subject string, data []byte, hdr nats.Header) error {
	if err := nc.PublishMsg(newMsg(ctx, subject, data, hdr)); err != nil {
		return fmt.Errorf("natsutil: publish %s: %w", subject, err)
	}
	return nil
}

// Redeliver republishes m to its subject with RetryHeader set to retries.
func Redeliver[T any](ctx context.Context, nc *nats.Conn, m Msg[T], retries int) error {
	hdr := nats.Header{}
	hdr.Set(RetryHeader, strconv.Itoa(retries))
	return PublishRaw(ctx, nc, m.Subject, m.Data, hdr)
}

// Subscribe decodes JSON messages on subject into T and hands them to
// handler with the sender's trace context. A non-empty queue joins a queue
// group. Messages that fail to decode are logged and dropped.
func Subscribe[T any](nc *nats.Conn, subject, queue string, log *slog.Logger, handler func(context.Context, Msg[T])) (*nats.Subscription, error) {
	if log == nil {
		log = slog.Default()
	}
	cb := func(raw *nats.Msg) {
		ctx := otel.GetTextMapPropagator().Extract(context.Background(), (*headerCarrier)(raw))
		var v T
		if err := json.Unmarshal(raw.Data, &v); err != nil {
			log.WarnContext(ctx, "natsutil: dropping malformed message", "subject", raw.Subject, "error", err)
			return
		}
		handler(ctx, Msg[T]{Subject: raw.Subject, Reply: raw.Reply, Value: v, Data: raw.Data, Header: raw.Header})
	}
	if queue != "" {
		return nc.QueueSubscribe(subject, queue, cb)
	}
	return nc.Subscribe(subject, cb)
}

// Request sends req as JSON and decodes the JSON reply. The deadline comes
// from ctx, falling back to nats.DefaultTimeout.
func Request[Req, Resp any](ctx context.Context, nc *nats.Conn, subject string, req Req) (Resp, error) {
	var zero Resp
	data, err := json.Marshal(req)
	if err != nil {
		return zero, fmt.Errorf("natsutil: encode %s: %w", subject, err)
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, nats.DefaultTimeout)
		defer cancel()
	}
	reply, err := nc.RequestMsgWithContext(ctx, newMsg(ctx, subject, data, nil))
	if err != nil {
		return zero, fmt.Errorf("natsutil: request %s: %w", subject, err)
	}
	var out Resp
	if err := json.Unmarshal(reply.Data, &out); err != nil {
		return zero, fmt.Errorf("natsutil: decode reply %s: %w", subject, err)
	}
	return out, nil
}

// Reply answers a request message with v encoded as JSON.
func Reply[T any](nc *nats.Conn, m Msg[T], v any) error {
	if m.Reply == "" {
		return fmt.Errorf("natsutil: %s: message has no reply subject", m.Subject)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("natsutil: encode reply: %w", err)
	}
	return nc.Publish(m.Reply, data)
}
