package federation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/worldindex/core/internal/models"
	"github.com/worldindex/core/internal/pkg/taskqueue"
	"go.uber.org/zap"
)

// DeliveryMode selects how fan-out reaches follower inboxes.
type DeliveryMode int

const (
	// DeliverSync posts to each inbox inline before returning.
	DeliverSync DeliveryMode = iota
	// DeliverQueued enqueues the deliveries for the drain job.
	DeliverQueued
)

// TaskTypeDelivery is the taskqueue type for queued federation deliveries.
const TaskTypeDelivery = "federation_delivery"

// deliveryPayload is the queued form of one fan-out: a rendered envelope plus
// the inbox set frozen at dispatch time.
type deliveryPayload struct {
	Envelope json.RawMessage `json:"envelope"`
	Inboxes  []string        `json:"inboxes"`
}

// Fanout broadcasts ledger activities to every current follower. Delivery
// failures are logged and swallowed: federation is best-effort and a dead
// peer must never fail a local write.
type Fanout struct {
	svc       *Service
	deliverer Deliverer
	queue     *taskqueue.Service
	logger    *zap.Logger
	mode      DeliveryMode
}

func NewFanout(svc *Service, deliverer Deliverer, queue *taskqueue.Service, logger *zap.Logger, mode DeliveryMode) *Fanout {
	return &Fanout{svc: svc, deliverer: deliverer, queue: queue, logger: logger, mode: mode}
}

// Dispatch renders an already-appended ledger row as an activity envelope and
// sends it to every follower inbox. The object document, when the listing is
// still loaded, rides embedded; otherwise the bare object URI goes out and
// receivers dereference it.
func (f *Fanout) Dispatch(ctx context.Context, activity *models.ActivityModel, object interface{}) error {
	env := Envelope{
		Context: DefaultContext,
		ID:      activity.Identity,
		Type:    activity.Kind,
		Actor:   activity.Actor,
	}
	objBytes, err := json.Marshal(object)
	if err != nil {
		return fmt.Errorf("marshal activity object: %w", err)
	}
	env.Object = objBytes

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	inboxes, err := f.svc.FollowerInboxes()
	if err != nil {
		return err
	}
	if len(inboxes) == 0 {
		return nil
	}

	if f.mode == DeliverQueued && f.queue != nil {
		_, err := f.queue.Enqueue(ctx, TaskTypeDelivery, deliveryPayload{
			Envelope: body,
			Inboxes:  inboxes,
		})
		if err != nil {
			f.logger.Warn("enqueue delivery failed",
				zap.String("activity", activity.Identity), zap.Error(err))
		}
		return nil
	}

	f.deliverAll(ctx, activity.Identity, body, inboxes)
	return nil
}

// DrainQueued delivers pending queued fan-outs. Wired as a cron job.
func (f *Fanout) DrainQueued(ctx context.Context) error {
	if f.queue == nil {
		return nil
	}
	tasks, err := f.queue.ClaimPending(ctx, TaskTypeDelivery, 50)
	if err != nil {
		return err
	}
	for _, task := range tasks {
		var payload deliveryPayload
		if err := json.Unmarshal(task.Payload, &payload); err != nil {
			f.queue.Complete(ctx, task.ID, "malformed payload: "+err.Error())
			continue
		}
		f.deliverAll(ctx, task.ID, payload.Envelope, payload.Inboxes)
		f.queue.Complete(ctx, task.ID, "")
	}
	return nil
}

func (f *Fanout) deliverAll(ctx context.Context, id string, body []byte, inboxes []string) {
	for _, inbox := range inboxes {
		if err := f.deliverer.Deliver(ctx, inbox, body); err != nil {
			f.logger.Warn("delivery failed",
				zap.String("activity", id),
				zap.String("inbox", inbox),
				zap.Error(err))
		}
	}
}
