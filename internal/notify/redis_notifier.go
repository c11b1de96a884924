package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const streamMaxLen = 10000

// RedisNotifier appends notifications to a Redis stream consumed by the delivery gateway
// (email/SMS).
type RedisNotifier struct {
	client redis.Cmdable
	stream string
	now    func() time.Time
}

// NewRedisNotifier builds a notifier writing to the given stream key.
func NewRedisNotifier(client redis.Cmdable, stream string) *RedisNotifier {
	return &RedisNotifier{client: client, stream: stream, now: time.Now}
}

func (n *RedisNotifier) NotifyAssigned(ctx context.Context, ticketID, technicianID string) error {
	return n.publish(ctx, Message{Kind: KindAssigned, TicketID: ticketID, TechnicianID: technicianID})
}

func (n *RedisNotifier) NotifyResolved(ctx context.Context, ticketID, solutionSummary string) error {
	return n.publish(ctx, Message{Kind: KindResolved, TicketID: ticketID, Solution: solutionSummary})
}

func (n *RedisNotifier) publish(ctx context.Context, msg Message) error {
	msg.CreatedAt = n.now().UTC()
	err := n.client.XAdd(ctx, &redis.XAddArgs{
		Stream: n.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]any{
			"kind":          string(msg.Kind),
			"ticket_id":     msg.TicketID,
			"technician_id": msg.TechnicianID,
			"solution":      msg.Solution,
			"created_at":    msg.CreatedAt.Format(time.RFC3339Nano),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", n.stream, err)
	}
	return nil
}

// Failure is a notification that could not be delivered.
type Failure struct {
	Message  Message   `json:"message"`
	Reason   string    `json:"reason"`
	FailedAt time.Time `json:"failed_at"`
}

// DeadLetters keeps undelivered notifications for later inspection.
type DeadLetters interface {
	Record(ctx context.Context, failure Failure) error
	Count(ctx context.Context) (int64, error)
	Recent(ctx context.Context, n int64) ([]Failure, error)
}

const deadLetterCap = 1000

// RedisDeadLetters stores failures as JSON in a capped Redis list, newest first.
type RedisDeadLetters struct {
	client redis.Cmdable
	key    string
}

// NewRedisDeadLetters builds the sink.
func NewRedisDeadLetters(client redis.Cmdable, key string) *RedisDeadLetters {
	return &RedisDeadLetters{client: client, key: key}
}

func (d *RedisDeadLetters) Record(ctx context.Context, failure Failure) error {
	payload, err := json.Marshal(failure)
	if err != nil {
		return err
	}
	_, err = d.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, d.key, payload)
		pipe.LTrim(ctx, d.key, 0, deadLetterCap-1)
		return nil
	})
	return err
}

func (d *RedisDeadLetters) Count(ctx context.Context) (int64, error) {
	return d.client.LLen(ctx, d.key).Result()
}

func (d *RedisDeadLetters) Recent(ctx context.Context, n int64) ([]Failure, error) {
	if n <= 0 {
		return nil, nil
	}
	raw, err := d.client.LRange(ctx, d.key, 0, n-1).Result()
	if err != nil {
		return nil, err
	}
	result := make([]Failure, 0, len(raw))
	for _, item := range raw {
		var f Failure
		if err := json.Unmarshal([]byte(item), &f); err != nil {
			continue
		}
		result = append(result, f)
	}
	return result, nil
}
