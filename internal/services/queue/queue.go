// Package queue implements the Persistence Queue (C3): an in-process
// bounded-channel worker pool partitioned by conversation (spec.md §4.3),
// backed by a RabbitMQ durability overflow path for when a partition fills,
// and a synchronous inline-write fallback for when the broker itself is
// unreachable. Grounded on the teacher's consumer worker-loop style
// (internal/services/commands/update-balance.go's per-job transaction
// shape) and its mrabbitmq connector.
package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"

	"github.com/rabbitmq/amqp091-go"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/creatorplatform/gateway-core/internal/adapters/postgres/conversation"
	"github.com/creatorplatform/gateway-core/pkg/mlog"
	"github.com/creatorplatform/gateway-core/pkg/mmodel"
	"github.com/creatorplatform/gateway-core/pkg/mrabbitmq"
)

const defaultMaxAttempts = 5

// Queue is the Persistence Queue. The zero value is not usable; construct
// with New.
type Queue struct {
	conv    conversation.Repository
	rmq     *mrabbitmq.Connection
	logger  mlog.Logger
	workers int

	maxAttempts int
	partitions  []chan mmodel.PersistJob

	declareOnce sync.Once
	declareErr  error
}

// New starts `workers` partitions, each a buffered channel of capacity
// `queueCap/workers`, one drain goroutine per partition, and one overflow
// consumer goroutine per partition.
func New(conv conversation.Repository, rmq *mrabbitmq.Connection, logger mlog.Logger, workers, queueCap int) *Queue {
	if workers <= 0 {
		workers = 3
	}

	perPartition := queueCap / workers
	if perPartition <= 0 {
		perPartition = 1
	}

	q := &Queue{
		conv:        conv,
		rmq:         rmq,
		logger:      logger,
		workers:     workers,
		maxAttempts: defaultMaxAttempts,
		partitions:  make([]chan mmodel.PersistJob, workers),
	}

	for i := 0; i < workers; i++ {
		q.partitions[i] = make(chan mmodel.PersistJob, perPartition)

		go q.drain(i)
		go q.drainOverflow(i)
	}

	return q
}

// Enqueue routes job to its partition and attempts a non-blocking send; if
// the partition is full it tries the RabbitMQ overflow path, and only if
// that publish itself fails does it fall back to a synchronous inline
// write (spec.md §4.3's failure mode).
func (q *Queue) Enqueue(ctx context.Context, job mmodel.PersistJob) bool {
	idx := q.partitionFor(job)

	select {
	case q.partitions[idx] <- job:
		return true
	default:
	}

	if err := q.publishOverflow(ctx, idx, job); err == nil {
		return true
	}

	q.logger.Warn("persistence queue partition full and overflow broker unreachable, writing inline")

	return q.writeInline(ctx, job)
}

func (q *Queue) partitionFor(job mmodel.PersistJob) int {
	var key string
	if job.ConversationID != nil {
		key = job.ConversationID.String()
	} else {
		key = job.UserID.String()
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(key))

	return int(h.Sum32()) % q.workers
}

func (q *Queue) drain(partition int) {
	for job := range q.partitions[partition] {
		q.process(context.Background(), partition, job)
	}
}

func (q *Queue) process(ctx context.Context, partition int, job mmodel.PersistJob) {
	if err := q.writeOnce(ctx, job); err != nil {
		q.retry(ctx, partition, job, err)
	}
}

func (q *Queue) writeOnce(ctx context.Context, job mmodel.PersistJob) error {
	conv := mmodel.Conversation{OwnerID: job.UserID, AgentID: job.AgentID, ProjectID: job.ProjectID, Title: job.Title}

	userMsg := mmodel.ConversationMessage{Role: mmodel.RoleUser, Content: job.UserText, Tokens: job.UserTokens}
	assistantMsg := mmodel.ConversationMessage{Role: mmodel.RoleAssistant, Content: job.AssistantText, Tokens: job.AssistantTokens}

	_, err := q.conv.AppendTurn(ctx, job.ConversationID, conv, userMsg, assistantMsg)

	return err
}

func (q *Queue) writeInline(ctx context.Context, job mmodel.PersistJob) bool {
	if err := q.writeOnce(ctx, job); err != nil {
		q.logger.Errorf("inline persistence write failed, turn lost: %v", err)
		return false
	}

	return true
}

func (q *Queue) retry(ctx context.Context, partition int, job mmodel.PersistJob, cause error) {
	job.Attempt++

	if job.Attempt >= q.maxAttempts {
		q.logger.Errorf("persistence job dropped after %d attempts, turn lost: %v", job.Attempt, cause)
		return
	}

	q.logger.Warnf("persistence job failed (attempt %d/%d), retrying: %v", job.Attempt, q.maxAttempts, cause)

	select {
	case q.partitions[partition] <- job:
	default:
		if err := q.publishOverflow(ctx, partition, job); err != nil {
			q.logger.Errorf("persistence job retry could not be re-queued: %v", err)
		}
	}
}

const overflowQueueName = "gateway.persist.overflow."

func (q *Queue) ensureDeclared(ch *amqp091.Channel) error {
	q.declareOnce.Do(func() {
		for i := 0; i < q.workers; i++ {
			_, err := ch.QueueDeclare(queueNameFor(i), true, false, false, false, nil)
			if err != nil {
				q.declareErr = err
				return
			}
		}
	})

	return q.declareErr
}

func queueNameFor(partition int) string {
	return overflowQueueName + strconv.Itoa(partition)
}

func (q *Queue) publishOverflow(ctx context.Context, partition int, job mmodel.PersistJob) error {
	ch, err := q.rmq.Channel()
	if err != nil {
		return err
	}

	if err := q.ensureDeclared(ch); err != nil {
		return err
	}

	body, err := msgpack.Marshal(job)
	if err != nil {
		return err
	}

	return ch.PublishWithContext(ctx, "", queueNameFor(partition), false, false, amqp091.Publishing{
		ContentType:  "application/msgpack",
		DeliveryMode: amqp091.Persistent,
		Body:         body,
	})
}

func (q *Queue) drainOverflow(partition int) {
	ch, err := q.rmq.Channel()
	if err != nil {
		q.logger.Warnf("overflow consumer for partition %d could not open channel: %v", partition, err)
		return
	}

	if err := q.ensureDeclared(ch); err != nil {
		q.logger.Warnf("overflow consumer for partition %d could not declare queue: %v", partition, err)
		return
	}

	deliveries, err := ch.Consume(queueNameFor(partition), "", false, false, false, false, nil)
	if err != nil {
		q.logger.Warnf("overflow consumer for partition %d could not start consuming: %v", partition, err)
		return
	}

	for d := range deliveries {
		var job mmodel.PersistJob
		if err := msgpack.Unmarshal(d.Body, &job); err != nil {
			q.logger.Errorf("overflow job undecodable, dropping: %v", err)
			_ = d.Nack(false, false)

			continue
		}

		q.process(context.Background(), partition, job)
		_ = d.Ack(false)
	}
}
