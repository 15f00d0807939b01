package main

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"github.com/streadway/amqp"

	"resume-builder/internal/queue"
	"resume-builder/internal/shared/config"
	"resume-builder/internal/shared/metrics"
	"resume-builder/internal/shared/telemetry"
	"resume-builder/internal/workerproc"
)

func runAMQP(ctx context.Context, cfg config.Config, runner workerproc.Runner, concurrency int, wg *sync.WaitGroup) error {
	if strings.TrimSpace(cfg.AMQPURL) == "" {
		return errors.New("AMQP_URL is required")
	}
	conn, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := queue.DeclareQueue(ch, cfg.AMQPQueue); err != nil {
		return err
	}
	if err := ch.Qos(concurrency, 0, false); err != nil {
		return err
	}

	deliveries, err := ch.Consume(
		cfg.AMQPQueue,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return err
	}

	log.Printf("worker started backend=amqp queue=%s concurrency=%d", cfg.AMQPQueue, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case d, ok := <-deliveries:
					if !ok {
						return
					}
					handleDelivery(ctx, runner, d)
				}
			}
		}()
	}

	<-ctx.Done()
	return nil
}

// handleDelivery acks successes, rejects poison jobs and requeues a failed
// job once before dropping it.
func handleDelivery(ctx context.Context, runner workerproc.Runner, d amqp.Delivery) {
	job, err := runner.Handle(ctx, d.Body)

	fields := map[string]any{
		"delivery_tag": d.DeliveryTag,
		"redelivered":  d.Redelivered,
		"resume_id":    job.ResumeID,
	}
	if requestID := firstNonEmpty(job.RequestID, d.CorrelationId); requestID != "" {
		fields["request_id"] = requestID
	}

	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			fields["error"] = ackErr.Error()
			telemetry.Error("worker.score.ack_failed", fields)
			return
		}
		telemetry.Info("worker.score.completed", fields)
		metrics.IncWorkerProcessed()
	case workerproc.IsPoison(err):
		fields["error"] = err.Error()
		fields["body_digest"] = workerproc.Digest(d.Body)
		telemetry.Error("worker.score.unrecoverable", fields)
		_ = d.Reject(false)
	default:
		fields["error"] = err.Error()
		telemetry.Error("worker.score.failed", fields)
		metrics.IncWorkerFailed()
		_ = d.Nack(false, !d.Redelivered)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
