package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"resume-builder/internal/bootstrap"
	"resume-builder/internal/shared/config"
	"resume-builder/internal/shared/metrics"
	"resume-builder/internal/shared/telemetry"
	"resume-builder/internal/workerproc"
)

// batchHandler builds the runner lazily and retries a failed build on the
// next batch.
type batchHandler struct {
	mu     sync.Mutex
	build  func() (workerproc.Runner, error)
	runner *workerproc.Runner
}

func (h *batchHandler) ready() (workerproc.Runner, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.runner != nil {
		return *h.runner, nil
	}
	r, err := h.build()
	if err != nil {
		return workerproc.Runner{}, err
	}
	h.runner = &r
	return r, nil
}

// Handle hands every record back to SQS when the app cannot start, so none
// are lost while the dependency is down.
func (h *batchHandler) Handle(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	runner, err := h.ready()
	if err != nil {
		telemetry.Error("lambda.bootstrap_failed", map[string]any{"error": err.Error(), "records": len(event.Records)})
		failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
		for _, record := range event.Records {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
		return events.SQSEventResponse{BatchItemFailures: failures}, nil
	}
	return processBatch(ctx, runner, event), nil
}

func buildRunner() (workerproc.Runner, error) {
	app, err := bootstrap.Build(config.Load())
	if err != nil {
		return workerproc.Runner{}, err
	}
	return app.ScoreRunner(), nil
}

// processBatch reports only retryable failures; poison records are dropped
// so they do not block the batch.
func processBatch(ctx context.Context, runner workerproc.Runner, event events.SQSEvent) events.SQSEventResponse {
	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range event.Records {
		job, err := runner.Handle(ctx, []byte(record.Body))
		if err == nil {
			metrics.IncWorkerProcessed()
			continue
		}
		fields := map[string]any{
			"sqs_message_id": record.MessageId,
			"resume_id":      job.ResumeID,
			"request_id":     job.RequestID,
			"error":          err.Error(),
		}
		if workerproc.IsPoison(err) {
			telemetry.Error("worker.score.dropped", fields)
		} else {
			telemetry.Error("worker.score.failed", fields)
			metrics.IncWorkerFailed()
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}
	return events.SQSEventResponse{BatchItemFailures: failures}
}

func main() {
	h := &batchHandler{build: buildRunner}
	lambda.Start(h.Handle)
}
