package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-http

import (
	"context"
	"net/http"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"

	"resume-builder/internal/bootstrap"
	"resume-builder/internal/shared/config"
	"resume-builder/internal/shared/telemetry"
)

// apiProxy builds the router on the first invocation. A failed build is
// retried on the next invocation instead of poisoning the warm container.
type apiProxy struct {
	mu    sync.Mutex
	build func() (*gin.Engine, error)
	proxy *ginadapter.GinLambdaV2
}

func (p *apiProxy) adapter() (*ginadapter.GinLambdaV2, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.proxy != nil {
		return p.proxy, nil
	}
	router, err := p.build()
	if err != nil {
		return nil, err
	}
	p.proxy = ginadapter.NewV2(router)
	return p.proxy, nil
}

func (p *apiProxy) Handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	adapter, err := p.adapter()
	if err != nil {
		telemetry.Error("lambda.bootstrap_failed", map[string]any{
			"error": err.Error(),
			"path":  req.RawPath,
		})
		return events.APIGatewayV2HTTPResponse{
			StatusCode: http.StatusServiceUnavailable,
			Headers:    map[string]string{"Content-Type": "application/json", "Retry-After": "5"},
			Body:       `{"error":{"code":"unavailable","message":"service is starting"}}`,
		}, nil
	}
	return adapter.ProxyWithContext(ctx, req)
}

func buildRouter() (*gin.Engine, error) {
	app, err := bootstrap.Build(config.Load())
	if err != nil {
		return nil, err
	}
	return app.Router, nil
}

func main() {
	p := &apiProxy{build: buildRouter}
	lambda.Start(p.Handle)
}
