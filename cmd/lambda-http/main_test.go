package main

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthRequest() events.APIGatewayV2HTTPRequest {
	return events.APIGatewayV2HTTPRequest{
		RawPath: "/api/health",
		RequestContext: events.APIGatewayV2HTTPRequestContext{
			HTTP: events.APIGatewayV2HTTPRequestContextHTTPDescription{
				Method: http.MethodGet,
				Path:   "/api/health",
			},
		},
	}
}

func TestHandleProxiesToRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	builds := 0
	p := &apiProxy{build: func() (*gin.Engine, error) {
		builds++
		r := gin.New()
		r.GET("/api/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
		return r, nil
	}}

	for range 2 {
		resp, err := p.Handle(context.Background(), healthRequest())
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Body, `"ok"`)
	}
	assert.Equal(t, 1, builds)
}

func TestHandleRetriesFailedBootstrap(t *testing.T) {
	gin.SetMode(gin.TestMode)
	fail := true
	p := &apiProxy{build: func() (*gin.Engine, error) {
		if fail {
			return nil, errors.New("db unreachable")
		}
		r := gin.New()
		r.GET("/api/health", func(c *gin.Context) { c.Status(http.StatusNoContent) })
		return r, nil
	}}

	resp, err := p.Handle(context.Background(), healthRequest())
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "5", resp.Headers["Retry-After"])

	fail = false
	resp, err = p.Handle(context.Background(), healthRequest())
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
