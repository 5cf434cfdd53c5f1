package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestSystemHandler(t *testing.T) {
	healthy := true
	h := NewSystemHandler("1.2.3", pingFunc(func(context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("connection refused")
	}))
	router := gin.New()
	router.GET("/ping", h.Ping)
	router.GET("/ready", h.Ready)
	router.GET("/info", h.GetSystemInfo)

	w := perform(t, router, http.MethodGet, "/ping", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var pong PingResponse
	decodeData(t, w, &pong)
	assert.Equal(t, "pong", pong.Message)

	w = perform(t, router, http.MethodGet, "/info", nil)
	var info SystemInfoResponse
	decodeData(t, w, &info)
	assert.Equal(t, "1.2.3", info.Version)

	assert.Equal(t, http.StatusOK, perform(t, router, http.MethodGet, "/ready", nil).Code)
	healthy = false
	assert.Equal(t, http.StatusServiceUnavailable, perform(t, router, http.MethodGet, "/ready", nil).Code)
}
