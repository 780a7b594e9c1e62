package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func setupVAPIDRouter(options *webpush.Options) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &Handler{webpush: options}
	r.GET("/api/vapid_public_key", handler.GetVAPIDPublicKey)
	return r
}

func TestGetVAPIDPublicKey(t *testing.T) {
	testCases := []struct {
		name         string
		options      *webpush.Options
		expectedCode int
		expectedBody string
	}{
		{
			name:         "Configured",
			options:      &webpush.Options{VAPIDPublicKey: "test-public-key"},
			expectedCode: http.StatusOK,
			expectedBody: `{"vapid_public_key":"test-public-key"}`,
		},
		{
			name:         "Empty key",
			options:      &webpush.Options{},
			expectedCode: http.StatusServiceUnavailable,
			expectedBody: `{"error":"vapid keys are not configured"}`,
		},
		{
			name:         "Nil options",
			options:      nil,
			expectedCode: http.StatusServiceUnavailable,
			expectedBody: `{"error":"vapid keys are not configured"}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			router := setupVAPIDRouter(tc.options)

			w := httptest.NewRecorder()
			req, _ := http.NewRequest("GET", "/api/vapid_public_key", nil)
			router.ServeHTTP(w, req)

			assert.Equal(t, tc.expectedCode, w.Code)
			assert.JSONEq(t, tc.expectedBody, w.Body.String())
		})
	}
}
