package observability

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetaFromRequest(t *testing.T) {
	req := httptest.NewRequest("GET", "/ws", nil)
	req.RemoteAddr = "10.0.0.7:51234"
	req.Header.Set("X-Request-Id", "req-1")
	req.Header.Set("X-Device-Id", "dev-1")

	meta := MetaFromRequest(req)
	assert.Equal(t, RequestMeta{RequestID: "req-1", DeviceID: "dev-1", IP: "10.0.0.7"}, meta)

	req.Header.Set("X-Forwarded-For", " 203.0.113.9 , 10.0.0.1")
	assert.Equal(t, "203.0.113.9", MetaFromRequest(req).IP)
}

func TestMetaFromRequestGeneratesRequestID(t *testing.T) {
	req := httptest.NewRequest("GET", "/ws", nil)

	first := MetaFromRequest(req).RequestID
	second := MetaFromRequest(req).RequestID
	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}

func TestBuildHeaders(t *testing.T) {
	assert.Equal(t, map[string]string{"x-request-id": "r", "trace_id": "t"}, BuildHeaders("r", "t"))
	assert.Empty(t, BuildHeaders("", ""))
}
