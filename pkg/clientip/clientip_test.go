package clientip

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRealClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "203.0.113.9:51234"
	r.Header.Set("X-Forwarded-For", "198.51.100.1")

	assert.Equal(t, "203.0.113.9", RealClientIP(r))

	r.RemoteAddr = "203.0.113.9"
	assert.Equal(t, "203.0.113.9", RealClientIP(r))
}

func TestBehindProxy(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.2:443"
	r.Header.Set("X-Forwarded-For", "198.51.100.1, 10.0.0.2")

	assert.Equal(t, "198.51.100.1", BehindProxy(r, []string{"10.0.0.2"}))
	assert.Equal(t, "10.0.0.2", BehindProxy(r, nil), "untrusted peer headers are ignored")

	r.Header.Set("X-Forwarded-For", "garbage")
	assert.Equal(t, "10.0.0.2", BehindProxy(r, []string{"10.0.0.2"}))
}
