package s3

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHostOnly(t *testing.T) {
	h, tls := hostOnly("http://localhost:9000", false)
	assert.Equal(t, "localhost:9000", h)
	assert.False(t, tls)

	h, tls = hostOnly("https://s3.example.com", false)
	assert.Equal(t, "s3.example.com", h)
	assert.True(t, tls)

	h, tls = hostOnly("minio:9000", true)
	assert.Equal(t, "minio:9000", h)
	assert.True(t, tls)
}
