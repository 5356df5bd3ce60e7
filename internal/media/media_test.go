package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventKind_String(t *testing.T) {
	assert.Equal(t, "ready", EventReady.String())
	assert.Equal(t, "timeupdate", EventTimeUpdate.String())
	assert.Equal(t, "ended", EventEnded.String())
	assert.Equal(t, "error", EventError.String())
	assert.Equal(t, "unknown", EventKind(0).String())
}
