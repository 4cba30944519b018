package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStaticTokenAuthenticator_AcceptsConfiguredTokens(t *testing.T) {
	auth := StaticTokenAuthenticator([]string{"tok-a", "tok-b"})

	assert.True(t, auth("tok-a"))
	assert.True(t, auth("tok-b"))
	assert.False(t, auth("tok-c"))
	assert.False(t, auth(""))
}

func TestStaticTokenAuthenticator_EmptyListRejectsEverything(t *testing.T) {
	auth := StaticTokenAuthenticator(nil)

	assert.False(t, auth("anything"))
	assert.False(t, auth(""))
}
