package translate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUntranslatedPassesThrough(t *testing.T) {
	Configure(t.TempDir(), "xx_XX")
	assert.Equal(t, "peer does not support wt_slimweb", E(errors.New("peer does not support wt_slimweb")))
	assert.Equal(t, "", E(nil))
	assert.Equal(t, "2 peers", T("%d peers", 2))
}
