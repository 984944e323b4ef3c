package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	encoded, err := Hash("ffk_live_abc")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$m=65536,t=1,p=4$"))

	assert.True(t, Verify("ffk_live_abc", encoded))
	assert.False(t, Verify("ffk_live_abd", encoded))
	assert.False(t, NeedsRehash(encoded))
}

func TestVerifyRejectsMalformedHashes(t *testing.T) {
	for _, encoded := range []string{
		"",
		"plain",
		"$argon2i$v=19$m=65536,t=1,p=4$c2FsdA$a2V5",
		"$argon2id$v=16$m=65536,t=1,p=4$c2FsdA$a2V5",
		"$argon2id$v=19$m=0,t=1,p=4$c2FsdA$a2V5",
		"$argon2id$v=19$m=65536,t=1,p=4$!!$a2V5",
	} {
		assert.False(t, Verify("secret", encoded), encoded)
	}
}

func TestNeedsRehash(t *testing.T) {
	weak, err := HashWith("secret", Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32})
	require.NoError(t, err)
	assert.True(t, Verify("secret", weak))
	assert.True(t, NeedsRehash(weak))
	assert.True(t, NeedsRehash("garbage"))
}
