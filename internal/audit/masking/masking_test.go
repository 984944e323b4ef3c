package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", MaskSecret("  "))
	assert.Equal(t, "ffk_live_****9c1e", MaskSecret("ffk_live_0a1b2c3d4e5f9c1e"))
	assert.Equal(t, "ffk_live_****", MaskSecret("ffk_live_abc"))
	assert.Equal(t, "****", MaskSecret("short"))
}

func TestMaskValues(t *testing.T) {
	masked := MaskValues(map[string]any{
		"operator_key": "ffk_live_0a1b2c3d4e5f9c1e",
		"attempts":     3,
		"nested":       map[string]any{"token": "tok_abcdefghijkl"},
		"":             "dropped",
	})

	assert.Equal(t, "ffk_live_****9c1e", masked["operator_key"])
	assert.Equal(t, 3, masked["attempts"])
	assert.Equal(t, map[string]any{"token": "tok_****ijkl"}, masked["nested"])
	assert.NotContains(t, masked, "")
	assert.Nil(t, MaskValues(nil))
}
