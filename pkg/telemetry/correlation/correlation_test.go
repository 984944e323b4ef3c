package correlation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnsureCorrelationIDKeepsExisting(t *testing.T) {
	ctx := ContextWithCorrelationID(context.Background(), "abc")
	ctx, cid := EnsureCorrelationID(ctx)
	assert.Equal(t, "abc", cid)
	assert.Equal(t, "abc", ExtractCorrelationID(ctx))
}

func TestEnsureCorrelationIDGeneratesULID(t *testing.T) {
	_, cid := EnsureCorrelationID(context.Background())
	assert.Len(t, cid, 26)
}

func TestDetachCarriesCorrelation(t *testing.T) {
	parent, cancel := context.WithCancel(ContextWithCorrelationID(context.Background(), "req-1"))
	cancel()

	detached := Detach(parent)
	assert.NoError(t, detached.Err())
	assert.Equal(t, "req-1", ExtractCorrelationID(detached))
}
