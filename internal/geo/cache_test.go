package geo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/obsplane/observability/internal/cache"
	"github.com/obsplane/observability/internal/models"
)

func TestCachedLookup_FallsThroughToInnerWhenCacheDisabled(t *testing.T) {
	ca, err := cache.NewCache("")
	require.NoError(t, err)

	calls := 0
	inner := lookupFunc(func(ip string) (models.Geo, bool) {
		calls++
		return models.Geo{Country: "US"}, true
	})

	wrapped := NewCachedLookup(inner, ca, time.Hour)
	g, ok := wrapped.Lookup("1.2.3.4")
	require.True(t, ok)
	require.Equal(t, "US", g.Country)

	_, _ = wrapped.Lookup("1.2.3.4")
	require.Equal(t, 2, calls, "a disabled cache never short-circuits the inner lookup")
}

func TestCachedLookup_PropagatesMiss(t *testing.T) {
	ca, err := cache.NewCache("")
	require.NoError(t, err)

	wrapped := NewCachedLookup(NoopLookup{}, ca, time.Hour)
	_, ok := wrapped.Lookup("1.2.3.4")
	require.False(t, ok)
}
