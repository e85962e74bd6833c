package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromContext(t *testing.T) {
	t.Run("logger present in context", func(t *testing.T) {
		l := New()
		ctx := AddToContext(context.Background(), l)
		require.Equal(t, l, FromContext(ctx))
	})

	t.Run("missing logger falls back to a new one", func(t *testing.T) {
		l := FromContext(context.Background())
		require.NotNil(t, l)
	})
}
