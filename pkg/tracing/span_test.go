package tracing

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afscgap-dse/flatindex/pkg/logger"
)

func TestSpanTree(t *testing.T) {
	ctx := logger.WithRunID(context.Background(), "run-7")
	ctx, root := Start(ctx, "index")
	assert.Equal(t, "run-7", root.TraceID)
	assert.Same(t, root, FromContext(ctx))

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, child := Start(ctx, "field")
			child.SetAttr("entries", 3)
			child.End()
		}()
	}
	wg.Wait()
	root.End()

	children := root.Children()
	require.Len(t, children, 4)
	for _, c := range children {
		assert.Equal(t, "run-7", c.TraceID)
		v, ok := c.Attr("entries")
		assert.True(t, ok)
		assert.Equal(t, 3, v)
	}
	assert.GreaterOrEqual(t, root.Duration, children[0].Duration)
}

func TestFromContextEmpty(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
}
