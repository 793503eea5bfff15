package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpansWithoutInit(t *testing.T) {
	_, span := StartSpan(context.Background(), "noop")
	span.SetAttribute("records", 3)
	span.Fail(errors.New("ignored"))
	span.End()

	require.NoError(t, Shutdown(context.Background()))
}

func TestInitTracing_ExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultTracingConfig()
	cfg.Enabled = true
	cfg.Writer = &buf

	require.NoError(t, InitTracing(cfg))

	ctx, parent := StartSpan(context.Background(), "backup.run")
	parent.SetAttribute("run_id", "abc")
	_, child := StartSpan(ctx, "fetch")
	child.SetAttribute("records", int64(200))
	child.SetAttribute("partial", true)
	child.Fail(errors.New("boom"))
	child.End()
	parent.End()

	require.NoError(t, Shutdown(context.Background()))

	out := buf.String()
	assert.Contains(t, out, "backup.run")
	assert.Contains(t, out, "fetch")
	assert.Contains(t, out, "boom")
}

func TestInitTracing_Disabled(t *testing.T) {
	require.NoError(t, InitTracing(TracingConfig{}))
	require.NoError(t, Shutdown(context.Background()))
}
