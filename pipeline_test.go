package asynciter

import (
	"bufio"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/csimplestring/asynciter/errno"
	"github.com/csimplestring/asynciter/internal/testutil"
	"github.com/csimplestring/asynciter/iter"
	"github.com/csimplestring/asynciter/store"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func upper(ctx context.Context, line string) (string, error) {
	return strings.ToUpper(line), nil
}

func newTestPipeline(t *testing.T, options map[string]string, opts ...PipelineOption) (*Pipeline, string, string) {
	t.Helper()

	in, out := testutil.LocalDir(t), testutil.LocalDir(t)
	c, err := NewConfig(options)
	require.NoError(t, err)

	p, err := NewPipeline(in, out, append([]PipelineOption{WithConfig(c)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, p.Close())
	})
	return p, in, out
}

func TestNewPipeline_UnsupportedScheme(t *testing.T) {
	_, err := NewPipeline("ftp://host/in/", "mem://")
	assert.ErrorIs(t, err, errno.ErrIllegalArgument)
}

func TestPipeline_Run(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	clock := &manualClock{step: 10}
	p, in, out := newTestPipeline(t, nil, WithClock(clock), WithLogger(zap.New(core)))

	testutil.WriteLines(t, in+"?metadata=skip", "words.txt", "alpha", "beta", "gamma")

	r, err := p.Run(context.Background(), "words.txt", upper)
	require.NoError(t, err)

	assert.Equal(t, "ALPHA\nBETA\nGAMMA\n", testutil.ReadAll(t, out+"?metadata=skip", "words.txt"))
	assert.Equal(t, int64(3), r.Lines)
	assert.Equal(t, int64(0), r.Recovered)
	assert.Equal(t, int64(10), r.StartedAt)
	assert.Equal(t, int64(30), r.FinishedAt)
	assert.Equal(t, 20*time.Millisecond, r.Elapsed)

	assert.Equal(t, 1, logs.FilterMessage("pipeline started").Len())
	finished := logs.FilterMessage("pipeline finished").All()
	require.Len(t, finished, 1)
	assert.Equal(t, int64(3), finished[0].ContextMap()["lines"])

	assert.Equal(t, float64(3), promtest.ToFloat64(p.Metrics().Mapped))
}

func TestPipeline_RunNoOverwrite(t *testing.T) {
	p, in, _ := newTestPipeline(t, nil)
	testutil.WriteLines(t, in+"?metadata=skip", "words.txt", "a")

	_, err := p.Run(context.Background(), "words.txt", upper)
	require.NoError(t, err)

	_, err = p.Run(context.Background(), "words.txt", upper)
	assert.ErrorIs(t, err, errno.ErrFileAlreadyExists)
}

func TestPipeline_RunOverwrite(t *testing.T) {
	p, in, out := newTestPipeline(t, map[string]string{"overwrite": "true"})
	testutil.WriteLines(t, in+"?metadata=skip", "words.txt", "a")

	_, err := p.Run(context.Background(), "words.txt", upper)
	require.NoError(t, err)
	_, err = p.Run(context.Background(), "words.txt", func(ctx context.Context, line string) (string, error) {
		return line + line, nil
	})
	require.NoError(t, err)

	assert.Equal(t, "aa\n", testutil.ReadAll(t, out+"?metadata=skip", "words.txt"))
}

func TestPipeline_RunTransformFailure(t *testing.T) {
	p, in, out := newTestPipeline(t, nil)
	testutil.WriteLines(t, in+"?metadata=skip", "numbers.txt", "1", "two", "3")

	bad := errors.New("not a digit")
	_, err := p.Run(context.Background(), "numbers.txt", func(ctx context.Context, line string) (string, error) {
		if line == "two" {
			return "", bad
		}
		return line, nil
	})
	assert.ErrorIs(t, err, bad)

	s, err := store.New(out)
	require.NoError(t, err)
	defer s.Close()
	ok, err := s.Exists(context.Background(), "numbers.txt")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPipeline_RunMissingInput(t *testing.T) {
	p, _, _ := newTestPipeline(t, nil)

	_, err := p.Run(context.Background(), "missing.txt", upper)
	assert.ErrorIs(t, err, errno.ErrFileNotFound)

	_, err = p.Run(context.Background(), "missing.txt", nil)
	assert.ErrorIs(t, err, errno.ErrNullPointer)
}

func TestPipeline_RunRecoverUpstreamErrors(t *testing.T) {
	long := strings.Repeat("x", bufio.MaxScanTokenSize+1)

	p, in, out := newTestPipeline(t, map[string]string{"recoverUpstreamErrors": "true"})
	testutil.WriteLines(t, in+"?metadata=skip", "big.txt", "a", long, "b")

	r, err := p.Run(context.Background(), "big.txt", upper)
	require.NoError(t, err)
	assert.Equal(t, int64(1), r.Lines)
	assert.Equal(t, int64(1), r.Recovered)

	content := testutil.ReadAll(t, out+"?metadata=skip", "big.txt")
	lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "A", lines[0])
	assert.Contains(t, lines[1], `"error":`)
	assert.Contains(t, lines[1], "token too long")
}

func TestPipeline_RunWithoutRecoveryFails(t *testing.T) {
	long := strings.Repeat("x", bufio.MaxScanTokenSize+1)

	p, in, _ := newTestPipeline(t, nil)
	testutil.WriteLines(t, in+"?metadata=skip", "big.txt", "a", long)

	_, err := p.Run(context.Background(), "big.txt", upper)
	assert.ErrorIs(t, err, bufio.ErrTooLong)
}

func TestPipeline_RunTimeout(t *testing.T) {
	p, in, _ := newTestPipeline(t, map[string]string{"operationTimeout": "interval 20 milliseconds"})
	testutil.WriteLines(t, in+"?metadata=skip", "slow.txt", "a", "b")

	_, err := p.Run(context.Background(), "slow.txt", func(ctx context.Context, line string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

const rowSchema = `
message row {
	required binary name (STRING);
	required int64 count;
}`

func TestPipeline_ExportRows(t *testing.T) {
	ctx := context.Background()
	p, in, out := newTestPipeline(t, nil)

	s, err := store.New(in)
	require.NoError(t, err)
	defer s.Close()
	rows := iter.FromSlice([]map[string]any{
		{"name": []byte("a"), "count": int64(1)},
		{"name": []byte("b"), "count": int64(2)},
	})
	require.NoError(t, s.WriteRows(ctx, "rows.parquet", rowSchema, rows, false))

	r, err := p.ExportRows(ctx, "rows.parquet", "rows.jsonl")
	require.NoError(t, err)
	assert.Equal(t, int64(2), r.Lines)
	assert.Equal(t, "rows.jsonl", r.Output)

	content := testutil.ReadAll(t, out+"?metadata=skip", "rows.jsonl")
	lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"name":"a","count":1}`, lines[0])
	assert.JSONEq(t, `{"name":"b","count":2}`, lines[1])
}

func TestPipeline_Registerer(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, in, _ := newTestPipeline(t, map[string]string{"metricsNamespace": "test"}, WithRegisterer(reg))
	testutil.WriteLines(t, in+"?metadata=skip", "words.txt", "a", "b")

	_, err := p.Run(context.Background(), "words.txt", upper)
	require.NoError(t, err)

	n, err := promtest.GatherAndCount(reg, "test_mapped_values_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, float64(2), promtest.ToFloat64(p.Metrics().Mapped))
}

func TestPipeline_SameStore(t *testing.T) {
	dir := testutil.LocalDir(t)
	p, err := NewPipeline(dir, dir)
	require.NoError(t, err)
	assert.Same(t, p.in, p.out)

	testutil.WriteLines(t, dir+"?metadata=skip", "in.parquet")
	_, err = p.ExportRows(context.Background(), "in.parquet", "out.jsonl")
	assert.Error(t, err)
	assert.NoError(t, p.Close())
}

func TestJSONValue(t *testing.T) {
	got := jsonValue(map[string]any{
		"s":    []byte("x"),
		"list": []any{[]byte("y"), int64(1)},
		"m":    map[string]any{"k": []byte("z")},
	})
	assert.Equal(t, map[string]any{
		"s":    "x",
		"list": []any{"y", int64(1)},
		"m":    map[string]any{"k": "z"},
	}, got)
}
