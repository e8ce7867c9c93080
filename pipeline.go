package asynciter

import (
	"context"
	"encoding/json"
	"time"

	"github.com/csimplestring/asynciter/errno"
	"github.com/csimplestring/asynciter/internal/util"
	"github.com/csimplestring/asynciter/iter"
	"github.com/csimplestring/asynciter/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"github.com/samber/mo"
	"go.uber.org/zap"
)

// Pipeline transforms files of an input store into files of an output store.
// Every file is streamed: lines are pulled from the input through a mapping
// iterator and written to the output as they are produced.
type Pipeline struct {
	input  string
	output string
	in     *util.Lazy[store.Store]
	out    *util.Lazy[store.Store]

	config     *Config
	clock      Clock
	log        *zap.Logger
	registerer mo.Option[prometheus.Registerer]
	metrics    *iter.Metrics
}

type PipelineOption func(p *Pipeline)

func WithConfig(c *Config) PipelineOption {
	return func(p *Pipeline) {
		p.config = c
	}
}

func WithClock(c Clock) PipelineOption {
	return func(p *Pipeline) {
		p.clock = c
	}
}

func WithLogger(log *zap.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.log = log
	}
}

// WithRegisterer registers the pipeline metrics with reg.
func WithRegisterer(reg prometheus.Registerer) PipelineOption {
	return func(p *Pipeline) {
		p.registerer = mo.Some(reg)
	}
}

// Report describes one finished pipeline operation.
type Report struct {
	Input  string
	Output string
	// Lines is the number of lines produced by the transformation.
	Lines int64
	// Recovered is the number of read failures written as error lines.
	Recovered  int64
	StartedAt  int64
	FinishedAt int64
	Elapsed    time.Duration
}

// NewPipeline creates a pipeline between the directories input and output,
// given as urls like "file:///path/to/dir/" or "gs://bucket/dir/".
// Stores are opened on first use.
func NewPipeline(input string, output string, opts ...PipelineOption) (*Pipeline, error) {
	for _, dir := range []string{input, output} {
		if !store.Supports(dir) {
			return nil, errno.UnsupportedFileSystem("unsupported schema " + dir + " for pipeline")
		}
	}

	p := &Pipeline{
		input:  input,
		output: output,
		clock:  &SystemClock{},
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.config == nil {
		c, err := NewConfig(nil)
		if err != nil {
			return nil, err
		}
		p.config = c
	}

	ns, err := ConfigMetricsNamespace.From(p.config)
	if err != nil {
		return nil, err
	}
	metrics, err := iter.NewMetrics(ns, p.registerer.OrEmpty())
	if err != nil {
		return nil, err
	}
	p.metrics = metrics

	p.in = util.LazyValue(func() (store.Store, error) {
		return store.New(input)
	})
	p.out = p.in
	if output != input {
		p.out = util.LazyValue(func() (store.Store, error) {
			return store.New(output)
		})
	}
	return p, nil
}

func (p *Pipeline) Metrics() *iter.Metrics {
	return p.metrics
}

// Run writes fn applied to every line of the input file name into the output file of the same name.
// When fn fails, the input file is released and nothing is written.
func (p *Pipeline) Run(ctx context.Context, name string, fn iter.TransformFunc[string, string]) (*Report, error) {
	if fn == nil {
		return nil, errno.NullPointer("fn")
	}

	return p.execute(ctx, name, name, func(ctx context.Context, in store.Store, r *Report) (iter.Source[string], error) {
		src, err := in.Read(ctx, name)
		if err != nil {
			return nil, err
		}

		return iter.Map(src, func(ctx context.Context, line string) (string, error) {
			out, err := fn(ctx, line)
			if err != nil {
				return "", err
			}
			r.Lines++
			return out, nil
		}, p.mapOptions(r)...), nil
	})
}

// ExportRows writes every row of the parquet file name as a JSON line into outName.
func (p *Pipeline) ExportRows(ctx context.Context, name string, outName string) (*Report, error) {
	return p.execute(ctx, name, outName, func(ctx context.Context, in store.Store, r *Report) (iter.Source[string], error) {
		rows, err := in.ReadRows(ctx, name)
		if err != nil {
			return nil, err
		}

		return iter.Map(rows, func(ctx context.Context, row map[string]any) (string, error) {
			b, err := json.Marshal(jsonValue(row))
			if err != nil {
				return "", eris.Wrap(err, "encode row")
			}
			r.Lines++
			return string(b), nil
		}, p.mapOptions(r)...), nil
	})
}

// Close closes the stores opened so far.
func (p *Pipeline) Close() error {
	var err error
	for _, l := range []*util.Lazy[store.Store]{p.in, p.out} {
		if !l.Evaluated() {
			continue
		}
		if s, getErr := l.Get(); getErr == nil {
			if closeErr := s.Close(); closeErr != nil {
				err = eris.Wrap(closeErr, "close store "+s.Root())
			}
		}
		if p.in == p.out {
			break
		}
	}
	return err
}

type openFunc func(ctx context.Context, in store.Store, r *Report) (iter.Source[string], error)

func (p *Pipeline) execute(ctx context.Context, input string, output string, open openFunc) (*Report, error) {
	in, err := p.in.Get()
	if err != nil {
		return nil, err
	}
	out, err := p.out.Get()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, ConfigOperationTimeout.MustFrom(p.config))
	defer cancel()

	r := &Report{Input: input, Output: output, StartedAt: p.clock.NowInMillis()}
	start := p.clock.NowInNano()
	log := p.log.With(zap.String("input", in.Root()+input), zap.String("output", out.Root()+output))
	log.Info("pipeline started")

	lines, err := open(ctx, in, r)
	if err != nil {
		log.Error("pipeline failed to open input", zap.Error(err))
		return nil, err
	}

	if err := out.Write(ctx, output, lines, ConfigOverwrite.MustFrom(p.config)); err != nil {
		log.Error("pipeline failed", zap.Error(err), zap.Int64("lines", r.Lines))
		return nil, err
	}

	r.FinishedAt = p.clock.NowInMillis()
	r.Elapsed = time.Duration(p.clock.NowInNano() - start)
	log.Info("pipeline finished",
		zap.Int64("lines", r.Lines),
		zap.Int64("recovered", r.Recovered),
		zap.Duration("elapsed", r.Elapsed))
	return r, nil
}

func (p *Pipeline) mapOptions(r *Report) []iter.MapOption[string] {
	opts := []iter.MapOption[string]{
		iter.WithLogger[string](p.log),
		iter.WithMetrics[string](p.metrics),
	}
	if ConfigRecoverUpstreamErrors.MustFrom(p.config) {
		opts = append(opts, iter.WithErrorTransform(func(ctx context.Context, err error) (string, error) {
			r.Recovered++
			p.log.Warn("recovered read failure", zap.String("input", r.Input), zap.Error(err))
			return errorLine(err)
		}))
	}
	return opts
}

func errorLine(err error) (string, error) {
	b, mErr := json.Marshal(map[string]string{"error": err.Error()})
	if mErr != nil {
		return "", eris.Wrap(mErr, "encode error line")
	}
	return string(b), nil
}

// jsonValue renders parquet binary values as strings.
func jsonValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = jsonValue(e)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = jsonValue(e)
		}
		return s
	}
	return v
}
