package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/csimplestring/asynciter"
	"github.com/csimplestring/asynciter/iter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

var ops = map[string]iter.TransformFunc[string, string]{
	"identity": func(ctx context.Context, line string) (string, error) {
		return line, nil
	},
	"upper": func(ctx context.Context, line string) (string, error) {
		return strings.ToUpper(line), nil
	},
	"lower": func(ctx context.Context, line string) (string, error) {
		return strings.ToLower(line), nil
	},
	"trim": func(ctx context.Context, line string) (string, error) {
		return strings.TrimSpace(line), nil
	},
}

type flags struct {
	in      string
	out     string
	options map[string]string
	debug   bool
}

func (f *flags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.in, "in", "", "input directory url, e.g. file:///data/in/")
	fs.StringVar(&f.out, "out", "", "output directory url, e.g. gs://bucket/out/")
	fs.StringToStringVar(&f.options, "option", nil, "pipeline option key=value, e.g. overwrite=true")
	fs.BoolVar(&f.debug, "debug", false, "development logging at debug level")
}

func (f *flags) pipeline() (*asynciter.Pipeline, *zap.Logger, error) {
	log, err := zap.NewProduction()
	if f.debug {
		log, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, nil, err
	}

	c, err := asynciter.NewConfig(f.options)
	if err != nil {
		return nil, nil, err
	}

	p, err := asynciter.NewPipeline(f.in, f.out,
		asynciter.WithConfig(c),
		asynciter.WithLogger(log),
		asynciter.WithRegisterer(prometheus.DefaultRegisterer))
	if err != nil {
		return nil, nil, err
	}
	return p, log, nil
}

func runCmd() *cobra.Command {
	f := &flags{}
	var file, op string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Transform every line of a file",
		Example: `  $ itermap run --in file:///data/in/ --out file:///data/out/ --file words.txt --op upper
  `,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fn, ok := ops[op]
			if !ok {
				return eris.Errorf("unknown op %q", op)
			}

			p, log, err := f.pipeline()
			if err != nil {
				return err
			}
			defer log.Sync()
			defer p.Close()

			r, err := p.Run(cmd.Context(), file, fn)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d lines in %s\n", r.Output, r.Lines, r.Elapsed)
			return nil
		},
	}

	f.register(cmd.Flags())
	cmd.Flags().StringVar(&file, "file", "", "file name inside the input directory")
	cmd.Flags().StringVar(&op, "op", "identity", "line transformation: identity, upper, lower or trim")
	for _, name := range []string{"in", "out", "file"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func exportCmd() *cobra.Command {
	f := &flags{}
	var file, target string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the rows of a parquet file as JSON lines",
		Example: `  $ itermap export --in file:///data/in/ --out file:///data/out/ --file rows.parquet --to rows.jsonl
  `,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, log, err := f.pipeline()
			if err != nil {
				return err
			}
			defer log.Sync()
			defer p.Close()

			r, err := p.ExportRows(cmd.Context(), file, target)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rows in %s\n", r.Output, r.Lines, r.Elapsed)
			return nil
		},
	}

	f.register(cmd.Flags())
	cmd.Flags().StringVar(&file, "file", "", "parquet file name inside the input directory")
	cmd.Flags().StringVar(&target, "to", "", "JSON lines file name inside the output directory")
	for _, name := range []string{"in", "out", "file", "to"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:  "itermap",
		Long: "itermap streams files between blob stores, transforming them on the way.",
		// usage is noise when a store fails
		SilenceUsage: true,
	}
	cmd.AddCommand(runCmd(), exportCmd())
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
