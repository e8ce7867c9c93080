package asynciter

import (
	"strconv"
	"strings"
	"time"

	"github.com/barweiss/go-tuple"
	"github.com/csimplestring/asynciter/errno"
	"github.com/csimplestring/asynciter/internal/util"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/rotisserie/eris"
	duration "github.com/xhit/go-str2duration/v2"
)

// Config holds the raw options of a Pipeline, keyed by Setting.Key.
// Options missing from the map take the setting's default value.
type Config struct {
	Options map[string]string
}

// NewConfig merges options with the defaults of every known setting and
// checks that each value parses.
func NewConfig(options map[string]string) (*Config, error) {
	unknown := mapset.NewSet[string]()
	for k := range options {
		if !knownSettings.Contains(k) {
			unknown.Add(k)
		}
	}
	if unknown.Cardinality() > 0 {
		return nil, errno.IllegalArgument("unknown config options " + strings.Join(unknown.ToSlice(), ","))
	}

	c := &Config{Options: mergeGlobalConfigurations(globalConfigurations, options)}
	for _, check := range settingChecks {
		if err := check(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

type Setting[T any] struct {
	Key          string
	DefaultValue string
	FromString   func(s string) (T, error)
}

// From reads the setting from c, falling back to the default value.
func (s *Setting[T]) From(c *Config) (T, error) {
	raw := s.DefaultValue
	if c != nil {
		raw = util.GetMapValueOptional(c.Options, s.Key).OrElse(s.DefaultValue)
	}

	v, err := s.FromString(raw)
	if err != nil {
		return v, eris.Wrapf(err, "invalid value %q for %s", raw, s.Key)
	}
	return v, nil
}

// MustFrom is From for configs built by NewConfig, which already validated every setting.
func (s *Setting[T]) MustFrom(c *Config) T {
	v, err := s.From(c)
	if err != nil {
		panic(err)
	}
	return v
}

var timeDurationUnits = map[string]string{
	"nanosecond":  "ns",
	"microsecond": "us",
	"millisecond": "ms",
	"second":      "s",
	"minute":      "m",
	"hour":        "h",
	"day":         "d",
	"week":        "w",
}

// The string value of this config has to have the following format: interval <number> <unit>.
// Where <unit> is either week, day, hour, minute, second, millisecond, microsecond or nanosecond,
// singular or plural.
func parseDuration(s string) (time.Duration, error) {
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) != 3 {
		return 0, errno.IllegalArgument("can't parse duration from string " + s)
	}
	if fields[0] != "interval" {
		return 0, errno.IllegalArgument("this is not a valid duration starting with " + fields[0])
	}

	unit, ok := timeDurationUnits[strings.TrimSuffix(fields[2], "s")]
	if !ok {
		return 0, errno.IllegalArgument("unknown duration unit " + fields[2])
	}

	d, err := duration.ParseDuration(fields[1] + unit)
	if err != nil {
		return 0, eris.Wrap(err, s)
	}
	return d, nil
}

func parseBool(s string) (bool, error) {
	return strconv.ParseBool(strings.ToLower(s))
}

// ConfigOperationTimeout bounds a whole pipeline operation.
var ConfigOperationTimeout = &Setting[time.Duration]{
	Key:          "operationTimeout",
	DefaultValue: "interval 30 seconds",
	FromString:   parseDuration,
}

// ConfigRecoverUpstreamErrors turns read failures into error lines instead of failing the run.
var ConfigRecoverUpstreamErrors = &Setting[bool]{
	Key:          "recoverUpstreamErrors",
	DefaultValue: "false",
	FromString:   parseBool,
}

var ConfigOverwrite = &Setting[bool]{
	Key:          "overwrite",
	DefaultValue: "false",
	FromString:   parseBool,
}

var ConfigMetricsNamespace = &Setting[string]{
	Key:          "metricsNamespace",
	DefaultValue: "asynciter",
	FromString: func(s string) (string, error) {
		if s == "" {
			return "", errno.IllegalArgument("metrics namespace must not be empty")
		}
		return s, nil
	},
}

var globalConfigurations = configurations{
	tuple.New2(ConfigOperationTimeout.Key, ConfigOperationTimeout.DefaultValue),
	tuple.New2(ConfigRecoverUpstreamErrors.Key, ConfigRecoverUpstreamErrors.DefaultValue),
	tuple.New2(ConfigOverwrite.Key, ConfigOverwrite.DefaultValue),
	tuple.New2(ConfigMetricsNamespace.Key, ConfigMetricsNamespace.DefaultValue),
}

var knownSettings = mapset.NewSet(
	ConfigOperationTimeout.Key,
	ConfigRecoverUpstreamErrors.Key,
	ConfigOverwrite.Key,
	ConfigMetricsNamespace.Key,
)

var settingChecks = []func(c *Config) error{
	check(ConfigOperationTimeout),
	check(ConfigRecoverUpstreamErrors),
	check(ConfigOverwrite),
	check(ConfigMetricsNamespace),
}

func check[T any](s *Setting[T]) func(c *Config) error {
	return func(c *Config) error {
		_, err := s.From(c)
		return err
	}
}

type configurations []tuple.T2[string, string]

func mergeGlobalConfigurations(confs configurations, options map[string]string) map[string]string {
	res := make(map[string]string, len(options)+len(confs))
	for k, v := range options {
		res[k] = v
	}

	for _, v := range confs {
		if _, ok := res[v.V1]; !ok {
			res[v.V1] = v.V2
		}
	}
	return res
}
