// Package scenario holds the data model shared by the scheduler,
// runner, evaluation engine and sinks: scenario definitions,
// run results, evaluation records and per-scenario run state.
package scenario

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultProtocol is the protocol assumed when a scenario does not
// name one.
const DefaultProtocol = "speed_test"

// Parameter defaults applied when a scenario omits them.
const (
	DefaultDuration = 10
	DefaultUplink   = "10"
	DefaultDownlink = "100"
)

// Spec is an immutable scenario definition loaded once per process
// lifetime. The ID is the correlation key for every downstream
// record.
type Spec struct {
	// ID uniquely identifies the scenario.
	ID string `yaml:"id" json:"id"`

	// Name is an optional human-readable label.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// Enabled controls whether the scenario is registered.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Protocol names the probe family. Only speed_test is
	// driven by the runner.
	Protocol string `yaml:"protocol,omitempty" json:"protocol,omitempty"`

	// Schedule describes when the scenario runs.
	Schedule ScheduleSpec `yaml:"schedule" json:"schedule"`

	// Parameters holds the target lists and probe settings.
	Parameters Parameters `yaml:"parameters" json:"parameters"`

	// Expectations are judged after every iteration.
	Expectations []Expectation `yaml:"expectations" json:"expectations"`

	// Targets is resolved from Parameters at load time.
	Targets []Target `yaml:"-" json:"targets,omitempty"`
}

// Parameters configures the probe invocations of a scenario.
type Parameters struct {
	// Private lists private-role servers as host[:port].
	Private []string `yaml:"private" json:"private"`

	// Public lists public-role servers as host[:port].
	Public []string `yaml:"public" json:"public"`

	// Duration is the per-direction test length in seconds.
	Duration int `yaml:"duration" json:"duration"`

	// Uplink is the upload bandwidth ceiling in Mbps.
	Uplink string `yaml:"uplink" json:"uplink"`

	// Downlink is the download bandwidth ceiling in Mbps.
	Downlink string `yaml:"downlink" json:"downlink"`
}

// ScheduleSpec is the declarative schedule of a scenario. Only the
// fields relevant to Mode are read.
type ScheduleSpec struct {
	Mode              string `yaml:"mode" json:"mode"`
	StartTime         string `yaml:"start_time,omitempty" json:"start_time,omitempty"`
	RecurringInterval int    `yaml:"recurring_interval,omitempty" json:"recurring_interval,omitempty"`
	RecurringTimes    int    `yaml:"recurring_times,omitempty" json:"recurring_times,omitempty"`
	Cron              string `yaml:"cron,omitempty" json:"cron,omitempty"`
	Timezone          string `yaml:"timezone,omitempty" json:"timezone,omitempty"`
	Interval          int    `yaml:"interval,omitempty" json:"interval,omitempty"`
	Unit              string `yaml:"unit,omitempty" json:"unit,omitempty"`
	MaxRuns           int    `yaml:"max_runs,omitempty" json:"max_runs,omitempty"`
	Time              string `yaml:"time,omitempty" json:"time,omitempty"`
	Day               string `yaml:"day,omitempty" json:"day,omitempty"`
	Minute            int    `yaml:"minute,omitempty" json:"minute,omitempty"`
}

// Role classifies a target as private or public infrastructure.
type Role string

const (
	RolePrivate Role = "private"
	RolePublic  Role = "public"
)

// DefaultPort is the iperf3 server port used when a target omits
// one.
const DefaultPort = 5201

// Target is one probe endpoint.
type Target struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	Role Role   `json:"role"`
}

// String returns the host:port label used as a test index.
func (t Target) String() string {
	return fmt.Sprintf("%s:%d", t.Host, t.Port)
}

// ParseTarget parses a server entry such as "10.0.0.5:5201",
// "iperf.example.net" or "tcp://host:5202/". A missing port
// defaults to DefaultPort.
func ParseTarget(raw string, role Role) (Target, error) {
	s := strings.TrimSpace(raw)
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	s = strings.TrimRight(s, "/")
	if s == "" {
		return Target{}, fmt.Errorf("empty server address %q", raw)
	}

	host, port := s, DefaultPort
	if i := strings.LastIndex(s, ":"); i >= 0 {
		host = s[:i]
		p, err := strconv.Atoi(s[i+1:])
		if err != nil {
			return Target{}, fmt.Errorf(
				"invalid port in %q: %w", raw, err,
			)
		}
		if p < 1 || p > 65535 {
			return Target{}, fmt.Errorf(
				"port out of range in %q", raw,
			)
		}
		port = p
	}
	if host == "" {
		return Target{}, fmt.Errorf("missing host in %q", raw)
	}
	return Target{Host: host, Port: port, Role: role}, nil
}

// ResolveTargets builds the ordered target list: private servers
// first, then public servers.
func (s *Spec) ResolveTargets() ([]Target, error) {
	targets := make(
		[]Target, 0,
		len(s.Parameters.Private)+len(s.Parameters.Public),
	)
	for _, raw := range s.Parameters.Private {
		t, err := ParseTarget(raw, RolePrivate)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	for _, raw := range s.Parameters.Public {
		t, err := ParseTarget(raw, RolePublic)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, nil
}

// ApplyDefaults fills unset protocol and parameter fields.
func (s *Spec) ApplyDefaults() {
	if s.Protocol == "" {
		s.Protocol = DefaultProtocol
	}
	if s.Schedule.Mode == "" {
		s.Schedule.Mode = "once"
	}
	if s.Parameters.Duration <= 0 {
		s.Parameters.Duration = DefaultDuration
	}
	if s.Parameters.Uplink == "" {
		s.Parameters.Uplink = DefaultUplink
	}
	if s.Parameters.Downlink == "" {
		s.Parameters.Downlink = DefaultDownlink
	}
	for i := range s.Expectations {
		s.Expectations[i].applyDefaults()
	}
}

// Values is an expected value: either a single scalar or a
// [low, high] pair. It decodes from a YAML/JSON scalar or list.
type Values []float64

// UnmarshalYAML accepts both `value: 50` and `value: [40, 60]`.
func (v *Values) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var f float64
		if err := node.Decode(&f); err != nil {
			return fmt.Errorf("expected number: %w", err)
		}
		*v = Values{f}
		return nil
	case yaml.SequenceNode:
		var fs []float64
		if err := node.Decode(&fs); err != nil {
			return fmt.Errorf("expected list of numbers: %w", err)
		}
		*v = fs
		return nil
	default:
		return fmt.Errorf(
			"expected number or list at line %d", node.Line,
		)
	}
}

// String renders a scalar as "50" and a pair as "[40, 60]".
func (v Values) String() string {
	if len(v) == 1 {
		return strconv.FormatFloat(v[0], 'f', -1, 64)
	}
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = strconv.FormatFloat(f, 'f', -1, 64)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
