package config

import (
	"errors"
	"fmt"
	"time"

	"digital.vasic.netprobe/pkg/logging"
	"digital.vasic.netprobe/pkg/scenario"
	"digital.vasic.netprobe/pkg/schedule"
)

// Validate checks global settings and every enabled scenario. It
// returns the valid enabled scenarios, with targets resolved, and
// every problem found. A malformed scenario is excluded without
// affecting the others.
func (c *Config) Validate(now time.Time) ([]*scenario.Spec, []*scenario.ConfigurationError) {
	var errs []*scenario.ConfigurationError

	g := c.GlobalSettings
	if _, err := logging.ParseLevel(g.LogLevel); err != nil {
		errs = append(errs, globalError("log_level", err.Error()))
	}
	if g.Tick.Std() <= 0 {
		errs = append(errs, globalError("tick", "tick must be positive"))
	}
	if g.GracePeriod.Std() < 0 {
		errs = append(errs, globalError("grace_period", "grace period must not be negative"))
	}

	var valid []*scenario.Spec
	ids := make(map[string]bool)
	for i := range c.Scenarios {
		spec := c.Scenarios[i]
		if !spec.Enabled {
			continue
		}
		if spec.ID != "" && ids[spec.ID] {
			errs = append(errs, &scenario.ConfigurationError{
				ScenarioID: spec.ID, Index: i, Field: "id",
				Message: fmt.Sprintf("duplicate ID: %s", spec.ID),
			})
			continue
		}
		ids[spec.ID] = true

		if scenarioErrs := validateScenario(&spec, i, now); len(scenarioErrs) > 0 {
			errs = append(errs, scenarioErrs...)
			continue
		}
		valid = append(valid, &spec)
	}
	return valid, errs
}

func validateScenario(spec *scenario.Spec, index int, now time.Time) []*scenario.ConfigurationError {
	var errs []*scenario.ConfigurationError
	add := func(field, msg string) {
		errs = append(errs, &scenario.ConfigurationError{
			ScenarioID: spec.ID, Index: index, Field: field, Message: msg,
		})
	}

	if spec.ID == "" {
		add("id", "scenario ID is required")
	}
	if spec.Protocol != scenario.DefaultProtocol {
		add("protocol", fmt.Sprintf("unsupported protocol %q", spec.Protocol))
	}

	if _, err := schedule.Parse(spec.Schedule, now); err != nil {
		var ce *scenario.ConfigurationError
		if errors.As(err, &ce) {
			add(ce.Field, ce.Message)
		} else {
			add("schedule", err.Error())
		}
	}

	targets, err := spec.ResolveTargets()
	switch {
	case err != nil:
		add("parameters", err.Error())
	case len(targets) == 0:
		add("parameters", "no targets configured")
	default:
		spec.Targets = targets
	}

	for j, exp := range spec.Expectations {
		if err := exp.Validate(); err != nil {
			var ce *scenario.ConfigurationError
			if errors.As(err, &ce) {
				add(fmt.Sprintf("expectations[%d].%s", j, ce.Field), ce.Message)
			} else {
				add(fmt.Sprintf("expectations[%d]", j), err.Error())
			}
		}
	}
	return errs
}

func globalError(field, msg string) *scenario.ConfigurationError {
	return &scenario.ConfigurationError{
		Index: -1, Field: "global_settings." + field, Message: msg,
	}
}
