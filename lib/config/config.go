// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/postoffice/lib/clock"
	"github.com/bureau-foundation/postoffice/lib/codec"
	"github.com/bureau-foundation/postoffice/lib/office"
)

// EnvVar names the environment variable holding the configuration
// path.
const EnvVar = "POSTOFFICE_CONFIG"

// Hard limits. Larger values in a configuration file are clamped.
const (
	MaxOperators = 200
	MaxUsers     = 2000
	MaxCounters  = 200
	MaxDays      = 10
)

// Config holds every simulation parameter.
type Config struct {
	// WorkDayHours is the length of the simulated work day.
	WorkDayHours int `yaml:"work_day_hours"`

	// DayDuration is the wall-clock time one simulated day takes.
	DayDuration time.Duration `yaml:"day_duration"`

	// Days is the number of simulated days.
	Days int `yaml:"days"`

	// BreakProbability is the percent chance an operator takes a
	// break each time it looks for the next ticket.
	BreakProbability int `yaml:"break_probability"`

	Operators int `yaml:"operators"`
	Users     int `yaml:"users"`
	Counters  int `yaml:"counters"`

	// PauseBudget caps the breaks taken over the whole simulation.
	PauseBudget int `yaml:"pause_budget"`

	// VisitProbabilityMin and VisitProbabilityMax bound, in percent,
	// the personal probability each user draws once at start.
	VisitProbabilityMin int `yaml:"visit_probability_min"`
	VisitProbabilityMax int `yaml:"visit_probability_max"`

	// ExplodeThreshold aborts the simulation when more tickets than
	// this are waiting across all services.
	ExplodeThreshold int `yaml:"explode_threshold"`

	// OpenMinute and CloseMinute delimit the opening hours in
	// simulated minutes since the start of the work day.
	OpenMinute  int `yaml:"open_minute"`
	CloseMinute int `yaml:"close_minute"`

	// GracePeriod is how long the director lets in-flight work settle
	// after closing the office.
	GracePeriod time.Duration `yaml:"grace_period"`

	MaxRequests   int `yaml:"max_requests"`
	QueueCapacity int `yaml:"queue_capacity"`

	// Seed makes the simulation reproducible. Zero picks a random
	// seed.
	Seed uint64 `yaml:"seed"`

	Services office.Catalog `yaml:"services"`

	// OperatorServices pins the service of each operator by index.
	// Operators beyond its length draw a random service.
	OperatorServices []office.ServiceID `yaml:"operator_services"`

	// CounterServices pins the daily service of each counter by
	// index. Counters beyond its length draw a random service daily.
	CounterServices []office.ServiceID `yaml:"counter_services"`
}

// Default returns the reference configuration.
func Default() *Config {
	return &Config{
		WorkDayHours:        8,
		DayDuration:         5 * time.Second,
		Days:                5,
		BreakProbability:    0,
		Operators:           8,
		Users:               150,
		Counters:            8,
		PauseBudget:         3,
		VisitProbabilityMin: 70,
		VisitProbabilityMax: 100,
		ExplodeThreshold:    1000,
		OpenMinute:          0,
		CloseMinute:         480,
		GracePeriod:         2 * time.Second,
		MaxRequests:         2000,
		QueueCapacity:       2000,
		Services:            office.DefaultCatalog(),
	}
}

// WorkDayMinutes is the simulated length of a day.
func (c *Config) WorkDayMinutes() int { return c.WorkDayHours * 60 }

// Scale maps simulated minutes to wall-clock time.
func (c *Config) Scale() clock.Scale {
	return clock.Scale{WorkDayMinutes: c.WorkDayMinutes(), DayDuration: c.DayDuration}
}

// BaseServiceTime is the wall-clock baseline of one service.
func (c *Config) BaseServiceTime(service office.ServiceID) time.Duration {
	return c.Scale().Minutes(c.Services[service].Minutes)
}

// clamp applies the hard limits.
func (c *Config) clamp() {
	c.Operators = min(c.Operators, MaxOperators)
	c.Users = min(c.Users, MaxUsers)
	c.Counters = min(c.Counters, MaxCounters)
	c.Days = min(c.Days, MaxDays)
}

// Validate reports every inconsistency at once.
func (c *Config) Validate() error {
	var problems []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Errorf(format, args...))
		}
	}

	check(c.WorkDayHours > 0, "work day hours must be positive, got %d", c.WorkDayHours)
	check(c.DayDuration > 0, "day duration must be positive, got %v", c.DayDuration)
	check(c.Days > 0, "days must be positive, got %d", c.Days)
	check(c.BreakProbability >= 0 && c.BreakProbability <= 100, "break probability must be 0..100, got %d", c.BreakProbability)
	check(c.Operators > 0, "operators must be positive, got %d", c.Operators)
	check(c.Users >= 0, "users must not be negative, got %d", c.Users)
	check(c.Counters > 0, "counters must be positive, got %d", c.Counters)
	check(c.PauseBudget >= 0, "pause budget must not be negative, got %d", c.PauseBudget)
	check(c.VisitProbabilityMin >= 0 && c.VisitProbabilityMax <= 100 && c.VisitProbabilityMin <= c.VisitProbabilityMax,
		"visit probability range must satisfy 0 <= min <= max <= 100, got %d..%d", c.VisitProbabilityMin, c.VisitProbabilityMax)
	check(c.ExplodeThreshold > 0, "explode threshold must be positive, got %d", c.ExplodeThreshold)
	check(c.OpenMinute >= 0 && c.CloseMinute > c.OpenMinute+1,
		"opening hours must satisfy 0 <= open < close-1, got %d..%d", c.OpenMinute, c.CloseMinute)
	check(c.CloseMinute <= c.WorkDayMinutes(), "close minute %d is after the end of the work day (%d)", c.CloseMinute, c.WorkDayMinutes())
	check(c.GracePeriod >= 0, "grace period must not be negative, got %v", c.GracePeriod)
	check(c.MaxRequests > 0, "max requests must be positive, got %d", c.MaxRequests)
	check(c.QueueCapacity > 0, "queue capacity must be positive, got %d", c.QueueCapacity)

	if err := c.Services.Validate(); err != nil {
		problems = append(problems, err)
	}
	for index, service := range c.OperatorServices {
		check(c.Services.Valid(service), "operator %d pinned to unknown service %d", index, service)
	}
	for index, service := range c.CounterServices {
		check(c.Services.Valid(service), "counter %d pinned to unknown service %d", index, service)
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(problems...))
	}
	return nil
}

// Digest identifies the configuration: the BLAKE3 hash of its
// deterministic CBOR encoding, hex-encoded. Two runs with the same
// digest ran with the same parameters.
func (c *Config) Digest() string {
	data, err := codec.Marshal(c)
	if err != nil {
		panic("config: encoding for digest: " + err.Error())
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
