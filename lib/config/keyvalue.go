// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// keys maps KEY=VALUE names to setters. Every value is an integer.
var keys = map[string]func(*Config, int64){
	"WORK_DAY_HOURS":      func(c *Config, v int64) { c.WorkDayHours = int(v) },
	"DAY_SIMULATION_TIME": func(c *Config, v int64) { c.DayDuration = time.Duration(v) * time.Second },
	"SIM_DURATION":        func(c *Config, v int64) { c.Days = int(v) },
	"BREAK_PROBABILITY":   func(c *Config, v int64) { c.BreakProbability = int(v) },
	"NOF_WORKERS":         func(c *Config, v int64) { c.Operators = int(v) },
	"NOF_USERS":           func(c *Config, v int64) { c.Users = int(v) },
	"NOF_WORKER_SEATS":    func(c *Config, v int64) { c.Counters = int(v) },
	"NOF_PAUSE":           func(c *Config, v int64) { c.PauseBudget = int(v) },
	"P_SERV_MIN":          func(c *Config, v int64) { c.VisitProbabilityMin = int(v) },
	"P_SERV_MAX":          func(c *Config, v int64) { c.VisitProbabilityMax = int(v) },
	"EXPLODE_THRESHOLD":   func(c *Config, v int64) { c.ExplodeThreshold = int(v) },
	"OFFICE_OPEN_TIME":    func(c *Config, v int64) { c.OpenMinute = int(v) },
	"OFFICE_CLOSE_TIME":   func(c *Config, v int64) { c.CloseMinute = int(v) },
	"GRACE_PERIOD_MS":     func(c *Config, v int64) { c.GracePeriod = time.Duration(v) * time.Millisecond },
	"MAX_REQUESTS":        func(c *Config, v int64) { c.MaxRequests = int(v) },
	"QUEUE_CAPACITY":      func(c *Config, v int64) { c.QueueCapacity = int(v) },
	"SEED":                func(c *Config, v int64) { c.Seed = uint64(v) },
}

// parseKeyValue applies KEY=VALUE lines from r on top of c. Blank
// lines, lines starting with '#', lines without '=' and unknown keys
// are ignored. A known key with a non-integer value is an error.
func parseKeyValue(c *Config, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		key, value, found := strings.Cut(text, "=")
		if !found {
			continue
		}
		setter, known := keys[strings.TrimSpace(key)]
		if !known {
			continue
		}
		number, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return fmt.Errorf("line %d: %s: %w", line, strings.TrimSpace(key), err)
		}
		setter(c, number)
	}
	return scanner.Err()
}
