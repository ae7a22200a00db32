// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Scale maps simulated office minutes onto wall-clock time: a work
// day of WorkDayMinutes simulated minutes lasts DayDuration of real
// time.
type Scale struct {
	WorkDayMinutes int
	DayDuration    time.Duration
}

// PerMinute is the wall-clock length of one simulated minute.
func (s Scale) PerMinute() time.Duration {
	if s.WorkDayMinutes <= 0 {
		return 0
	}
	return s.DayDuration / time.Duration(s.WorkDayMinutes)
}

// Minutes converts a simulated minute count to wall-clock time.
func (s Scale) Minutes(minutes float64) time.Duration {
	return time.Duration(minutes * float64(s.PerMinute()))
}

// Simulated converts a wall-clock duration to simulated minutes.
func (s Scale) Simulated(d time.Duration) float64 {
	if s.DayDuration <= 0 {
		return 0
	}
	return d.Seconds() / s.DayDuration.Seconds() * float64(s.WorkDayMinutes)
}
