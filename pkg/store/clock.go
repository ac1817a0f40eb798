// Copyright 2025 AUTHORS
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import "time"

// Clock is the only source of "now" the core consults. Tests inject a fixed
// or stepped clock so ordering assertions (latest_components, get_source_info
// lookback) don't race real wall-clock time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock is the default Clock, backed by time.Now.
var SystemClock Clock = systemClock{}

// timeLayout is the creation_date text format: ISO-8601 with a fixed-width
// six-digit (microsecond) fraction and an explicit +00:00 offset, always UTC.
const timeLayout = "2006-01-02T15:04:05.000000+00:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}
