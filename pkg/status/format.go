// Copyright 2025 UMH Systems GmbH
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

package status

import (
	"fmt"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/goccy/go-json"
)

// DateLayout is ISO-8601 in UTC with second precision.
const DateLayout = "2006-01-02T15:04:05Z"

// FormatDate renders t in UTC, "-" for the zero time.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}

	return t.UTC().Format(DateLayout)
}

// FormatSeconds renders d truncated to seconds as
// "1 day 2 hours 3 minutes 4 seconds", leaving out zero units.
func FormatSeconds(d time.Duration) string {
	secs := int64(d / time.Second)
	if secs <= 0 {
		return "0 seconds"
	}

	parts := make([]string, 0, 4)
	add := func(n int64, unit string) {
		if n == 0 {
			return
		}

		if n > 1 {
			unit += "s"
		}

		parts = append(parts, fmt.Sprintf("%d %s", n, unit))
	}

	add(secs/86400, "day")
	add(secs%86400/3600, "hour")
	add(secs%3600/60, "minute")
	add(secs%60, "second")

	return strings.Join(parts, " ")
}

// FormatBytes renders n with binary units.
func FormatBytes(n uint64) string {
	return units.BytesSize(float64(n))
}

// Duration is a time.Duration that renders as seconds in JSON and as
// FormatSeconds text.
type Duration time.Duration

func (d Duration) String() string {
	return FormatSeconds(time.Duration(d))
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(int64(time.Duration(d) / time.Second))
}

// Date is a time.Time that renders with FormatDate and is null in JSON
// when zero.
type Date time.Time

func (d Date) String() string {
	return FormatDate(time.Time(d))
}

func (d Date) IsZero() bool {
	return time.Time(d).IsZero()
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}

	return json.Marshal(FormatDate(time.Time(d)))
}
