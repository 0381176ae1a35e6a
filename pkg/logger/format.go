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

package logger

import (
	"fmt"
	"sort"

	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

// prettyEncoder writes entries as
//
//	[INFO]	[pipeline/pipeline.go:120]	[Pipeline]	Entering fetch state - imports=3
//
// Timestamps are left out because the supervisor prefixes every line.
// Context fields added through With are kept in the embedded map encoder.
type prettyEncoder struct {
	*zapcore.MapObjectEncoder

	pool buffer.Pool
}

func newPrettyEncoder(_ zapcore.EncoderConfig) zapcore.Encoder {
	return &prettyEncoder{
		MapObjectEncoder: zapcore.NewMapObjectEncoder(),
		pool:             buffer.NewPool(),
	}
}

func (e *prettyEncoder) Clone() zapcore.Encoder {
	clone := zapcore.NewMapObjectEncoder()
	for k, v := range e.Fields {
		clone.Fields[k] = v
	}

	return &prettyEncoder{MapObjectEncoder: clone, pool: e.pool}
}

func (e *prettyEncoder) EncodeEntry(entry zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	line := e.pool.Get()

	line.AppendString("[")
	line.AppendString(entry.Level.CapitalString())
	line.AppendString("]\t")

	if entry.Caller.Defined {
		line.AppendString("[")
		line.AppendString(entry.Caller.TrimmedPath())
		line.AppendString("]\t")
	}

	if entry.LoggerName != "" {
		line.AppendString("[")
		line.AppendString(entry.LoggerName)
		line.AppendString("]\t")
	}

	line.AppendString(entry.Message)

	all := zapcore.NewMapObjectEncoder()
	for k, v := range e.Fields {
		all.Fields[k] = v
	}

	for _, f := range fields {
		f.AddTo(all)
	}

	if len(all.Fields) > 0 {
		keys := make([]string, 0, len(all.Fields))
		for k := range all.Fields {
			keys = append(keys, k)
		}

		sort.Strings(keys)

		line.AppendString(" -")

		for _, k := range keys {
			line.AppendString(" ")
			line.AppendString(k)
			line.AppendString("=")
			line.AppendString(fmt.Sprint(all.Fields[k]))
		}
	}

	if entry.Stack != "" {
		line.AppendString("\n")
		line.AppendString(entry.Stack)
	}

	line.AppendString(zapcore.DefaultLineEnding)

	return line, nil
}
