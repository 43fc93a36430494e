// Copyright 2022 The gVisor Authors.
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

package log

import (
	"time"

	"golang.org/x/time/rate"
)

// rateLimitedLogger drops statements that exceed its limiter's budget. The
// logger is resolved on every call when it tracks the global logger, so that
// SetTarget and SetLevel keep applying to it.
type rateLimitedLogger struct {
	logger func() Logger
	limit  *rate.Limiter
}

func (rl *rateLimitedLogger) Debugf(format string, v ...any) {
	if l := rl.logger(); l.IsLogging(Debug) && rl.limit.Allow() {
		l.Debugf(format, v...)
	}
}

func (rl *rateLimitedLogger) Infof(format string, v ...any) {
	if l := rl.logger(); l.IsLogging(Info) && rl.limit.Allow() {
		l.Infof(format, v...)
	}
}

func (rl *rateLimitedLogger) Warningf(format string, v ...any) {
	if l := rl.logger(); l.IsLogging(Warning) && rl.limit.Allow() {
		l.Warningf(format, v...)
	}
}

func (rl *rateLimitedLogger) IsLogging(level Level) bool {
	return rl.logger().IsLogging(level)
}

// BasicRateLimitedLogger returns a Logger that logs to the global logger no
// more than once per the provided duration. The global logger is looked up on
// each statement.
func BasicRateLimitedLogger(every time.Duration) Logger {
	return &rateLimitedLogger{
		logger: func() Logger { return Log() },
		limit:  rate.NewLimiter(rate.Every(every), 1),
	}
}

// RateLimitedLogger returns a Logger that logs to the provided logger no more
// than once per the provided duration.
func RateLimitedLogger(logger Logger, every time.Duration) Logger {
	return &rateLimitedLogger{
		logger: func() Logger { return logger },
		limit:  rate.NewLimiter(rate.Every(every), 1),
	}
}
