// Copyright 2026 The gVisor Authors.
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
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// RateLimited is a Logger that forwards at most burst messages at once, and
// then one per interval. The number of messages dropped in between is
// appended to the next message let through.
type RateLimited struct {
	logger Logger
	limit  *rate.Limiter

	// pending counts messages dropped since the last forwarded one.
	pending atomic.Int64
	// dropped counts all dropped messages.
	dropped atomic.Int64
}

var _ Logger = (*RateLimited)(nil)

// NewRateLimited returns a RateLimited logger writing to logger.
func NewRateLimited(logger Logger, every time.Duration, burst int) *RateLimited {
	return &RateLimited{
		logger: logger,
		limit:  rate.NewLimiter(rate.Every(every), burst),
	}
}

// Dropped returns the number of messages dropped so far.
func (rl *RateLimited) Dropped() int64 {
	return rl.dropped.Load()
}

func (rl *RateLimited) emit(level Level, logf func(string, ...any), format string, v []any) {
	// Messages below the logger's level do not consume tokens.
	if !rl.logger.IsLogging(level) {
		return
	}
	if !rl.limit.Allow() {
		rl.pending.Add(1)
		rl.dropped.Add(1)
		return
	}
	if n := rl.pending.Swap(0); n > 0 {
		logf("%s (%d similar messages suppressed)", fmt.Sprintf(format, v...), n)
		return
	}
	logf(format, v...)
}

// Debugf implements Logger.Debugf.
func (rl *RateLimited) Debugf(format string, v ...any) {
	rl.emit(Debug, rl.logger.Debugf, format, v)
}

// Infof implements Logger.Infof.
func (rl *RateLimited) Infof(format string, v ...any) {
	rl.emit(Info, rl.logger.Infof, format, v)
}

// Warningf implements Logger.Warningf.
func (rl *RateLimited) Warningf(format string, v ...any) {
	rl.emit(Warning, rl.logger.Warningf, format, v)
}

// IsLogging implements Logger.IsLogging.
func (rl *RateLimited) IsLogging(level Level) bool {
	return rl.logger.IsLogging(level)
}
