// Copyright (c) 2022 The rcproxy Authors
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

package logging

import (
	"fmt"
	"os"
	"path"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/sirupsen/logrus"
)

const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

var levelMapperRev = map[string]logrus.Level{
	LevelDebug: logrus.DebugLevel,
	LevelInfo:  logrus.InfoLevel,
	LevelWarn:  logrus.WarnLevel,
	LevelError: logrus.ErrorLevel,
}

type logger struct {
	writer *logrus.Logger
}

type options struct {
	path      string
	level     string
	expireDay int
	toFile    bool
}

var defaultOptions = options{
	level:     LevelInfo,
	expireDay: 7,
}

type Option func(*options)

// WithFileOutput enables hourly-rotated file output under path, retaining expireDay days of history.
// Without it, Init logs to stderr through logrus's default handler.
func WithFileOutput(path string, expireDay int) Option {
	return func(o *options) {
		o.toFile = true
		o.path = path
		o.expireDay = expireDay
	}
}

func WithLevel(level string) Option {
	return func(o *options) {
		o.level = level
	}
}

// Init wires the package-level logger. Calling it more than once is a no-op;
// library code that never calls Init gets the nil-safe fmt.Println fallback.
func Init(opts ...Option) error {
	if logObj != nil {
		return nil
	}
	o := defaultOptions
	for _, apply := range opts {
		apply(&o)
	}

	l := logrus.New()
	if o.toFile {
		if err := os.MkdirAll(o.path, 0o755); err != nil {
			return fmt.Errorf("logging: mkdir %s: %w", o.path, err)
		}
		target := path.Join(o.path, "corenet.log")
		writer, err := rotatelogs.New(
			target+".%Y%m%d%H",
			rotatelogs.WithLinkName(target),
			rotatelogs.WithMaxAge(time.Duration(o.expireDay)*24*time.Hour),
			rotatelogs.WithRotationTime(time.Hour),
		)
		if err != nil {
			return fmt.Errorf("logging: rotatelogs: %w", err)
		}
		l.SetOutput(writer)
	}
	if lvl, ok := levelMapperRev[o.level]; ok {
		l.SetLevel(lvl)
	}

	logObj = &logger{writer: l}
	return nil
}

// LevelFromString reports whether s names a known level, for config validation.
func LevelFromString(s string) (logrus.Level, bool) {
	lvl, ok := levelMapperRev[s]
	return lvl, ok
}
