/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package wllog is the display server's logging ambient layer: a small
// leveled Logger interface backed by logrus, trimmed to the sink types the
// dispatcher and display actually drive (stderr, and an optional file for
// wire tracing).
package wllog

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Fields attaches structured key/value context to a single log entry,
// mirroring the teacher logger's field-injection idiom.
type Fields map[string]interface{}

// Logger is the leveled logging surface a Display holds: wlserver writes its
// WAYLAND_DEBUG trace of incoming frames through it (TraceFrame), and
// cmd/waylandd logs startup and client connections through it.
type Logger interface {
	SetLevel(level logrus.Level)
	GetLevel() logrus.Level

	WithFields(f Fields) Logger

	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})

	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})

	// SetDebugSink attaches (or, with nil, detaches) a raw wire-trace
	// sink that TraceFrame writes to in addition to the normal log
	// output.
	SetDebugSink(w io.WriteCloser)

	// TraceFrame writes a raw wire frame dump, tagged with its direction
	// ("in"/"out"), at Debug level and to the attached debug sink if any.
	TraceFrame(direction string, raw []byte)
}

type logger struct {
	entry *logrus.Entry
	sink  io.WriteCloser
}

// New builds a Logger writing to stderr by default, matching the teacher's
// default standard-sink behavior.
func New() Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &logger{entry: logrus.NewEntry(l)}
}

func (l *logger) SetLevel(level logrus.Level) {
	l.entry.Logger.SetLevel(level)
}

func (l *logger) GetLevel() logrus.Level {
	return l.entry.Logger.GetLevel()
}

func (l *logger) WithFields(f Fields) Logger {
	// The derived logger gets its own logrus.Logger (same output, formatter
	// and hooks) so that SetLevel on it leaves the original untouched.
	base := l.entry.Logger
	own := &logrus.Logger{
		Out:          base.Out,
		Hooks:        base.Hooks,
		Formatter:    base.Formatter,
		ReportCaller: base.ReportCaller,
		Level:        base.GetLevel(),
		ExitFunc:     base.ExitFunc,
	}
	e := logrus.NewEntry(own).WithFields(l.entry.Data).WithFields(logrus.Fields(f))
	return &logger{entry: e, sink: l.sink}
}

func (l *logger) Debug(args ...interface{}) { l.entry.Debug(args...) }
func (l *logger) Info(args ...interface{})  { l.entry.Info(args...) }
func (l *logger) Warn(args ...interface{})  { l.entry.Warn(args...) }
func (l *logger) Error(args ...interface{}) { l.entry.Error(args...) }

func (l *logger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *logger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *logger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *logger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

func (l *logger) SetDebugSink(w io.WriteCloser) {
	l.sink = w
}

// TraceFrame writes a raw wire frame dump at Debug level, and to the
// attached debug sink (if any), for WAYLAND_DEBUG wire tracing.
func (l *logger) TraceFrame(direction string, raw []byte) {
	l.entry.WithField("direction", direction).Debugf("frame % x", raw)
	if l.sink != nil {
		_, _ = l.sink.Write([]byte(direction))
		_, _ = l.sink.Write([]byte(": "))
		_, _ = l.sink.Write(raw)
		_, _ = l.sink.Write([]byte("\n"))
	}
}
