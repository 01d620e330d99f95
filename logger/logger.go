/*
 * MIT License
 *
 * Copyright (c) 2019 Nicolas JUHEL
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
 *
 */

package logger

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Fields is a set of structured key/value pairs attached to a log entry.
type Fields map[string]interface{}

func (f Fields) Add(k string, v interface{}) Fields {
	n := make(Fields, len(f)+1)
	for i, j := range f {
		n[i] = j
	}
	n[k] = v
	return n
}

// Logger is the facade every package in this module logs through.
type Logger interface {
	SetLevel(lvl Level)
	GetLevel() Level
	SetDebugMask(mask DebugMask)

	Debug(category DebugMask, msg string, fields Fields)
	Info(msg string, fields Fields)
	Warn(msg string, fields Fields)
	Error(msg string, fields Fields)

	With(fields Fields) Logger
}

type logger struct {
	mtx   sync.RWMutex
	lvl   Level
	mask  DebugMask
	base  *logrus.Logger
	entry *logrus.Entry
}

// New returns a Logger backed by logrus, writing to w (os.Stderr when nil).
func New(w io.Writer, lvl Level) Logger {
	if w == nil {
		w = os.Stderr
	}

	base := logrus.New()
	base.SetOutput(w)
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	base.SetLevel(lvl.logrus())

	return &logger{
		lvl:   lvl,
		mask:  DebugAll,
		base:  base,
		entry: logrus.NewEntry(base),
	}
}

func (l *logger) SetLevel(lvl Level) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.lvl = lvl
	l.base.SetLevel(lvl.logrus())
}

func (l *logger) GetLevel() Level {
	l.mtx.RLock()
	defer l.mtx.RUnlock()
	return l.lvl
}

func (l *logger) SetDebugMask(mask DebugMask) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.mask = mask
}

func (l *logger) Debug(category DebugMask, msg string, fields Fields) {
	l.mtx.RLock()
	lvl, mask := l.lvl, l.mask
	l.mtx.RUnlock()

	if lvl < DebugLevel || !mask.Has(category) {
		return
	}
	l.entry.WithFields(logrus.Fields(fields)).Debug(msg)
}

func (l *logger) Info(msg string, fields Fields) {
	if l.GetLevel() < InfoLevel {
		return
	}
	l.entry.WithFields(logrus.Fields(fields)).Info(msg)
}

func (l *logger) Warn(msg string, fields Fields) {
	if l.GetLevel() < WarnLevel {
		return
	}
	l.entry.WithFields(logrus.Fields(fields)).Warn(msg)
}

func (l *logger) Error(msg string, fields Fields) {
	if l.GetLevel() < ErrorLevel {
		return
	}
	l.entry.WithFields(logrus.Fields(fields)).Error(msg)
}

func (l *logger) With(fields Fields) Logger {
	l.mtx.RLock()
	defer l.mtx.RUnlock()
	return &logger{
		lvl:   l.lvl,
		mask:  l.mask,
		base:  l.base,
		entry: l.entry.WithFields(logrus.Fields(fields)),
	}
}

// NilLogger returns a Logger that discards everything; used as the
// default for components constructed without an explicit logger.
func NilLogger() Logger {
	return New(io.Discard, NilLevel)
}
