/*
 * MIT License
 *
 * Copyright (c) 2021 Nicolas JUHEL
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
	"log"

	"github.com/hashicorp/go-hclog"
)

// _hclog adapts a Logger to the hclog.Logger interface, so any
// dependency expecting an hclog logger (several of this module's own
// dependencies do) can be handed one transparently.
type _hclog struct {
	l    Logger
	name string
}

// NewHashicorpHCLog wraps l as an hclog.Logger.
func NewHashicorpHCLog(l Logger) hclog.Logger {
	return &_hclog{l: l}
}

func (h *_hclog) Log(level hclog.Level, msg string, args ...interface{}) {
	switch level {
	case hclog.Trace, hclog.Debug:
		h.l.Debug(DebugAll, msg, argsToFields(args))
	case hclog.Info:
		h.l.Info(msg, argsToFields(args))
	case hclog.Warn:
		h.l.Warn(msg, argsToFields(args))
	case hclog.Error:
		h.l.Error(msg, argsToFields(args))
	}
}

func argsToFields(args []interface{}) Fields {
	f := make(Fields, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		if k, ok := args[i].(string); ok {
			f[k] = args[i+1]
		}
	}
	return f
}

func (h *_hclog) Trace(msg string, args ...interface{}) { h.Log(hclog.Trace, msg, args...) }
func (h *_hclog) Debug(msg string, args ...interface{}) { h.Log(hclog.Debug, msg, args...) }
func (h *_hclog) Info(msg string, args ...interface{})  { h.Log(hclog.Info, msg, args...) }
func (h *_hclog) Warn(msg string, args ...interface{})  { h.Log(hclog.Warn, msg, args...) }
func (h *_hclog) Error(msg string, args ...interface{}) { h.Log(hclog.Error, msg, args...) }

func (h *_hclog) IsTrace() bool { return h.l.GetLevel() >= DebugLevel }
func (h *_hclog) IsDebug() bool { return h.l.GetLevel() >= DebugLevel }
func (h *_hclog) IsInfo() bool  { return h.l.GetLevel() >= InfoLevel }
func (h *_hclog) IsWarn() bool  { return h.l.GetLevel() >= WarnLevel }
func (h *_hclog) IsError() bool { return h.l.GetLevel() >= ErrorLevel }

func (h *_hclog) ImpliedArgs() []interface{} { return nil }

func (h *_hclog) With(args ...interface{}) hclog.Logger {
	return &_hclog{l: h.l.With(argsToFields(args)), name: h.name}
}

func (h *_hclog) Name() string { return h.name }

func (h *_hclog) Named(name string) hclog.Logger {
	return &_hclog{l: h.l, name: name}
}

func (h *_hclog) ResetNamed(name string) hclog.Logger {
	return h.Named(name)
}

func (h *_hclog) SetLevel(level hclog.Level) {
	switch level {
	case hclog.Off, hclog.NoLevel:
		h.l.SetLevel(NilLevel)
	case hclog.Trace, hclog.Debug:
		h.l.SetLevel(DebugLevel)
	case hclog.Info:
		h.l.SetLevel(InfoLevel)
	case hclog.Warn:
		h.l.SetLevel(WarnLevel)
	case hclog.Error:
		h.l.SetLevel(ErrorLevel)
	}
}

func (h *_hclog) GetLevel() hclog.Level {
	switch h.l.GetLevel() {
	case NilLevel:
		return hclog.Off
	case DebugLevel:
		return hclog.Debug
	case InfoLevel:
		return hclog.Info
	case WarnLevel:
		return hclog.Warn
	case ErrorLevel:
		return hclog.Error
	}
	return hclog.NoLevel
}

func (h *_hclog) StandardLogger(opts *hclog.StandardLoggerOptions) *log.Logger {
	return log.New(io.Discard, "", 0)
}

func (h *_hclog) StandardWriter(opts *hclog.StandardLoggerOptions) io.Writer {
	return io.Discard
}
