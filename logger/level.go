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

// Package logger is the logging facade used by every component of the
// coroutine runtime (reactor, coroutines, connection manager, transports,
// HTTP/WebSocket engines). Nothing in this module calls fmt.Println or
// the bare "log" package directly.
package logger

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// Level is the logging threshold, with an extra NilLevel used to fully
// silence a logger instance.
type Level uint8

const (
	ErrorLevel Level = iota + 1
	WarnLevel
	InfoLevel
	DebugLevel
	NilLevel
)

func (l Level) String() string {
	switch l {
	case ErrorLevel:
		return "error"
	case WarnLevel:
		return "warn"
	case InfoLevel:
		return "info"
	case DebugLevel:
		return "debug"
	case NilLevel:
		return "nil"
	}
	return "info"
}

// ParseLevel returns the Level matching s (case-insensitive), defaulting
// to InfoLevel when s does not match any known level name.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return ErrorLevel
	case "warn", "warning":
		return WarnLevel
	case "info":
		return InfoLevel
	case "debug":
		return DebugLevel
	case "nil", "none", "off":
		return NilLevel
	}
	return InfoLevel
}

func (l Level) logrus() logrus.Level {
	switch l {
	case ErrorLevel:
		return logrus.ErrorLevel
	case WarnLevel:
		return logrus.WarnLevel
	case InfoLevel:
		return logrus.InfoLevel
	case DebugLevel:
		return logrus.DebugLevel
	}
	return logrus.PanicLevel
}

// DebugMask is a bitmask gating debug-level categories. A category
// logs at DebugLevel only if its bit is set.
type DebugMask uint32

const (
	DebugReactor DebugMask = 1 << iota
	DebugCoroutine
	DebugSocket
	DebugHTTP
	DebugWebSocket
	DebugTLS

	DebugAll DebugMask = ^DebugMask(0)
)

func (m DebugMask) Has(category DebugMask) bool {
	return m&category != 0
}
