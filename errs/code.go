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
 *
 */

// Package errs provides the numeric error-code taxonomy shared by every
// layer of the coroutine runtime: reactor, coroutine lifecycle, socket,
// TLS and HTTP/WebSocket engines all return a CodeError instead of an
// ad-hoc error string.
package errs

import (
	"strconv"
)

// CodeError is a small numeric error code, similar in spirit to an HTTP
// status code. Zero is reserved for "unknown".
type CodeError uint16

const (
	UnknownError CodeError = 0

	// reactor / coroutine runtime
	CodeInitialize CodeError = 100 + iota
	CodeSetEpoll
	CodeCreateCycleThread
	CodeAlreadyRunning
	CodeDisposed
	CodeThreadStarted
	CodeThreadDisposed
	CodeThreadInterrupted
	CodeThreadTerminated

	// socket layer
	CodeSocketCreate
	CodeSocketBind
	CodeSocketListen
	CodeSocketConnect
	CodeSocketRead
	CodeSocketReadFully
	CodeSocketWrite
	CodeSocketTimeout
	CodeSocketClosed

	// fast buffer
	CodeReaderBufferOverflow
	CodeSystemIPInvalid

	// HTTP
	CodeHTTPContentLength
	CodeHTTPInvalidChunkHeader
	CodeHTTPResponseEOF
	CodeHTTPParseURI
	CodeHTTPURLNotClean
	CodeHTTPPatternEmpty
	CodeHTTPPatternDuplicated

	// TLS
	CodeHTTPSHandshake
	CodeHTTPSRead
	CodeHTTPSWrite

	// WebSocket
	CodeWSUpgradeRejected
	CodeWSInvalidFrame
)

// closedSet is the "gracefully closed" equivalence class: ConnRoutine
// remaps any of these, observed from DoCycle, to CodeSocketClosed.
var closedSet = map[CodeError]bool{
	CodeSocketRead:      true,
	CodeSocketReadFully: true,
	CodeSocketWrite:     true,
	CodeSocketTimeout:   true,
}

// IsGracefulClose reports whether code belongs to the "gracefully closed"
// class that ConnRoutine.Cycle remaps to CodeSocketClosed.
func IsGracefulClose(code CodeError) bool {
	return closedSet[code]
}

var messages = map[CodeError]string{
	CodeInitialize:             "reactor initialization failed",
	CodeSetEpoll:               "readiness backend unavailable",
	CodeCreateCycleThread:      "failed to create cycle thread",
	CodeAlreadyRunning:         "coroutine already running",
	CodeDisposed:               "coroutine disposed",
	CodeThreadStarted:          "thread started",
	CodeThreadDisposed:         "thread disposed",
	CodeThreadInterrupted:      "thread interrupted",
	CodeThreadTerminated:       "thread terminated",
	CodeSocketCreate:           "socket create failed",
	CodeSocketBind:             "socket bind failed",
	CodeSocketListen:           "socket listen failed",
	CodeSocketConnect:          "socket connect failed",
	CodeSocketRead:             "socket read failed",
	CodeSocketReadFully:        "socket short read",
	CodeSocketWrite:            "socket write failed",
	CodeSocketTimeout:          "socket operation timed out",
	CodeSocketClosed:           "socket closed",
	CodeReaderBufferOverflow:   "reader buffer overflow",
	CodeSystemIPInvalid:        "invalid ip address",
	CodeHTTPContentLength:      "content-length overrun",
	CodeHTTPInvalidChunkHeader: "invalid chunk header",
	CodeHTTPResponseEOF:        "response body already at eof",
	CodeHTTPParseURI:           "cannot parse uri",
	CodeHTTPURLNotClean:        "url is not clean",
	CodeHTTPPatternEmpty:       "mux pattern is empty",
	CodeHTTPPatternDuplicated:  "mux pattern already registered",
	CodeHTTPSHandshake:         "tls handshake failed",
	CodeHTTPSRead:              "tls read failed",
	CodeHTTPSWrite:             "tls write failed",
	CodeWSUpgradeRejected:      "websocket upgrade rejected",
	CodeWSInvalidFrame:         "invalid websocket frame",
}

// Uint16 returns the numeric value of the code.
func (c CodeError) Uint16() uint16 {
	return uint16(c)
}

// String implements fmt.Stringer.
func (c CodeError) String() string {
	return strconv.Itoa(int(c))
}

// Message returns the registered human-readable message for the code, or
// "unknown error" when none is registered.
func (c CodeError) Message() string {
	if c == UnknownError {
		return "unknown error"
	}
	if m, ok := messages[c]; ok {
		return m
	}
	return "unknown error"
}

// Error builds a new Error value from this code, chaining any parents.
func (c CodeError) Error(parents ...error) Error {
	return newError(c, c.Message(), parents...)
}
