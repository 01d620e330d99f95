/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
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

// Package metrics exports the coroutine runtime's counters and gauges
// as standard Prometheus collectors: coroutine lifecycle counts,
// per-socket byte totals, and HTTP request/response counts. Every
// collector here is registered against its own Registry rather than
// the global default one, so embedding this module into a larger
// process never collides with that process's own metric names.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the Prometheus registry every collector in this package
// is registered against.
var Registry = prometheus.NewRegistry()

var (
	coroutinesStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "coco_coroutines_started_total",
		Help: "Coroutines started via corort.Coroutine.Start.",
	})
	coroutinesRunning = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "coco_coroutines_running",
		Help: "Coroutines currently between Start and cycle completion.",
	})
	coroutinesFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "coco_coroutines_failed_total",
		Help: "Coroutine cycles that completed with a non-nil error.",
	})

	socketBytesRead = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "coco_socket_bytes_read_total",
		Help: "Bytes read across every socket.Socket.Read call.",
	})
	socketBytesWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "coco_socket_bytes_written_total",
		Help: "Bytes written across every socket.Socket.Write/Writev call.",
	})

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coco_http_requests_total",
		Help: "HTTP requests served by httpserver.ServerConn, by method and response status.",
	}, []string{"method", "status"})
)

func init() {
	Registry.MustRegister(
		coroutinesStarted,
		coroutinesRunning,
		coroutinesFailed,
		socketBytesRead,
		socketBytesWritten,
		httpRequests,
	)
}

// CoroutineStarted records a successful corort.Coroutine.Start.
func CoroutineStarted() {
	coroutinesStarted.Inc()
	coroutinesRunning.Inc()
}

// CoroutineStopped records a coroutine's cycle completing, successfully
// or not.
func CoroutineStopped(failed bool) {
	coroutinesRunning.Dec()
	if failed {
		coroutinesFailed.Inc()
	}
}

// SocketRead records n bytes read by a socket.Socket.Read call.
func SocketRead(n int) {
	if n > 0 {
		socketBytesRead.Add(float64(n))
	}
}

// SocketWritten records n bytes written by a socket.Socket.Write or
// Writev call.
func SocketWritten(n int) {
	if n > 0 {
		socketBytesWritten.Add(float64(n))
	}
}

// HTTPRequest records one request a ServerConn finished serving.
func HTTPRequest(method string, status int) {
	httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}
