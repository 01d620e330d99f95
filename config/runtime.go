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

// Package config loads the runtime's in-process knobs from a config
// file via spf13/viper (environment variables are not read), and watches the source file with fsnotify
// so the knobs can be re-armed without a process restart. None of
// this changes wire behavior, only where the knob values come from.
package config

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Runtime holds the process-wide knobs.
type Runtime struct {
	RecvTimeout       time.Duration
	SendTimeout       time.Duration
	HTTPRecvTimeout   time.Duration // default 60s, server-side
	HTTPClientTimeout time.Duration // default 1s, client-side
	MaxWSPacket       int           // default 4 MiB
	ListenBacklog     int           // default 512
	FastBufSoftSize   int           // default 128 KiB
	FastBufHardCap    int           // default 10 MiB
	WritevChunkLimit  int           // default 1024 iovecs
}

// Defaults returns the built-in knob values.
func Defaults() Runtime {
	return Runtime{
		RecvTimeout:       0, // sentinel "never"
		SendTimeout:       0,
		HTTPRecvTimeout:   60 * time.Second,
		HTTPClientTimeout: 1 * time.Second,
		MaxWSPacket:       4 * 1024 * 1024,
		ListenBacklog:     512,
		FastBufSoftSize:   128 * 1024,
		FastBufHardCap:    10 * 1024 * 1024,
		WritevChunkLimit:  1024,
	}
}

// Manager loads a Runtime from a viper-backed source and keeps it
// current as the backing file changes.
type Manager struct {
	mtx sync.RWMutex
	v   *viper.Viper
	cur Runtime
	onR []func(Runtime)
}

// NewManager builds a Manager seeded with Defaults(); call Load to
// point it at a real config file.
func NewManager() *Manager {
	v := viper.New()
	v.SetDefault("recv_timeout", "0s")
	v.SetDefault("send_timeout", "0s")
	v.SetDefault("http_recv_timeout", "60s")
	v.SetDefault("http_client_timeout", "1s")
	v.SetDefault("max_ws_packet", 4*1024*1024)
	v.SetDefault("listen_backlog", 512)
	v.SetDefault("fastbuf_soft_size", 128*1024)
	v.SetDefault("fastbuf_hard_cap", 10*1024*1024)
	v.SetDefault("writev_chunk_limit", 1024)

	return &Manager{v: v, cur: Defaults()}
}

// Load reads path into the Manager and arms an fsnotify watch so
// subsequent edits call OnReload subscribers with the freshly parsed
// Runtime.
func (m *Manager) Load(path string) error {
	m.v.SetConfigFile(path)
	if err := m.v.ReadInConfig(); err != nil {
		return err
	}
	m.apply()

	m.v.OnConfigChange(func(_ fsnotify.Event) {
		m.apply()
	})
	m.v.WatchConfig()
	return nil
}

func (m *Manager) apply() {
	r := Runtime{
		RecvTimeout:       m.v.GetDuration("recv_timeout"),
		SendTimeout:       m.v.GetDuration("send_timeout"),
		HTTPRecvTimeout:   m.v.GetDuration("http_recv_timeout"),
		HTTPClientTimeout: m.v.GetDuration("http_client_timeout"),
		MaxWSPacket:       m.v.GetInt("max_ws_packet"),
		ListenBacklog:     m.v.GetInt("listen_backlog"),
		FastBufSoftSize:   m.v.GetInt("fastbuf_soft_size"),
		FastBufHardCap:    m.v.GetInt("fastbuf_hard_cap"),
		WritevChunkLimit:  m.v.GetInt("writev_chunk_limit"),
	}

	m.mtx.Lock()
	m.cur = r
	subs := append([]func(Runtime){}, m.onR...)
	m.mtx.Unlock()

	for _, f := range subs {
		f(r)
	}
}

// Current returns the last loaded Runtime.
func (m *Manager) Current() Runtime {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	return m.cur
}

// OnReload registers f to be called, with the freshly parsed Runtime,
// every time the watched config file changes.
func (m *Manager) OnReload(f func(Runtime)) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.onR = append(m.onR, f)
}
