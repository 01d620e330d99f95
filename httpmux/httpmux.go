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

// Package httpmux is the request router: longest-prefix match over
// explicit and implicit (trailing-slash redirect) entries, with
// virtual-host support.
package httpmux

import (
	"strings"

	"github.com/sabouaram/coco/errs"
	"github.com/sabouaram/coco/httpwriter"
)

// Request is the minimal view ServeHTTP/Match need of an incoming
// message, satisfied by httpmsg.Message.
type Request interface {
	Get(name string) string
	Path() string
}

// Handler serves one matched request.
type Handler interface {
	ServeHTTP(w *httpwriter.ResponseWriter, r Request)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(w *httpwriter.ResponseWriter, r Request)

func (f HandlerFunc) ServeHTTP(w *httpwriter.ResponseWriter, r Request) {
	f(w, r)
}

type entry struct {
	pattern  string
	handler  Handler
	explicit bool
	enabled  bool
	redirect string // set on implicit trailing-slash-stripped entries
}

// Mux is the longest-prefix pattern table.
type Mux struct {
	entries map[string]*entry
	vhosts  map[string]bool
	order   []string
}

func New() *Mux {
	return &Mux{
		entries: make(map[string]*entry),
		vhosts:  make(map[string]bool),
	}
}

// Handle registers pattern. A pattern not starting with "/" is taken
// as "vhost/path" and the vhost segment is recorded; a pattern ending
// in "/" (other than "/" itself) also installs an implicit 302
// redirect entry at the trailing-slash-stripped form.
func (m *Mux) Handle(pattern string, h Handler) errs.Error {
	if pattern == "" {
		return errs.CodeHTTPPatternEmpty.Error()
	}

	if e, ok := m.entries[pattern]; ok && e.explicit {
		return errs.CodeHTTPPatternDuplicated.Error()
	}

	if !strings.HasPrefix(pattern, "/") {
		if idx := strings.IndexByte(pattern, '/'); idx > 0 {
			m.vhosts[pattern[:idx]] = true
		}
	}

	if _, exists := m.entries[pattern]; !exists {
		m.order = append(m.order, pattern)
	}
	m.entries[pattern] = &entry{pattern: pattern, handler: h, explicit: true, enabled: true}

	if len(pattern) > 1 && strings.HasSuffix(pattern, "/") {
		stripped := pattern[:len(pattern)-1]
		if e, ok := m.entries[stripped]; !ok || !e.explicit {
			if !ok {
				m.order = append(m.order, stripped)
			}
			m.entries[stripped] = &entry{pattern: stripped, explicit: false, enabled: true, redirect: pattern}
		}
	}

	return nil
}

// Match finds the longest pattern matching r, considering a
// registered vhost prefix when the request's Host matches one.
func (m *Mux) Match(r Request) (Handler, string, bool) {
	path := r.Path()
	candidates := []string{path}

	if len(m.vhosts) > 0 {
		host := r.Get("Host")
		if m.vhosts[host] {
			candidates = append(candidates, host+path)
		}
	}

	var best *entry
	for _, pattern := range m.order {
		e := m.entries[pattern]
		if !e.enabled {
			continue
		}
		for _, c := range candidates {
			if !matches(e.pattern, c) {
				continue
			}
			if best == nil || len(e.pattern) > len(best.pattern) {
				best = e
			}
		}
	}

	if best == nil {
		return nil, "", false
	}
	if !best.explicit {
		return nil, best.redirect, true
	}
	return best.handler, "", true
}

func matches(pattern, path string) bool {
	if !strings.HasSuffix(pattern, "/") {
		return pattern == path
	}
	return len(path) >= len(pattern) && path[:len(pattern)] == pattern
}

// ServeHTTP rejects unclean URLs, serves a fixed 404 when nothing
// matches, issues a 302 for implicit trailing-slash entries, and
// otherwise invokes the matched handler.
func (m *Mux) ServeHTTP(w *httpwriter.ResponseWriter, r Request) errs.Error {
	if strings.Contains(r.Path(), "..") {
		return errs.CodeHTTPURLNotClean.Error()
	}

	h, redirect, ok := m.Match(r)
	if !ok {
		notFound(w)
		return nil
	}
	if redirect != "" {
		w.SetHeader("Location", redirect)
		w.SetHeader("Content-Length", "0")
		w.WriteHeader(302)
		_ = w.FinalRequest()
		return nil
	}

	h.ServeHTTP(w, r)
	return nil
}

func notFound(w *httpwriter.ResponseWriter) {
	_ = httpwriter.Error(w, 404, "404 not found")
}
