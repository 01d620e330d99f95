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

package errs

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Error is the error type returned by every layer of this module. It
// carries a numeric CodeError plus an optional chain of parent errors,
// so a caller several layers up can ask "was this ultimately a
// CodeSocketTimeout" without string-matching.
type Error interface {
	error
	Code() CodeError
	Is(code CodeError) bool
	Parent() []error
	Unwrap() []error
}

type ers struct {
	code CodeError
	msg  string
	p    []error
}

func newError(code CodeError, msg string, parents ...error) Error {
	e := &ers{code: code, msg: msg}
	for _, p := range parents {
		if p != nil {
			e.p = append(e.p, p)
		}
	}
	return e
}

func (e *ers) Error() string {
	if len(e.p) == 0 {
		return fmt.Sprintf("[%d] %s", e.code, e.msg)
	}
	return fmt.Sprintf("[%d] %s: %s", e.code, e.msg, joinParents(e.p))
}

func joinParents(p []error) string {
	if len(p) == 1 {
		return p[0].Error()
	}
	var m *multierror.Error
	for _, e := range p {
		m = multierror.Append(m, e)
	}
	return m.Error()
}

func (e *ers) Code() CodeError {
	return e.code
}

func (e *ers) Is(code CodeError) bool {
	return e.code == code
}

func (e *ers) Parent() []error {
	return e.p
}

func (e *ers) Unwrap() []error {
	return e.p
}

// CodeOf returns (code, true) when err is itself an Error built by
// this package. Parents and wrapped errors are not searched; any other
// error, or nil, yields (UnknownError, false).
func CodeOf(err error) (CodeError, bool) {
	if err == nil {
		return UnknownError, false
	}
	if e, ok := err.(Error); ok {
		return e.Code(), true
	}
	return UnknownError, false
}

// Aggregate combines zero or more independent failures into a single
// error using hashicorp/go-multierror, preserving every failure instead
// of letting later ones mask earlier ones. Used by the connection
// manager's Destroy, where several zombies may fail to close
// independently, and by Runtime.Close in the root package to combine
// the reactor's exit error with Destroy's.
func Aggregate(errs ...error) error {
	var m *multierror.Error
	for _, e := range errs {
		if e != nil {
			m = multierror.Append(m, e)
		}
	}
	if m == nil {
		return nil
	}
	return m
}
