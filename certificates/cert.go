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

// Package certificates loads the key/certificate pairs the TLS
// transport hands to the server side of a handshake, and assembles
// them into a tls.Config on demand via Config.TLSConfig.
package certificates

import (
	"crypto/tls"
	"os"
)

// Pair is one loaded key/certificate pair, held in the parsed form
// crypto/tls.Config.Certificates takes; the raw PEM is not kept.
type Pair struct {
	crt tls.Certificate
}

// Config accumulates the pairs a listener or dialer was configured
// with. The zero value has no pairs and is safe to use.
type Config struct {
	cert []Pair
}

func New() *Config {
	return &Config{cert: make([]Pair, 0)}
}

func (o *Config) LenCertificatePair() int {
	return len(o.cert)
}

func (o *Config) CleanCertificatePair() {
	o.cert = make([]Pair, 0)
}

// GetCertificatePair returns the loaded pairs in the shape
// crypto/tls.Config.Certificates expects.
func (o *Config) GetCertificatePair() []tls.Certificate {
	var res = make([]tls.Certificate, 0, len(o.cert))

	for _, c := range o.cert {
		res = append(res, c.crt)
	}

	return res
}

// AddCertificatePairString parses a PEM-encoded key and certificate
// held in memory.
func (o *Config) AddCertificatePairString(key, crt string) error {
	c, e := tls.X509KeyPair([]byte(crt), []byte(key))
	if e != nil {
		return e
	}

	o.cert = append(o.cert, Pair{crt: c})
	return nil
}

// AddCertificatePairFile loads a key and certificate from disk.
// tls.LoadX509KeyPair refuses a mismatched pair, so no separate
// key-matches-cert check is needed.
func (o *Config) AddCertificatePairFile(keyFile, crtFile string) error {
	if _, e := os.Stat(keyFile); e != nil {
		return e
	}
	if _, e := os.Stat(crtFile); e != nil {
		return e
	}

	c, e := tls.LoadX509KeyPair(crtFile, keyFile)
	if e != nil {
		return e
	}

	o.cert = append(o.cert, Pair{crt: c})
	return nil
}

// TLSConfig builds the server-side tls.Config: TLS 1.2 floor, no
// client-certificate verification, cipher selection left to the
// stdlib default (Go does not expose an "ALL ciphers" knob the way
// OpenSSL's SSL_CTX_set_cipher_list does, and the stdlib default list
// excludes only ciphers it considers broken).
func (o *Config) TLSConfig() *tls.Config {
	return &tls.Config{
		Certificates: o.GetCertificatePair(),
		MinVersion:   tls.VersionTLS12,
		ClientAuth:   tls.NoClientCert,
	}
}
