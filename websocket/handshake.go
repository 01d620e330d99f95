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

package websocket

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"fmt"

	"github.com/sabouaram/coco/errs"
	"github.com/sabouaram/coco/fastbuf"
	"github.com/sabouaram/coco/httpmsg"
)

// acceptGUID is the fixed RFC 6455 GUID used to derive
// Sec-WebSocket-Accept from the client's key.
const acceptGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// Writer is the minimal stream capability Upgrade needs to send the
// request line, satisfied by socket.Socket and transport/tls.Conn.
type Writer interface {
	Write(buf []byte, n int) (int, errs.Error)
}

// Upgrade performs the client-side handshake: send a GET with the
// required upgrade headers and a fresh key, then parse the HTTP
// response and verify status 101 plus the accept-key digest.
func Upgrade(w Writer, r fastbuf.Reader, buf *fastbuf.Buffer, host, path string) errs.Error {
	key, err := newKey()
	if err != nil {
		return errs.CodeWSUpgradeRejected.Error(err)
	}

	req := fmt.Sprintf(
		"GET %s HTTP/1.1\r\n"+
			"Host: %s\r\n"+
			"User-Agent: coco\r\n"+
			"Upgrade: websocket\r\n"+
			"Connection: Upgrade\r\n"+
			"Sec-WebSocket-Version: 13\r\n"+
			"Sec-WebSocket-Key: %s\r\n"+
			"\r\n",
		path, host, key,
	)

	line := []byte(req)
	if _, werr := w.Write(line, len(line)); werr != nil {
		return werr
	}

	resp, perr := httpmsg.Parse(r, buf, false)
	if perr != nil {
		return perr
	}
	if resp.StatusCode() != 101 {
		return errs.CodeWSUpgradeRejected.Error()
	}

	if resp.Get("Sec-WebSocket-Accept") != acceptKey(key) {
		return errs.CodeWSUpgradeRejected.Error()
	}

	return nil
}

func newKey() (string, error) {
	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw[:]), nil
}

func acceptKey(key string) string {
	h := sha1.New()
	_, _ = h.Write([]byte(key + acceptGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}
