//go:build linux

package tls_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"time"

	"golang.org/x/sys/unix"

	"github.com/sabouaram/coco/certificates"
	"github.com/sabouaram/coco/reactor"
	"github.com/sabouaram/coco/socket"
	. "github.com/sabouaram/coco/transport/tls"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func selfSigned() (keyPEM, crtPEM string) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	Expect(err).NotTo(HaveOccurred())

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		DNSNames:     []string{"localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	Expect(err).NotTo(HaveOccurred())

	keyDER, err := x509.MarshalECPrivateKey(key)
	Expect(err).NotTo(HaveOccurred())

	crtPEM = string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))
	keyPEM = string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}))
	return keyPEM, crtPEM
}

var _ = Describe("tls transport", func() {
	var r *reactor.Reactor

	BeforeEach(func() {
		var err error
		r, err = reactor.Init(nil)
		Expect(err).To(BeNil())
		go func() { _ = r.Run() }()
	})

	AfterEach(func() {
		Expect(r.Close()).To(Succeed())
	})

	It("completes a handshake and exchanges plaintext both ways", func() {
		fds, serr := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
		Expect(serr).To(BeNil())

		serverSock, rerr := socket.New(fds[0], r)
		Expect(rerr).To(BeNil())
		clientSock, rerr2 := socket.New(fds[1], r)
		Expect(rerr2).To(BeNil())

		key, crt := selfSigned()
		cfg := certificates.New()
		Expect(cfg.AddCertificatePairString(key, crt)).To(Succeed())

		type srvResult struct {
			conn *Conn
			err  error
		}
		done := make(chan srvResult, 1)
		go func() {
			c, e := Server(serverSock, cfg)
			var werr error
			if e != nil {
				werr = e
			}
			done <- srvResult{c, werr}
		}()

		cl, cerr := Client(clientSock, "localhost", true)
		Expect(cerr).To(BeNil())
		defer cl.Close()

		var sres srvResult
		Eventually(done, 2*time.Second).Should(Receive(&sres))
		Expect(sres.err).To(BeNil())
		defer sres.conn.Close()

		_, werr := cl.Write([]byte("hello"), 5)
		Expect(werr).To(BeNil())

		buf := make([]byte, 5)
		_, rrerr := sres.conn.Read(buf, 5)
		Expect(rrerr).To(BeNil())
		Expect(string(buf)).To(Equal("hello"))

		_, werr2 := sres.conn.Write([]byte("world"), 5)
		Expect(werr2).To(BeNil())

		buf2 := make([]byte, 5)
		_, rrerr2 := cl.Read(buf2, 5)
		Expect(rrerr2).To(BeNil())
		Expect(string(buf2)).To(Equal("world"))
	})
})

