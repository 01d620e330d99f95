package certificates_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"time"

	. "github.com/sabouaram/coco/certificates"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func selfSigned() (keyPEM, crtPEM string) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	Expect(err).NotTo(HaveOccurred())

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
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

var _ = Describe("certificate pair loading", func() {
	It("loads a pair from in-memory PEM and exposes it as a tls.Certificate", func() {
		key, crt := selfSigned()

		cfg := New()
		Expect(cfg.LenCertificatePair()).To(Equal(0))

		Expect(cfg.AddCertificatePairString(key, crt)).To(Succeed())
		Expect(cfg.LenCertificatePair()).To(Equal(1))
		Expect(cfg.GetCertificatePair()).To(HaveLen(1))

		cfg.CleanCertificatePair()
		Expect(cfg.LenCertificatePair()).To(Equal(0))
	})

	It("loads a pair from files and fixes TLS 1.2 as the floor", func() {
		key, crt := selfSigned()

		dir, err := os.MkdirTemp("", "coco-cert")
		Expect(err).NotTo(HaveOccurred())
		defer os.RemoveAll(dir)

		keyFile := dir + "/key.pem"
		crtFile := dir + "/crt.pem"
		Expect(os.WriteFile(keyFile, []byte(key), 0o600)).To(Succeed())
		Expect(os.WriteFile(crtFile, []byte(crt), 0o600)).To(Succeed())

		cfg := New()
		Expect(cfg.AddCertificatePairFile(keyFile, crtFile)).To(Succeed())
		Expect(cfg.LenCertificatePair()).To(Equal(1))

		tc := cfg.TLSConfig()
		Expect(tc.Certificates).To(HaveLen(1))
		Expect(tc.MinVersion).To(BeNumerically("==", 0x0303))
	})

	It("rejects a missing key file", func() {
		cfg := New()
		Expect(cfg.AddCertificatePairFile("/nonexistent/key.pem", "/nonexistent/crt.pem")).NotTo(Succeed())
	})
})
