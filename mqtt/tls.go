// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package mqtt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"strings"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/sha3"
)

const (
	keySaltSize   = 8
	keyIterations = 10000
	keyLength     = 32
	gcmNonceSize  = 12
)

func loadCACertPool(caFile string) (*x509.CertPool, error) {
	data, err := os.ReadFile(caFile)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, errors.New("no certificates found in CA file")
	}
	return pool, nil
}

// decryptKey reverses the key file encryption: an 8-byte salt, a PBKDF2
// (SHA3-256) derived AES-256 key, and AES-GCM with a 12-byte nonce prefix.
func decryptKey(block *pem.Block, password []byte) ([]byte, error) {
	if len(block.Bytes) < keySaltSize+gcmNonceSize {
		return nil, errors.New("encrypted key is too short")
	}

	salt, sealed := block.Bytes[:keySaltSize], block.Bytes[keySaltSize:]
	key := pbkdf2.Key(password, salt, keyIterations, keyLength, sha3.New256)

	c, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(c)
	if err != nil {
		return nil, err
	}

	nonce, ciphertext := sealed[:gcmNonceSize], sealed[gcmNonceSize:]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

func loadX509KeyPairWithPassword(
	certFile, keyFile, passFile string,
) (tls.Certificate, error) {
	certPEM, err := os.ReadFile(certFile)
	if err != nil {
		return tls.Certificate{}, err
	}
	keyPEM, err := os.ReadFile(keyFile)
	if err != nil {
		return tls.Certificate{}, err
	}
	password, err := os.ReadFile(passFile)
	if err != nil {
		return tls.Certificate{}, err
	}

	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return tls.Certificate{}, errors.New(
			"failed to decode PEM block containing private key",
		)
	}

	der, err := decryptKey(block, []byte(strings.TrimSpace(string(password))))
	if err != nil {
		return tls.Certificate{}, err
	}

	return tls.X509KeyPair(certPEM, pem.EncodeToMemory(&pem.Block{
		Type:  block.Type,
		Bytes: der,
	}))
}
