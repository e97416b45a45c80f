package utils

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
)

func GenerateKeysPem(size int) (pub string, priv string, err error) {
	key, err := rsa.GenerateKey(rand.Reader, size)
	if err != nil {
		return
	}

	priv, err = privateKeyPem(key)
	if err != nil {
		return
	}

	pub, err = publicKeyPem(&key.PublicKey)
	return
}

func privateKeyPem(key *rsa.PrivateKey) (string, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return "", err
	}

	return string(pem.EncodeToMemory(&pem.Block{
		Type:  "PRIVATE KEY",
		Bytes: der,
	})), nil
}

func publicKeyPem(key *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		return "", err
	}
	return string(pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: der,
	})), err
}

// LoadPrivateKey reads a PEM encoded PKCS#8 or PKCS#1 private key, and returns it together with the
// PEM encoding of its public key.
func LoadPrivateKey(path string) (key *rsa.PrivateKey, pub string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	block, _ := pem.Decode(data)
	if block == nil {
		err = fmt.Errorf("%s: no PEM data found", path)
		return
	}

	switch block.Type {
	case "PRIVATE KEY":
		var parsed any
		if parsed, err = x509.ParsePKCS8PrivateKey(block.Bytes); err != nil {
			return
		}
		var ok bool
		if key, ok = parsed.(*rsa.PrivateKey); !ok {
			err = fmt.Errorf("%s: not an RSA key", path)
			return
		}
	case "RSA PRIVATE KEY":
		if key, err = x509.ParsePKCS1PrivateKey(block.Bytes); err != nil {
			return
		}
	default:
		err = fmt.Errorf("%s: unsupported key type %s", path, block.Type)
		return
	}

	pub, err = publicKeyPem(&key.PublicKey)
	return
}
