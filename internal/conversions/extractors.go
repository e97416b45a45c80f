package conversions

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"code.superseriousbusiness.org/activity/streams/vocab"
)

func ExtractPublicKeyFromActor(actor WithPublicKeyProperty) (string, error) {
	pubKeyProp := actor.GetW3IDSecurityV1PublicKey()
	if pubKeyProp == nil || pubKeyProp.Len() == 0 {
		return "", fmt.Errorf("%w: public key", ErrMissingProperty)
	}

	keyPemProp := pubKeyProp.Begin().Get().GetW3IDSecurityV1PublicKeyPem()
	if keyPemProp == nil {
		return "", fmt.Errorf("%w: publicKeyPem", ErrMissingProperty)
	}
	return keyPemProp.Get(), nil
}

// PublicKey returns the parsed public key of an actor.
func PublicKey(t vocab.Type) (crypto.PublicKey, error) {
	actor, ok := t.(WithPublicKeyProperty)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no public key", errors.ErrUnsupported, t.GetTypeName())
	}
	keyPem, err := ExtractPublicKeyFromActor(actor)
	if err != nil {
		return nil, err
	}

	block, _ := pem.Decode([]byte(keyPem))
	if block == nil {
		return nil, fmt.Errorf("%w: publicKeyPem is not PEM encoded", ErrUnprocessablePropValue)
	}
	return ExtractPublicKeyFromPem(*block)
}

func ExtractPublicKeyFromPem(block pem.Block) (crypto.PublicKey, error) {
	var pubKey crypto.PublicKey
	var err error
	switch block.Type {
	case "PUBLIC KEY":
		pubKey, err = x509.ParsePKIXPublicKey(block.Bytes)
	case "RSA PUBLIC KEY":
		pubKey, err = x509.ParsePKCS1PublicKey(block.Bytes)
	default:
		err = fmt.Errorf("unsupported type: %s", block.Type)
	}

	if err != nil {
		return nil, err
	}
	return pubKey, nil
}
