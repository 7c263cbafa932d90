// Package signing verifies client-signed login challenges. Clients hold an
// ed25519 signing pair; the server stores only the public half inside the
// user's public keychain and never sees the private key.
package signing

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
)

// Byte-array wire format errors.
var (
	ErrBadSignature  = errors.New("signature verification failed")
	ErrBadKey        = errors.New("invalid signing key")
	ErrNoSigningKey  = errors.New("keychain has no signing key")
	ErrByteRange     = errors.New("byte array values out of range")
)

// SignedMessage is the wire form of a signed payload: both fields are JSON
// arrays of byte values, matching what clients produce.
type SignedMessage struct {
	Data      []int `json:"data" validate:"required"`
	Signature []int `json:"signature" validate:"required"`
}

// Verify checks the signature against the public signing key and returns the
// signed payload bytes.
func Verify(message SignedMessage, signingKey []int) ([]byte, error) {
	key, err := toBytes(signingKey)
	if err != nil {
		return nil, err
	}
	if len(key) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrBadKey, len(key))
	}

	data, err := toBytes(message.Data)
	if err != nil {
		return nil, err
	}
	sig, err := toBytes(message.Signature)
	if err != nil {
		return nil, err
	}
	if len(sig) != ed25519.SignatureSize {
		return nil, ErrBadSignature
	}

	if !ed25519.Verify(ed25519.PublicKey(key), data, sig) {
		return nil, ErrBadSignature
	}
	return data, nil
}

// Sign produces a SignedMessage with the given private key. Used by tests
// and tooling; the server itself only verifies.
func Sign(priv ed25519.PrivateKey, data []byte) SignedMessage {
	sig := ed25519.Sign(priv, data)
	return SignedMessage{Data: toInts(data), Signature: toInts(sig)}
}

// KeyToInts converts a public key into the wire byte-array form.
func KeyToInts(pub ed25519.PublicKey) []int { return toInts(pub) }

// SigningKeyFromKeychain extracts the signing key from a stored public
// keychain document. The keychain is otherwise opaque to the server.
func SigningKeyFromKeychain(publicKeychain []byte) ([]int, error) {
	var doc struct {
		Signing []int `json:"signing"`
	}
	if err := json.Unmarshal(publicKeychain, &doc); err != nil {
		return nil, fmt.Errorf("parse public keychain: %w", err)
	}
	if len(doc.Signing) == 0 {
		return nil, ErrNoSigningKey
	}
	return doc.Signing, nil
}

func toBytes(values []int) ([]byte, error) {
	out := make([]byte, len(values))
	for i, v := range values {
		if v < 0 || v > 255 {
			return nil, ErrByteRange
		}
		out[i] = byte(v)
	}
	return out, nil
}

func toInts(data []byte) []int {
	out := make([]int, len(data))
	for i, b := range data {
		out[i] = int(b)
	}
	return out
}
