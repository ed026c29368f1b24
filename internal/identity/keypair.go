// Actorvault - Actor Store Backup and Recovery
// Copyright 2026 Actorvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/actorvault/actorvault

package identity

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

const keyPEMType = "EC PRIVATE KEY"

// p256Multicodec is the multicodec varint prefix for a compressed P-256
// public key, as used in the did:key encoding.
var p256Multicodec = []byte{0x80, 0x24}

// Keypair is a P-256 signing keypair for a tenant's commit log or for
// the service's identity-directory rotation credential.
type Keypair struct {
	priv *ecdsa.PrivateKey
}

// GenerateKeypair creates a fresh P-256 keypair.
func GenerateKeypair() (*Keypair, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}
	return &Keypair{priv: priv}, nil
}

// Sign signs msg and returns an ASN.1 DER signature over its SHA-256
// digest.
func (k *Keypair) Sign(msg []byte) ([]byte, error) {
	digest := sha256.Sum256(msg)
	sig, err := ecdsa.SignASN1(rand.Reader, k.priv, digest[:])
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	return sig, nil
}

// Verify reports whether sig is a valid signature of msg under k's
// public key.
func (k *Keypair) Verify(msg, sig []byte) bool {
	digest := sha256.Sum256(msg)
	return ecdsa.VerifyASN1(&k.priv.PublicKey, digest[:], sig)
}

// PublicDID returns the did:key form of the public key: the multicodec
// prefix plus the compressed point, base58btc encoded with the z
// multibase marker.
func (k *Keypair) PublicDID() string {
	compressed := elliptic.MarshalCompressed(elliptic.P256(), k.priv.PublicKey.X, k.priv.PublicKey.Y)
	raw := make([]byte, 0, len(p256Multicodec)+len(compressed))
	raw = append(raw, p256Multicodec...)
	raw = append(raw, compressed...)
	return "did:key:z" + base58Encode(raw)
}

// MarshalPEM serializes the private key in SEC1 form inside a PEM block.
func (k *Keypair) MarshalPEM() ([]byte, error) {
	der, err := x509.MarshalECPrivateKey(k.priv)
	if err != nil {
		return nil, fmt.Errorf("marshal keypair: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: keyPEMType, Bytes: der}), nil
}

// ParseKeypairPEM parses a keypair produced by MarshalPEM.
func ParseKeypairPEM(data []byte) (*Keypair, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != keyPEMType {
		return nil, fmt.Errorf("parse keypair: no %s PEM block", keyPEMType)
	}
	priv, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse keypair: %w", err)
	}
	return &Keypair{priv: priv}, nil
}

const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// base58Encode encodes b in Bitcoin-alphabet base58.
func base58Encode(b []byte) string {
	zeros := 0
	for zeros < len(b) && b[zeros] == 0 {
		zeros++
	}

	digits := make([]byte, 0, len(b)*138/100+1)
	for _, c := range b {
		carry := int(c)
		for i := 0; i < len(digits); i++ {
			carry += int(digits[i]) << 8
			digits[i] = byte(carry % 58)
			carry /= 58
		}
		for carry > 0 {
			digits = append(digits, byte(carry%58))
			carry /= 58
		}
	}

	out := make([]byte, 0, zeros+len(digits))
	for i := 0; i < zeros; i++ {
		out = append(out, base58Alphabet[0])
	}
	for i := len(digits) - 1; i >= 0; i-- {
		out = append(out, base58Alphabet[digits[i]])
	}
	return string(out)
}
