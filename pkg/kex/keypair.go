// Package kex implements the key-pair module (C3): ephemeral key generation
// and shared-secret derivation for the groups a ClientHello can offer
// (X25519, secp256r1, secp384r1, and the X25519+Kyber768 hybrid), plus the
// RSA key-transport pre-master used when the server picks an RSA suite.
package kex

import (
	"crypto/ecdh"
	"crypto/sha256"
	"io"

	"github.com/cloudflare/circl/kem/kyber/kyber768"
	"golang.org/x/crypto/hkdf"

	"github.com/sara-star-quant/tlsclient/internal/constants"
	tlserrors "github.com/sara-star-quant/tlsclient/internal/errors"
)

// KeyPair is one group's ephemeral key material. Exactly one of the ecdh
// field (X25519/P-256/P-384) or the ecdh+kyber pair (hybrid) is populated,
// selected by Group.
type KeyPair struct {
	Group constants.NamedGroup

	ecdhPriv  *ecdh.PrivateKey
	kyberPub  *kyber768.PublicKey
	kyberPriv *kyber768.PrivateKey
}

// Set holds one KeyPair per offered group, generated eagerly from a single
// 64-byte seed at handshake start.
type Set struct {
	pairs map[constants.NamedGroup]*KeyPair
}

// OfferedGroups is the supported_groups list in offer order. Hybrid is last
// so ClientConfig.DisableHybridKEX can simply drop the tail element.
var OfferedGroups = []constants.NamedGroup{
	constants.GroupX25519,
	constants.GroupSecp256r1,
	constants.GroupSecp384r1,
	constants.GroupX25519Kyber768Draft,
}

// NewSet generates a KeyPair for every group in groups from one seed of
// exactly constants.DHSeedSize bytes. Generation is deterministic in seed:
// each group's randomness is an independent HKDF-Expand stream over the
// seed, domain-separated by group name, so the same seed always reproduces
// the same key pairs, and so the same ClientHello key_share.
func NewSet(seed []byte, groups []constants.NamedGroup) (*Set, error) {
	if len(seed) != constants.DHSeedSize {
		return nil, tlserrors.NewCryptoError(tlserrors.InvalidEncoding, "kex.NewSet", nil)
	}

	s := &Set{pairs: make(map[constants.NamedGroup]*KeyPair, len(groups))}
	for _, g := range groups {
		kp, err := newKeyPair(g, groupStream(seed, g))
		if err != nil {
			return nil, err
		}
		s.pairs[g] = kp
	}
	return s, nil
}

// groupStream derives a deterministic, domain-separated randomness stream
// for group g from the shared seed.
func groupStream(seed []byte, g constants.NamedGroup) io.Reader {
	return hkdf.Expand(sha256.New, seed, []byte("tls-kex-seed:"+g.String()))
}

func newKeyPair(group constants.NamedGroup, rnd io.Reader) (*KeyPair, error) {
	switch group {
	case constants.GroupX25519:
		priv, err := ecdh.X25519().GenerateKey(rnd)
		if err != nil {
			return nil, tlserrors.NewCryptoError(tlserrors.InvalidEncoding, "kex.GenerateKey.x25519", err)
		}
		return &KeyPair{Group: group, ecdhPriv: priv}, nil

	case constants.GroupSecp256r1:
		priv, err := ecdh.P256().GenerateKey(rnd)
		if err != nil {
			return nil, tlserrors.NewCryptoError(tlserrors.InvalidEncoding, "kex.GenerateKey.p256", err)
		}
		return &KeyPair{Group: group, ecdhPriv: priv}, nil

	case constants.GroupSecp384r1:
		priv, err := ecdh.P384().GenerateKey(rnd)
		if err != nil {
			return nil, tlserrors.NewCryptoError(tlserrors.InvalidEncoding, "kex.GenerateKey.p384", err)
		}
		return &KeyPair{Group: group, ecdhPriv: priv}, nil

	case constants.GroupX25519Kyber768Draft:
		xPriv, err := ecdh.X25519().GenerateKey(rnd)
		if err != nil {
			return nil, tlserrors.NewCryptoError(tlserrors.InvalidEncoding, "kex.GenerateKey.hybrid.x25519", err)
		}
		kPub, kPriv, err := kyber768.GenerateKeyPair(rnd)
		if err != nil {
			return nil, tlserrors.NewCryptoError(tlserrors.InvalidEncoding, "kex.GenerateKey.hybrid.kyber768", err)
		}
		return &KeyPair{Group: group, ecdhPriv: xPriv, kyberPub: kPub, kyberPriv: kPriv}, nil

	default:
		return nil, tlserrors.NewProtocolError(tlserrors.IllegalParameter, "kex.newKeyPair", nil)
	}
}

// Get returns the KeyPair for group, or false if it was not generated.
func (s *Set) Get(group constants.NamedGroup) (*KeyPair, bool) {
	kp, ok := s.pairs[group]
	return kp, ok
}

// PublicKeyBytes returns the encoding the ClientHello key_share extension
// carries for this group: raw 32 bytes for X25519, SEC1 uncompressed for
// the NIST curves, and X25519‖Kyber768 concatenation for the hybrid group.
func (kp *KeyPair) PublicKeyBytes() []byte {
	switch kp.Group {
	case constants.GroupX25519Kyber768Draft:
		xPub := kp.ecdhPriv.PublicKey().Bytes()
		kPub := make([]byte, kyber768.PublicKeySize)
		kp.kyberPub.Pack(kPub)
		return append(append([]byte{}, xPub...), kPub...)
	default:
		return kp.ecdhPriv.PublicKey().Bytes()
	}
}

// PreMasterSecret derives the shared secret against the server's key_share
// value for this group: X25519 scalarmult, the ECDH x-coordinate for the
// NIST curves, or the X25519‖Kyber768-decapsulation concatenation for the
// hybrid group.
func (kp *KeyPair) PreMasterSecret(serverPub []byte) ([]byte, error) {
	switch kp.Group {
	case constants.GroupX25519, constants.GroupSecp256r1, constants.GroupSecp384r1:
		curve := curveFor(kp.Group)
		pub, err := curve.NewPublicKey(serverPub)
		if err != nil {
			return nil, tlserrors.NewProtocolError(tlserrors.IllegalParameter, "kex.PreMasterSecret", err)
		}
		shared, err := kp.ecdhPriv.ECDH(pub)
		if err != nil {
			return nil, tlserrors.NewCryptoError(tlserrors.DecryptFailure, "kex.PreMasterSecret", err)
		}
		return shared, nil

	case constants.GroupX25519Kyber768Draft:
		return kp.hybridPreMaster(serverPub)

	default:
		return nil, tlserrors.NewProtocolError(tlserrors.IllegalParameter, "kex.PreMasterSecret", nil)
	}
}

func (kp *KeyPair) hybridPreMaster(serverPub []byte) ([]byte, error) {
	const x25519PubSize = 32
	if len(serverPub) != x25519PubSize+kyber768.CiphertextSize {
		return nil, tlserrors.NewProtocolError(tlserrors.IllegalParameter, "kex.hybridPreMaster", nil)
	}

	xServerPub := serverPub[:x25519PubSize]
	kyberCiphertext := serverPub[x25519PubSize:]

	xPub, err := ecdh.X25519().NewPublicKey(xServerPub)
	if err != nil {
		return nil, tlserrors.NewProtocolError(tlserrors.IllegalParameter, "kex.hybridPreMaster.x25519", err)
	}
	xShared, err := kp.ecdhPriv.ECDH(xPub)
	if err != nil {
		return nil, tlserrors.NewCryptoError(tlserrors.DecryptFailure, "kex.hybridPreMaster.x25519", err)
	}

	kShared := make([]byte, kyber768.SharedKeySize)
	kp.kyberPriv.DecapsulateTo(kShared, kyberCiphertext)

	return append(xShared, kShared...), nil
}

func curveFor(group constants.NamedGroup) ecdh.Curve {
	switch group {
	case constants.GroupX25519:
		return ecdh.X25519()
	case constants.GroupSecp256r1:
		return ecdh.P256()
	case constants.GroupSecp384r1:
		return ecdh.P384()
	default:
		return nil
	}
}
