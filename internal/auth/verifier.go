package auth

import (
	"crypto"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Verification errors.
var (
	ErrMissingHeaders = errors.New("missing authentication headers")
	ErrUnknownKey     = errors.New("unknown key")
	ErrBadSignature   = errors.New("bad signature")
	ErrClockSkew      = errors.New("timestamp outside allowed skew")
)

// Verifier checks signed requests against a set of public keys.
type Verifier struct {
	keys    map[string]*rsa.PublicKey
	maxSkew time.Duration
	now     func() time.Time
}

// NewVerifier creates a Verifier for the given keys.
func NewVerifier(keys map[string]*rsa.PublicKey, maxSkew time.Duration) *Verifier {
	return &Verifier{
		keys:    keys,
		maxSkew: maxSkew,
		now:     time.Now,
	}
}

// LoadVerifier reads one public key PEM file per key id.
func LoadVerifier(paths map[string]string, maxSkew time.Duration) (*Verifier, error) {
	keys := make(map[string]*rsa.PublicKey, len(paths))
	for id, path := range paths {
		key, err := LoadPublicKey(path)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", id, err)
		}
		keys[id] = key
	}
	return NewVerifier(keys, maxSkew), nil
}

// LoadPublicKey loads an RSA public key from a PEM file (PKIX or PKCS#1).
func LoadPublicKey(path string) (*rsa.PublicKey, error) {
	block, err := readPEM(path)
	if err != nil {
		return nil, err
	}

	if key, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, errors.New("key is not an RSA public key")
		}
		return rsaKey, nil
	}

	rsaKey, err := x509.ParsePKCS1PublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	return rsaKey, nil
}

// Verify checks the authentication headers of r and returns the key id that
// signed it.
func (v *Verifier) Verify(r *http.Request) (string, error) {
	keyID := r.Header.Get(HeaderKey)
	ts := r.Header.Get(HeaderTimestamp)
	sig := r.Header.Get(HeaderSignature)
	if keyID == "" || ts == "" || sig == "" {
		return "", ErrMissingHeaders
	}

	key, ok := v.keys[keyID]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKey, keyID)
	}

	timestampMs, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: bad timestamp %q", ErrBadSignature, ts)
	}
	skew := v.now().Sub(time.UnixMilli(timestampMs))
	if skew < 0 {
		skew = -skew
	}
	if v.maxSkew > 0 && skew > v.maxSkew {
		return "", fmt.Errorf("%w: %s", ErrClockSkew, skew.Round(time.Millisecond))
	}

	raw, err := base64.StdEncoding.DecodeString(sig)
	if err != nil {
		return "", fmt.Errorf("%w: not base64", ErrBadSignature)
	}
	hashed := digest(timestampMs, r.Method, r.URL.Path)
	opts := &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash}
	if err := rsa.VerifyPSS(key, crypto.SHA256, hashed[:], raw, opts); err != nil {
		return "", ErrBadSignature
	}

	return keyID, nil
}
