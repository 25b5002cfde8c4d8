// Package security provides tamper-evident signing for payout outcome
// reports, giving the audit trail a verifiable provenance.
package security

import (
	"crypto/ecdsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
)

// Options configures the behavior of report signing and verification
type Options struct {
	// SignatureEnabled turns signing on; when off, reports pass through unsigned
	SignatureEnabled bool `json:"signature_enabled"`

	// SignatureValidity bounds how long a signature is accepted
	SignatureValidity time.Duration `json:"signature_validity"`

	// StrictMode causes verification to fail hard on missing signatures
	StrictMode bool `json:"strict_mode"`
}

// Signature is the metadata attached to a signed report.
type Signature struct {
	Value      string `json:"value"`
	PublicKey  string `json:"public_key"`
	Algorithm  string `json:"algorithm"`
	Timestamp  int64  `json:"timestamp"`
	ValidUntil int64  `json:"valid_until"`
}

// SignedReport wraps a report payload with its signature.
type SignedReport struct {
	Payload   json.RawMessage `json:"payload"`
	Signature *Signature      `json:"signature,omitempty"`
}

// Signer signs payout reports with an ECDSA secp256k1 key over a keccak-256
// digest, so signatures stay verifiable with common ledger tooling.
type Signer struct {
	privateKey       *ecdsa.PrivateKey
	publicKeyEncoded string
	opts             Options
}

// New creates a Signer with a freshly generated key pair. Keys are ephemeral
// per process: reports are verified against the public key the process
// advertises, not a long-lived identity.
func New(opts Options) (*Signer, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}

	publicKeyEncoded := base64.StdEncoding.EncodeToString(crypto.FromECDSAPub(&privateKey.PublicKey))

	logrus.Infof("Report signer initialized with public key: %s...", publicKeyEncoded[:16])
	return &Signer{
		privateKey:       privateKey,
		publicKeyEncoded: publicKeyEncoded,
		opts:             opts,
	}, nil
}

// PublicKey returns the base64-encoded public key reports are signed with.
func (s *Signer) PublicKey() string {
	return s.publicKeyEncoded
}

// Sign wraps the payload in a SignedReport. With signing disabled the payload
// passes through with no signature attached.
func (s *Signer) Sign(payload interface{}) (*SignedReport, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report payload: %w", err)
	}

	report := &SignedReport{Payload: payloadBytes}
	if !s.opts.SignatureEnabled {
		return report, nil
	}

	digest := crypto.Keccak256(payloadBytes)
	signature, err := crypto.Sign(digest, s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign report: %w", err)
	}

	now := time.Now()
	report.Signature = &Signature{
		Value:      base64.StdEncoding.EncodeToString(signature),
		PublicKey:  s.publicKeyEncoded,
		Algorithm:  "ECDSA-secp256k1-Keccak256",
		Timestamp:  now.Unix(),
		ValidUntil: now.Add(s.opts.SignatureValidity).Unix(),
	}
	return report, nil
}

// Verify checks the signature on a report. A missing signature is an error
// only in strict mode; an expired or forged one always is.
func (s *Signer) Verify(report *SignedReport) (bool, error) {
	if report.Signature == nil {
		if s.opts.StrictMode {
			return false, fmt.Errorf("report signature missing")
		}
		logrus.Warn("Report signature missing, accepting unsigned report")
		return false, nil
	}

	sig := report.Signature
	if time.Now().Unix() > sig.ValidUntil {
		return false, fmt.Errorf("report signature expired at %v", time.Unix(sig.ValidUntil, 0))
	}

	signatureBytes, err := base64.StdEncoding.DecodeString(sig.Value)
	if err != nil {
		return false, fmt.Errorf("failed to decode signature: %w", err)
	}
	if len(signatureBytes) != 65 {
		return false, fmt.Errorf("invalid signature length: %d", len(signatureBytes))
	}

	publicKeyBytes, err := base64.StdEncoding.DecodeString(sig.PublicKey)
	if err != nil {
		return false, fmt.Errorf("failed to decode public key: %w", err)
	}

	digest := crypto.Keccak256(report.Payload)
	if !crypto.VerifySignature(publicKeyBytes, digest, signatureBytes[:64]) {
		return false, fmt.Errorf("report signature does not match payload")
	}

	return true, nil
}
