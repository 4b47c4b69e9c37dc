package attest

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SignatureAlgEd25519 is the only supported signature algorithm.
const SignatureAlgEd25519 = "ed25519"

// Signature is a detached signature over an attestation.
type Signature struct {
	Alg      string `json:"alg"`
	PubKeyID string `json:"pubkey_id"`
	Sig      string `json:"sig"`
}

// Validate checks the signature fields.
func (s *Signature) Validate() error {
	if s.Alg != SignatureAlgEd25519 {
		return fmt.Errorf("signature alg must be %q", SignatureAlgEd25519)
	}
	if strings.TrimSpace(s.PubKeyID) == "" {
		return fmt.Errorf("signature pubkey_id required")
	}
	if strings.TrimSpace(s.Sig) == "" {
		return fmt.Errorf("signature sig required")
	}
	return nil
}

// Signer handles signing of attestations.
type Signer struct {
	PrivateKey ed25519.PrivateKey
	PublicKey  ed25519.PublicKey
	KeyID      string
}

// NewSigner loads keyDir/<keyID>.key, generating it on first use.
func NewSigner(keyDir, keyID string) (*Signer, error) {
	if keyDir == "" || keyID == "" {
		return nil, fmt.Errorf("key directory and key id are required")
	}
	if err := os.MkdirAll(keyDir, 0700); err != nil {
		return nil, err
	}

	keyPath := filepath.Join(keyDir, keyID+".key")

	var privateKey ed25519.PrivateKey
	data, err := os.ReadFile(keyPath)
	switch {
	case err == nil:
		if len(data) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("invalid private key size in %s", keyPath)
		}
		privateKey = ed25519.PrivateKey(data)
	case os.IsNotExist(err):
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, err
		}
		privateKey = priv
		if err := os.WriteFile(keyPath, []byte(privateKey), 0600); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	return &Signer{
		PrivateKey: privateKey,
		PublicKey:  privateKey.Public().(ed25519.PublicKey),
		KeyID:      keyID,
	}, nil
}

// Sign signs the attestation and attaches the signature.
func (s *Signer) Sign(att *Attestation) error {
	if att == nil {
		return fmt.Errorf("attestation required")
	}
	data, err := signingPayload(att)
	if err != nil {
		return err
	}

	att.Signature = &Signature{
		Alg:      SignatureAlgEd25519,
		PubKeyID: s.KeyID,
		Sig:      base64.StdEncoding.EncodeToString(ed25519.Sign(s.PrivateKey, data)),
	}
	return nil
}

// VerifySignature checks the attached signature with the key found in
// keyDir.
func VerifySignature(att *Attestation, keyDir string) error {
	if att == nil {
		return fmt.Errorf("attestation required")
	}
	if att.Signature == nil {
		return fmt.Errorf("signature required")
	}
	if err := att.Signature.Validate(); err != nil {
		return err
	}

	data, err := signingPayload(att)
	if err != nil {
		return err
	}
	sigBytes, err := base64.StdEncoding.DecodeString(att.Signature.Sig)
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}

	pubKey, err := loadPublicKey(keyDir, att.Signature.PubKeyID)
	if err != nil {
		return err
	}
	if !ed25519.Verify(pubKey, data, sigBytes) {
		return fmt.Errorf("invalid attestation signature")
	}
	return nil
}

func signingPayload(att *Attestation) ([]byte, error) {
	c := *att
	c.Signature = nil
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(&c)
}

func loadPublicKey(keyDir, keyID string) (ed25519.PublicKey, error) {
	if keyID == "" {
		return nil, fmt.Errorf("pubkey_id required")
	}
	data, err := os.ReadFile(filepath.Join(keyDir, keyID+".key"))
	if err != nil {
		return nil, err
	}
	priv := ed25519.PrivateKey(data)
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid private key size")
	}
	return priv.Public().(ed25519.PublicKey), nil
}
