package attest

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSignAndVerify(t *testing.T) {
	keyDir := t.TempDir()
	signer, err := NewSigner(keyDir, "test")
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}

	att, err := BuildAttestation(setupRunDir(t))
	if err != nil {
		t.Fatalf("build attestation: %v", err)
	}
	if err := signer.Sign(att); err != nil {
		t.Fatalf("sign: %v", err)
	}
	if att.Signature == nil || att.Signature.PubKeyID != "test" {
		t.Fatalf("signature not attached")
	}
	if err := VerifySignature(att, keyDir); err != nil {
		t.Fatalf("verify signature: %v", err)
	}

	att.Subject.InputHash = "changed"
	if err := VerifySignature(att, keyDir); err == nil {
		t.Fatalf("expected invalid signature after tampering")
	}
}

func TestNewSignerReusesKey(t *testing.T) {
	keyDir := t.TempDir()
	first, err := NewSigner(keyDir, "k")
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	second, err := NewSigner(keyDir, "k")
	if err != nil {
		t.Fatalf("reload signer: %v", err)
	}
	if !first.PublicKey.Equal(second.PublicKey) {
		t.Fatalf("expected the stored key to be reused")
	}

	info, err := os.Stat(filepath.Join(keyDir, "k.key"))
	if err != nil {
		t.Fatalf("stat key: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Fatalf("key mode %o", info.Mode().Perm())
	}
}

func TestVerifySignatureRequiresSignature(t *testing.T) {
	att, err := BuildAttestation(setupRunDir(t))
	if err != nil {
		t.Fatalf("build attestation: %v", err)
	}
	if err := VerifySignature(att, t.TempDir()); err == nil {
		t.Fatalf("expected missing signature error")
	}
	att.Signature = &Signature{Alg: "rsa", PubKeyID: "x", Sig: "y"}
	if err := VerifySignature(att, t.TempDir()); err == nil {
		t.Fatalf("expected unsupported alg error")
	}
}
