package attest

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
)

// VerifyAttestation validates an attestation against the run directory:
// every hashed file must match and the claim must follow from the
// evidence.
func VerifyAttestation(att *Attestation, runDir string) error {
	if att == nil {
		return fmt.Errorf("attestation is required")
	}
	if runDir == "" {
		return fmt.Errorf("runDir is required")
	}
	if err := att.Validate(); err != nil {
		return err
	}

	id, err := att.computeID()
	if err != nil {
		return err
	}
	if id != att.AttestationID {
		return fmt.Errorf("attestation_id mismatch")
	}

	for _, rel := range att.Evidence.files() {
		if _, ok := att.Hashes[rel]; !ok {
			return fmt.Errorf("evidence file %s is not hashed", rel)
		}
	}
	for rel, expected := range att.Hashes {
		actual, err := hashFile(runDir, rel)
		if err != nil {
			return fmt.Errorf("evidence file %s: %w", rel, err)
		}
		if actual != expected {
			return fmt.Errorf("hash mismatch for %s", rel)
		}
	}

	claim, _, err := buildClaim(runDir)
	if err != nil {
		return err
	}
	if !reflect.DeepEqual(normalizeClaim(claim), normalizeClaim(att.Claim)) {
		return fmt.Errorf("claim does not match evidence")
	}
	return nil
}

// VerifyAttestationFile loads an attestation from disk and verifies it.
func VerifyAttestationFile(attestationPath, runDir string) (*Attestation, error) {
	att, err := LoadFile(attestationPath)
	if err != nil {
		return nil, err
	}
	return att, VerifyAttestation(att, runDir)
}

// LoadFile reads an attestation JSON file.
func LoadFile(path string) (*Attestation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes an attestation.
func Parse(data []byte) (*Attestation, error) {
	var att Attestation
	if err := json.Unmarshal(data, &att); err != nil {
		return nil, err
	}
	return &att, nil
}

func normalizeClaim(c Claim) Claim {
	if len(c.Gates) == 0 {
		c.Gates = nil
	}
	return c
}
