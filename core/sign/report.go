package sign

import (
	"crypto/ed25519"
	"fmt"

	"github.com/davidahmann/modelgate/core/jcs"
)

// SignReportJSON signs the JCS digest of an encoded decision report. The digest
// covers generated_at, so the signature binds one archived artifact.
func SignReportJSON(priv ed25519.PrivateKey, reportJSON []byte) (Signature, error) {
	digest, err := jcs.DigestJCS(reportJSON)
	if err != nil {
		return Signature{}, fmt.Errorf("digest report: %w", err)
	}
	return SignDigestHex(priv, digest)
}

func VerifyReportJSON(pub ed25519.PublicKey, sig Signature, reportJSON []byte) (bool, error) {
	digest, err := jcs.DigestJCS(reportJSON)
	if err != nil {
		return false, fmt.Errorf("digest report: %w", err)
	}
	if sig.SignedDigest == "" {
		return false, fmt.Errorf("missing signed_digest")
	}
	if sig.SignedDigest != digest {
		return false, fmt.Errorf("signed_digest mismatch")
	}
	return VerifyDigestHex(pub, sig)
}
