package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainValue = "calyx/value/v1"
	DomainExpr  = "calyx/expr/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00}) // Null separator
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// HashValue computes the content-addressed identity of a value.
// Two values hash equal iff ValueEqual reports them equal. This is the
// deduplication key used by union and fixpoint enumeration.
func HashValue(v Value) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("HashValue: %w", err)
	}
	return hashWithDomain(DomainValue, canonical), nil
}

// HashExpr computes the content-addressed identity of an expression.
// The deterministic Format rendering is injective over the expression
// model, so it doubles as the canonical encoding. Used as the
// expression half of inversion memo keys.
func HashExpr(e Expr) string {
	return hashWithDomain(DomainExpr, []byte(Format(e)))
}
