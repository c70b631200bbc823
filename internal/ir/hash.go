package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainKernel   = "tlcomm/kernel/v1"
	DomainRegistry = "tlcomm/registry/v1"
)

// HashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null byte prevents
// domain/data boundary ambiguity.
func HashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// KernelHash computes the content-addressed identity of a kernel.
// The hash covers name, buffers and body; source positions and the
// originating file are excluded.
func KernelHash(k *Kernel) (string, error) {
	canonical, err := MarshalCanonical(k)
	if err != nil {
		return "", fmt.Errorf("KernelHash: failed to marshal: %w", err)
	}
	return HashWithDomain(DomainKernel, canonical), nil
}

// MustKernelHash is like KernelHash but panics on error.
// Use only in tests or when the kernel is known to be well formed.
func MustKernelHash(k *Kernel) string {
	h, err := KernelHash(k)
	if err != nil {
		panic(err)
	}
	return h
}
