package security

import (
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Fingerprinter derives a stable pseudonymous reference for a patient context
// so consultations can be correlated without storing identifying fields.
type Fingerprinter struct {
	key []byte
}

// NewFingerprinter keys the hash. Keys longer than 64 bytes are rejected.
func NewFingerprinter(key []byte) (*Fingerprinter, error) {
	if len(key) > blake2b.Size {
		return nil, ErrInvalidKeySize
	}
	return &Fingerprinter{key: append([]byte(nil), key...)}, nil
}

// Fingerprint hashes the age, gender and the sorted, lowercased history,
// medications and allergies. List order does not affect the result.
func (f *Fingerprinter) Fingerprint(age int, gender string, lists ...[]string) string {
	h, err := blake2b.New256(f.key)
	if err != nil {
		// key length is checked in NewFingerprinter
		panic(err)
	}
	h.Write([]byte(strconv.Itoa(age)))
	h.Write([]byte{0})
	h.Write([]byte(strings.ToLower(strings.TrimSpace(gender))))
	for _, list := range lists {
		h.Write([]byte{1})
		for _, item := range canonical(list) {
			h.Write([]byte(item))
			h.Write([]byte{0})
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

func canonical(list []string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
