package model

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"
)

// ListingRecord is one lodging listing taken from a results card.
//
// Title and Description are never empty; a configured sentinel stands in
// for a missing value. Price and Rating are nil when the card did not show
// one, and serialize as JSON null.
type ListingRecord struct {
	// Identifier is the numeric id from the detail link. It is unique
	// within one run.
	Identifier  string  `json:"identifier"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Price       *string `json:"price"`
	Rating      *string `json:"rating"`
	// Link is the absolute detail page URL without query or fragment.
	Link string `json:"link"`
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

// Deref returns *p or fallback when p is nil.
func Deref(p *string, fallback string) string {
	if p == nil {
		return fallback
	}
	return *p
}

// Fingerprint is a SHA3-256 digest of the record's displayed fields.
// Two records with the same identifier and different fingerprints
// changed between runs.
func (r ListingRecord) Fingerprint() string {
	var b strings.Builder
	for _, f := range []string{
		r.Identifier,
		r.Title,
		r.Description,
		Deref(r.Price, "\x00"),
		Deref(r.Rating, "\x00"),
		r.Link,
	} {
		b.WriteString(f)
		b.WriteByte(0x1f)
	}
	sum := sha3.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
