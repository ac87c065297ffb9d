package cache

import (
	"encoding/hex"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"

	"stockpulse/pkg/contracts/domain"
)

// KeyVersion is bumped whenever the canonical layout or the entry format changes
const KeyVersion = "v1"

// KeySuffix is appended to every object key
const KeySuffix = ".json"

// CanonicalString renders the identity of req with a fixed field order and
// separators. Tickers are uppercased, deduplicated and sorted.
func CanonicalString(req domain.AnalysisRequest) string {
	req = req.Normalize()

	tickers := make([]string, len(req.Tickers))
	copy(tickers, req.Tickers)
	sort.Strings(tickers)

	var b strings.Builder
	b.WriteString(KeyVersion)
	b.WriteString("|tickers=")
	b.WriteString(strings.Join(tickers, ","))
	b.WriteString("|start=")
	b.WriteString(req.StartDate)
	b.WriteString("|end=")
	b.WriteString(req.EndDate)
	b.WriteString("|interval=")
	b.WriteString(string(req.Interval))
	return b.String()
}

// BuildKey derives the object key of req under prefix
func BuildKey(req domain.AnalysisRequest, prefix string) string {
	sum := blake2b.Sum256([]byte(CanonicalString(req)))
	return prefix + hex.EncodeToString(sum[:]) + KeySuffix
}
