package parser

import (
	"fmt"
	"regexp"
	"strings"
)

// QuoteRequest is a parsed swap request before asset resolution.
type QuoteRequest struct {
	Amount      string
	SourceAsset string
	DestAsset   string
}

// ParseQuoteRequest parses a swap request in command form
// Examples:
//   - "quote 1.5 BTC to MUSD"
//   - "1.5 BTC to MUSD"
//   - "100 MUSD to BTC"
func ParseQuoteRequest(command string) (*QuoteRequest, error) {
	// Normalize the command
	command = strings.TrimSpace(strings.ToUpper(command))

	// Remove the word "QUOTE" if present at the beginning
	command = strings.TrimPrefix(command, "QUOTE ")

	// Pattern: <amount> <source_asset> TO <dest_asset>
	pattern := regexp.MustCompile(`^(\d+\.?\d*)\s+([A-Z0-9/-]+)\s+TO\s+([A-Z0-9/-]+)$`)

	matches := pattern.FindStringSubmatch(command)
	if matches == nil {
		return nil, fmt.Errorf("invalid quote format. Expected: '<amount> <asset> to <asset>' (e.g., '1.5 BTC to MUSD')")
	}

	req := &QuoteRequest{
		Amount:      matches[1],
		SourceAsset: NormalizeAssetSymbol(matches[2]),
		DestAsset:   NormalizeAssetSymbol(matches[3]),
	}
	if req.SourceAsset == req.DestAsset {
		return nil, fmt.Errorf("source and destination assets must differ")
	}
	return req, nil
}

// NormalizeAssetSymbol normalizes asset symbols to standard format
func NormalizeAssetSymbol(symbol string) string {
	symbol = strings.TrimSpace(strings.ToUpper(symbol))

	// Handle common aliases
	aliases := map[string]string{
		"WBTC": "BTC",
		"TBTC": "BTC",
		"USD":  "MUSD",
	}

	if normalized, exists := aliases[symbol]; exists {
		return normalized
	}

	return symbol
}
