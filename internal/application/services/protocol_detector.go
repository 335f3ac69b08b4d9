package services

import (
	"regexp"
	"strings"

	"github.com/bimakw/portfolio-enricher/internal/domain/entities"
)

// protocolPattern matches receipt tokens for one protocol. Within an entry
// the symbol prefix is checked first, then the symbol suffix, then the name
// pattern.
type protocolPattern struct {
	key          string
	protocolName string
	protocolType string
	symbolPrefix *regexp.Regexp
	symbolSuffix *regexp.Regexp
	namePattern  *regexp.Regexp
}

// Ordered protocol pattern table; first matching entry wins. Data-driven so
// new protocols are added here without touching detection flow.
var protocolPatterns = []protocolPattern{
	{
		key:          "aave",
		protocolName: "Aave",
		protocolType: "lending",
		symbolPrefix: regexp.MustCompile(`^a[A-Z]`),
		namePattern:  regexp.MustCompile(`(?i)Aave.*(interest|Variable|Stable|Debt)`),
	},
	{
		key:          "compound",
		protocolName: "Compound",
		protocolType: "lending",
		symbolPrefix: regexp.MustCompile(`^c[A-Z]`),
		namePattern:  regexp.MustCompile(`(?i)Compound`),
	},
	{
		key:          "curve",
		protocolName: "Curve",
		protocolType: "liquidity_pool",
		symbolSuffix: regexp.MustCompile(`-LP$`),
		namePattern:  regexp.MustCompile(`(?i)Curve.*LP`),
	},
	{
		key:          "uniswap_v2",
		protocolName: "Uniswap V2",
		protocolType: "liquidity_pool",
		namePattern:  regexp.MustCompile(`(?i)UNI-V2`),
	},
	{
		key:          "stakedao",
		protocolName: "Stake DAO",
		protocolType: "staking",
		symbolPrefix: regexp.MustCompile(`^sd[A-Z]`),
		namePattern:  regexp.MustCompile(`(?i)Stake ?DAO`),
	},
	{
		key:          "gmx",
		protocolName: "GMX",
		protocolType: "perpetuals",
		symbolPrefix: regexp.MustCompile(`^GM$`),
		namePattern:  regexp.MustCompile(`(?i)GMX.*Market`),
	},
}

// Substrings marking a token as pegged to a stable asset
var stablecoinMarkers = []string{
	"USD", "DAI", "USDC", "USDT", "LUSD", "FRAX", "BUSD", "CRVUSD",
}

// DetectProtocol classifies token metadata as a DeFi receipt token.
// Returns nil when no pattern matches.
func DetectProtocol(symbol, name string) *entities.ProtocolDescriptor {
	for _, p := range protocolPatterns {
		matched := false
		switch {
		case p.symbolPrefix != nil && p.symbolPrefix.MatchString(symbol):
			matched = true
		case p.symbolSuffix != nil && p.symbolSuffix.MatchString(symbol):
			matched = true
		case p.namePattern != nil && p.namePattern.MatchString(name):
			matched = true
		}
		if !matched {
			continue
		}

		return &entities.ProtocolDescriptor{
			ProtocolKey:  p.key,
			ProtocolName: p.protocolName,
			Type:         p.protocolType,
			IsDebt:       isDebtToken(symbol, name),
			EstimatedPeg: detectStablecoinPeg(symbol, name),
		}
	}

	return nil
}

// isDebtToken flags tokens whose metadata carries a debt indicator
func isDebtToken(symbol, name string) bool {
	return strings.Contains(strings.ToLower(symbol), "debt") ||
		strings.Contains(strings.ToLower(name), "debt")
}

// detectStablecoinPeg returns a fallback unit price of 1.0 for tokens whose
// symbol or name references a stable asset, nil otherwise. Used only when
// the live price lookup misses.
func detectStablecoinPeg(symbol, name string) *float64 {
	upperSymbol := strings.ToUpper(symbol)
	upperName := strings.ToUpper(name)
	for _, marker := range stablecoinMarkers {
		if strings.Contains(upperSymbol, marker) || strings.Contains(upperName, marker) {
			peg := 1.0
			return &peg
		}
	}
	return nil
}
