package services

import (
	"regexp"

	"github.com/bimakw/portfolio-enricher/internal/domain/entities"
)

// addressPattern maps an address format to its chain and account type label
type addressPattern struct {
	re          *regexp.Regexp
	chain       string
	accountType string
}

// Ordered format patterns; first match wins. Unrecognized formats fall back
// to ethereum, which silently absorbs genuinely foreign formats. Existing
// behavior, kept on purpose.
var addressPatterns = []addressPattern{
	{regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`), entities.ChainEthereum, "Ethereum & EVM EOA"},
	{regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`), entities.ChainSolana, "Solana & SVM"},
	{regexp.MustCompile(`^bnb1[a-z0-9]{38}$`), entities.ChainBinance, "Binance Chain"},
	{regexp.MustCompile(`^cosmos1[a-z0-9]{38}$`), entities.ChainCosmos, "Cosmos"},
}

// ClassifyAddress maps an address string to its chain identifier and account
// type label. Total function: never fails.
func ClassifyAddress(address string) (chain, accountType string) {
	for _, p := range addressPatterns {
		if p.re.MatchString(address) {
			return p.chain, p.accountType
		}
	}
	return entities.ChainEthereum, "Ethereum & EVM EOA"
}
