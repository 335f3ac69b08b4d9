package services

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/bimakw/portfolio-enricher/internal/domain/entities"
)

// PositionNormalizer turns stored defi_positions payloads into canonical
// NormalizedPosition records. Every parse path is defensive: a malformed
// payload degrades to zero positions for that account, never an error.
type PositionNormalizer struct {
	logger *zap.Logger
}

// NewPositionNormalizer creates a normalizer
func NewPositionNormalizer(logger *zap.Logger) *PositionNormalizer {
	return &PositionNormalizer{logger: logger}
}

// NormalizeAccount extracts positions for one account. Parse failures are
// logged and yield an empty list.
func (n *PositionNormalizer) NormalizeAccount(account *entities.Account) []entities.NormalizedPosition {
	groups, err := entities.DecodePositionsPayload(account.DeFiPositions)
	if err != nil {
		n.logger.Warn("Skipping account with unparseable positions payload",
			zap.Int64("account_id", account.ID),
			zap.Error(err),
		)
		return nil
	}

	var positions []entities.NormalizedPosition
	for groupIdx, group := range groups {
		for _, pos := range group.Positions {
			positions = append(positions, normalizePosition(account, group, groupIdx, pos))
		}
	}

	return positions
}

// NormalizeAll flattens positions across many accounts. One account's bad
// payload contributes zero positions without aborting the rest.
func (n *PositionNormalizer) NormalizeAll(accounts []entities.Account) []entities.NormalizedPosition {
	var all []entities.NormalizedPosition
	for i := range accounts {
		all = append(all, n.NormalizeAccount(&accounts[i])...)
	}
	return all
}

// normalizePosition builds one canonical record, deriving chain and
// protocol_id with the documented fallbacks
func normalizePosition(account *entities.Account, group entities.RawProtocolGroup, groupIdx int, pos entities.RawPosition) entities.NormalizedPosition {
	// Position chain wins unless absent or the literal "unknown"
	chain := pos.Chain
	if chain == "" || strings.EqualFold(chain, entities.ChainUnknown) {
		chain = account.Chain
	}

	// protocol_id: explicit id, else name, else positional placeholder so
	// colliding names stay distinguishable
	protocolID := group.ID
	if protocolID == "" {
		protocolID = group.Name
	}
	if protocolID == "" {
		protocolID = fmt.Sprintf("protocol_%d", groupIdx)
	}

	protocolName := group.Name
	if protocolName == "" {
		protocolName = "Unknown Protocol"
	}

	protocolIcon := group.LogoURL
	if protocolIcon == "" {
		protocolIcon = group.IconURL
	}
	tokenIcon := pos.LogoURL
	if tokenIcon == "" {
		tokenIcon = pos.IconURL
	}

	return entities.NewNormalizedPosition(entities.NormalizedPosition{
		AccountID:       account.ID,
		Address:         account.Address,
		Chain:           chain,
		ProtocolID:      protocolID,
		ProtocolName:    protocolName,
		ProtocolType:    group.Type,
		ProtocolIconURL: protocolIcon,
		TokenSymbol:     pos.TokenSymbol,
		TokenName:       pos.TokenName,
		TokenIconURL:    tokenIcon,
		Balance:         pos.Balance,
		UsdValue:        pos.UsdValue,
		IsDebt:          pos.IsDebt,
		HealthRate:      group.HealthRate,
	})
}
