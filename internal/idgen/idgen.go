// Package idgen is the matching core's second external collaborator (spec
// §1): a generator of globally unique, collision-free order and trade
// identifiers. Orders are expected to already carry an id by the time they
// reach the engine (callers mint them); the engine uses this package only
// for ids it mints itself — trades and, on a price-change modify, nothing
// (the original id is preserved, see DESIGN.md).
package idgen

import "github.com/google/uuid"

// Generator mints OrderId/TradeId values.
type Generator interface {
	New() uuid.UUID
}

// UUIDGenerator is the production generator, backed by google/uuid v4.
type UUIDGenerator struct{}

func (UUIDGenerator) New() uuid.UUID { return uuid.New() }
