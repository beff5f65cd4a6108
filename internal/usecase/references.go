// File: internal/usecase/references.go
package usecase

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Merchant-side references are ULIDs so they sort by creation time and stay
// unambiguous next to gateway tracking ids (which are UUIDs).

func newOrderReference(prefix string) string {
	return prefix + "-" + ulid.Make().String()
}

func newReceiptNumber(prefix string) string {
	return prefix + "-" + ulid.Make().String()
}

func newUUID() string { return uuid.NewString() }
