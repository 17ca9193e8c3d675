package storage

import (
	"context"

	"github.com/google/uuid"
)

// LinkStorage is the durable store keyed by code. All operations are
// single-record. Lookups return (nil, nil) when no row matches.
type LinkStorage interface {
	// Insert atomically creates the link if its code is free. It returns
	// false when the code is already taken. There is no separate reserve
	// step: the record exists as soon as Insert reports true.
	Insert(ctx context.Context, link *ShortLink) (bool, error)

	// GetByCode looks up a link for public resolution (owner-independent).
	GetByCode(ctx context.Context, code string) (*ShortLink, error)

	// GetByCodeAndOwner looks up a link scoped to its owner.
	GetByCodeAndOwner(ctx context.Context, code string, owner uuid.UUID) (*ShortLink, error)

	// ListByOwner returns all links created by the owner, newest first.
	ListByOwner(ctx context.Context, owner uuid.UUID) ([]*ShortLink, error)

	// Update persists the mutable fields (target, expires_at) of a link.
	Update(ctx context.Context, link *ShortLink) error

	// Delete removes a link and its click log.
	Delete(ctx context.Context, code string) error

	// AppendClick records one click. Appends on the same code may run
	// concurrently; none may be lost.
	AppendClick(ctx context.Context, code string, ev ClickEvent) error

	// ListClicks returns the click log for a code in arrival order.
	ListClicks(ctx context.Context, code string) ([]ClickEvent, error)
}
