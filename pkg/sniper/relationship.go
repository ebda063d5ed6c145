package sniper

import "context"

// RelationshipKind is the account-level relation to another user.
type RelationshipKind int

const (
	RelationshipFriend   RelationshipKind = 1
	RelationshipBlocked  RelationshipKind = 2
	RelationshipIncoming RelationshipKind = 3
	RelationshipOutgoing RelationshipKind = 4
)

// RelationshipKinds lists the known kinds in display order.
var RelationshipKinds = []RelationshipKind{
	RelationshipFriend,
	RelationshipBlocked,
	RelationshipIncoming,
	RelationshipOutgoing,
}

func (k RelationshipKind) String() string {
	switch k {
	case RelationshipFriend:
		return "friends"
	case RelationshipBlocked:
		return "blocked"
	case RelationshipIncoming:
		return "incoming requests"
	case RelationshipOutgoing:
		return "outgoing requests"
	default:
		return "other"
	}
}

// Relationship pairs a user with the account's relation to them.
type Relationship struct {
	Kind RelationshipKind
	User User
}

// RelationshipManager lists and removes the account's relationships.
type RelationshipManager interface {
	// Relationships returns every friend, block, and pending request.
	Relationships(ctx context.Context) ([]Relationship, error)
	// RemoveRelationship unfriends, unblocks, or cancels a request.
	RemoveRelationship(ctx context.Context, userID string) error
}

// ProfileEditor changes the account profile.
type ProfileEditor interface {
	// SetAvatar downloads imageURL and installs it as the account avatar.
	SetAvatar(ctx context.Context, imageURL string) error
}
