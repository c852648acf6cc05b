package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// OwnerKind tells whether a cart or order belongs to an account or to an anonymous session.
type OwnerKind int

const (
	OwnerUnknown OwnerKind = iota
	OwnerAuthenticated
	OwnerAnonymous
)

// Owner identifies whose cart or order is being operated on.
// Exactly one of AccountID and Token is meaningful, selected by Kind.
type Owner struct {
	Kind      OwnerKind
	AccountID uuid.UUID
	Token     string
	Role      string
}

// Authenticated returns an owner for a resolved account.
func Authenticated(accountID uuid.UUID, role string) Owner {
	return Owner{Kind: OwnerAuthenticated, AccountID: accountID, Role: role}
}

// Anonymous returns an owner for an anonymous cart token.
func Anonymous(token string) Owner {
	return Owner{Kind: OwnerAnonymous, Token: token}
}

func (o Owner) IsAuthenticated() bool {
	return o.Kind == OwnerAuthenticated && o.AccountID != uuid.Nil
}

func (o Owner) IsAnonymous() bool {
	return o.Kind == OwnerAnonymous && o.Token != ""
}

func (o Owner) IsAdmin() bool {
	return o.IsAuthenticated() && o.Role == RoleAdmin
}

// Validate rejects owners that are neither a resolved account nor a non-empty token.
func (o Owner) Validate() error {
	if o.IsAuthenticated() || o.IsAnonymous() {
		return nil
	}
	return ErrOwnerRequired
}

func (o Owner) String() string {
	switch o.Kind {
	case OwnerAuthenticated:
		return fmt.Sprintf("account:%s", o.AccountID)
	case OwnerAnonymous:
		return "guest:" + o.Token
	default:
		return "unknown"
	}
}

const (
	RoleAdmin  = "admin"
	RoleBuyer  = "buyer"
	RoleFarmer = "farmer"
)
