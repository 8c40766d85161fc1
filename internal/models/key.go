package models

import (
	"errors"
	"strings"
)

// ErrInvalidKey is returned when an entity key string cannot be parsed.
var ErrInvalidKey = errors.New("invalid entity key")

// EntityKey identifies one tracked sub-resource of one account.
type EntityKey struct {
	AccountID string
	Resource  string
}

// NewEntityKey builds a key from its parts.
func NewEntityKey(accountID, resource string) EntityKey {
	return EntityKey{AccountID: accountID, Resource: resource}
}

// String returns the wire form "<account_id>:<resource>".
func (k EntityKey) String() string {
	return k.AccountID + ":" + k.Resource
}

// ParseEntityKey splits a wire key on its first colon.
// Account ids never contain a colon, resource names may.
func ParseEntityKey(s string) (EntityKey, error) {
	accountID, resource, ok := strings.Cut(s, ":")
	if !ok || accountID == "" || resource == "" {
		return EntityKey{}, ErrInvalidKey
	}
	return EntityKey{AccountID: accountID, Resource: resource}, nil
}
