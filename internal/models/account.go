// Package models defines data structures and domain types.
package models

import (
	"slices"
	"time"
)

// Account is one tracked account in the account directory.
// ID and DisplayName are identity fields and are never rewritten by sampling.
type Account struct {
	AddedAt      time.Time     `json:"addedAt"`
	Quota        *AccountQuota `json:"quota,omitempty"`
	ID           string        `json:"id"`
	DisplayName  string        `json:"displayName"`
	Email        string        `json:"email,omitempty"`
	AccessToken  string        `json:"accessToken,omitempty"`
	RefreshToken string        `json:"refreshToken,omitempty"`
	ProjectID    string        `json:"projectId,omitempty"`
	IsActive     bool          `json:"isActive,omitempty"`
}

// Name returns the display name, falling back to the email.
func (a *Account) Name() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.Email
}

// HasQuota reports whether the account has ever been sampled.
func (a *Account) HasQuota() bool {
	return a.Quota != nil && !a.Quota.LastUpdated.IsZero()
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() Account {
	clone := *a
	if a.Quota != nil {
		q := a.Quota.Clone()
		clone.Quota = &q
	}
	return clone
}

// AccountQuota is the last known quota state of an account.
type AccountQuota struct {
	LastUpdated time.Time       `json:"lastUpdated"`
	Tier        string          `json:"tier,omitempty"`
	Resources   []ResourceQuota `json:"resources"`
}

// Clone returns a deep copy of the quota.
func (q *AccountQuota) Clone() AccountQuota {
	out := AccountQuota{LastUpdated: q.LastUpdated, Tier: q.Tier}
	if q.Resources != nil {
		out.Resources = make([]ResourceQuota, len(q.Resources))
		for i, r := range q.Resources {
			out.Resources[i] = r
			if r.ResetAt != nil {
				v := *r.ResetAt
				out.Resources[i].ResetAt = &v
			}
		}
	}
	return out
}

// Resource returns the named resource, or nil.
func (q *AccountQuota) Resource(name string) *ResourceQuota {
	if q == nil {
		return nil
	}
	for i := range q.Resources {
		if q.Resources[i].Name == name {
			return &q.Resources[i]
		}
	}
	return nil
}

// ResourceQuota is the remaining percentage of one named sub-resource.
type ResourceQuota struct {
	// ResetAt is the epoch second of the next reset, nil when not reported.
	ResetAt    *int64  `json:"resetAt,omitempty"`
	Name       string  `json:"name"`
	Percentage float64 `json:"percentage"`
}

// ResetTime returns ResetAt as a time, zero when unknown.
func (r *ResourceQuota) ResetTime() time.Time {
	if r.ResetAt == nil {
		return time.Time{}
	}
	return time.Unix(*r.ResetAt, 0)
}

// ResetAtPtr is a helper for building ResourceQuota values.
func ResetAtPtr(ts int64) *int64 {
	return &ts
}

// FindAccount returns a pointer into list for the given id, or nil.
func FindAccount(list []Account, id string) *Account {
	idx := slices.IndexFunc(list, func(a Account) bool { return a.ID == id })
	if idx < 0 {
		return nil
	}
	return &list[idx]
}
