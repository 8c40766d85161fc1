// Package reconcile keeps the active account in the directory in line with
// the account signed in to the IDE.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/j-veylop/antigravity-quota-history/internal/db"
	"github.com/j-veylop/antigravity-quota-history/internal/logger"
	"github.com/j-veylop/antigravity-quota-history/internal/models"
	"github.com/j-veylop/antigravity-quota-history/internal/services/quota"
)

// Fallbacks for auto-imported accounts whose profile is incomplete.
const (
	DefaultImportName  = "Antigravity user"
	DefaultImportEmail = "auto-sync@antigravity"
)

// TokenSource yields the access token of the signed-in IDE account.
type TokenSource interface {
	ActiveToken(ctx context.Context) (string, error)
}

// Identity resolves the Google profile behind an access token.
type Identity interface {
	UserInfo(ctx context.Context, accessToken string) (*quota.UserInfo, error)
}

// Directory is the account store being reconciled.
type Directory interface {
	List() []models.Account
	Save(list []models.Account) error
}

// Result describes what a sync did.
type Result struct {
	AccountID string
	Name      string
	Imported  bool
	Changed   bool
}

// Reconciler matches the IDE session to an account and marks it active.
type Reconciler struct {
	tokens   TokenSource
	identity Identity
	dir      Directory
	newID    func() string
	now      func() time.Time
}

// New creates a Reconciler.
func New(tokens TokenSource, identity Identity, dir Directory) *Reconciler {
	return &Reconciler{
		tokens:   tokens,
		identity: identity,
		dir:      dir,
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

// Sync reads the IDE session and updates which account is active. Only
// IsActive flags change on existing accounts; quota and identity fields are
// left as they are. An unknown session is imported when its profile can be
// resolved. Without an IDE session nothing changes.
func (r *Reconciler) Sync(ctx context.Context) (Result, error) {
	token, err := r.tokens.ActiveToken(ctx)
	if err != nil {
		if errors.Is(err, db.ErrNoSession) || errors.Is(err, db.ErrStateNotFound) {
			return Result{}, nil
		}
		return Result{}, fmt.Errorf("failed to read IDE session: %w", err)
	}

	var info *quota.UserInfo
	if r.identity != nil {
		info, err = r.identity.UserInfo(ctx, token)
		if err != nil {
			logger.Debug("failed to resolve IDE session identity", "error", err)
			info = nil
		}
	}

	list := r.dir.List()
	matched := -1
	var result Result

	for i := range list {
		acc := &list[i]
		isMatch := matched < 0 && matches(acc, token, info)
		if isMatch {
			matched = i
			result.AccountID = acc.ID
			result.Name = acc.Name()
		}
		if acc.IsActive != isMatch {
			acc.IsActive = isMatch
			result.Changed = true
		}
	}

	if matched < 0 && info != nil {
		acc := importAccount(info, token, r.newID(), r.now())
		list = append(list, acc)
		result = Result{AccountID: acc.ID, Name: acc.Name(), Imported: true, Changed: true}
	}

	if !result.Changed {
		return result, nil
	}

	if err := r.dir.Save(list); err != nil {
		return result, fmt.Errorf("failed to save reconciled accounts: %w", err)
	}
	return result, nil
}

// Reconcile runs Sync and logs the outcome.
func (r *Reconciler) Reconcile(ctx context.Context) error {
	result, err := r.Sync(ctx)
	if err != nil {
		return err
	}
	switch {
	case result.Imported:
		logger.Info("imported IDE account", "id", result.AccountID, "name", result.Name)
	case result.Changed:
		logger.Info("active account changed", "id", result.AccountID, "name", result.Name)
	}
	return nil
}

func matches(acc *models.Account, token string, info *quota.UserInfo) bool {
	if info != nil && info.Email != "" && info.Email == acc.Email {
		return true
	}
	return acc.AccessToken != "" && acc.AccessToken == token
}

func importAccount(info *quota.UserInfo, token, id string, now time.Time) models.Account {
	acc := models.Account{
		ID:          id,
		DisplayName: info.Name,
		Email:       info.Email,
		AccessToken: token,
		IsActive:    true,
		AddedAt:     now,
	}
	if acc.DisplayName == "" {
		acc.DisplayName = DefaultImportName
	}
	if acc.Email == "" {
		acc.Email = DefaultImportEmail
	}
	return acc
}
