package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/j-veylop/antigravity-quota-history/internal/models"
	"github.com/j-veylop/antigravity-quota-history/internal/services"
	"github.com/j-veylop/antigravity-quota-history/internal/services/quota"
)

func (a *app) accountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "List tracked accounts",
		RunE: func(_ *cobra.Command, _ []string) error {
			return a.withManager(func(mgr *services.Manager) error {
				list := mgr.Accounts().List()
				if len(list) == 0 {
					fmt.Fprintf(a.out, "No accounts in %s\n", a.cfg.AccountsPath)
					return nil
				}
				for i := range list {
					marker := " "
					if list[i].IsActive {
						marker = "*"
					}
					fmt.Fprintf(a.out, "%s %s  %s\n", marker, list[i].ID, list[i].Name())
				}
				return nil
			})
		},
	}

	cmd.AddCommand(a.accountsUseCmd(), a.accountsAddCmd())
	return cmd
}

func (a *app) accountsUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <id>",
		Short: "Mark one account as the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.withManager(func(mgr *services.Manager) error {
				if err := mgr.Accounts().SetActive(args[0]); err != nil {
					return err
				}
				active := mgr.Accounts().Active()
				fmt.Fprintf(a.out, "Active account: %s\n", active.Name())
				return nil
			})
		},
	}
}

func (a *app) accountsAddCmd() *cobra.Command {
	var name, email, token string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Track a new account from a refresh or access token",
		RunE: func(_ *cobra.Command, _ []string) error {
			token = strings.TrimSpace(token)
			if token == "" {
				return errors.New("--token is required")
			}

			acc := newAccount(name, email, token)
			return a.withManager(func(mgr *services.Manager) error {
				if err := mgr.Accounts().Add(acc); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Added account %s\n", acc.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&token, "token", "", "Refresh token (1//...) or access token")
	return cmd
}

func newAccount(name, email, token string) models.Account {
	acc := models.Account{
		ID:          uuid.NewString(),
		DisplayName: name,
		Email:       email,
	}
	if quota.IsRefreshToken(token) {
		acc.RefreshToken = token
	} else {
		acc.AccessToken = token
	}
	return acc
}
