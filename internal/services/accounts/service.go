// Package accounts provides the account directory: a JSON file of accounts
// with file watching and atomic persistence.
package accounts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/j-veylop/antigravity-quota-history/internal/logger"
	"github.com/j-veylop/antigravity-quota-history/internal/models"
)

var (
	// ErrNotFound is returned when no account matches.
	ErrNotFound = errors.New("account not found")
	// ErrDuplicate is returned when adding an account whose id or email exists.
	ErrDuplicate = errors.New("account already exists")
)

// fileVersion is written to every saved accounts file.
const fileVersion = 1

// AccountsFile represents the JSON file structure for accounts storage.
type AccountsFile struct {
	Accounts []models.Account `json:"accounts"`
	Version  int              `json:"version,omitempty"`
}

// legacyAccount is one entry of the plain array written by the desktop app.
type legacyAccount struct {
	TokenData *struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	} `json:"token_data"`
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Token    string `json:"token"`
	IsActive bool   `json:"is_active"`
}

func (l legacyAccount) toAccount() models.Account {
	acc := models.Account{
		ID:          l.ID,
		DisplayName: l.Name,
		Email:       l.Email,
		AccessToken: l.Token,
		IsActive:    l.IsActive,
	}
	if l.TokenData != nil {
		acc.AccessToken = l.TokenData.AccessToken
		acc.RefreshToken = l.TokenData.RefreshToken
	}
	return acc
}

// Event represents an account service event.
type Event struct {
	Error error
	Type  EventType
}

// EventType defines the type of account event.
type EventType int

const (
	EventAccountsLoaded EventType = iota
	EventAccountsChanged
	EventAccountsSaved
	EventError
)

// Service manages accounts with file watching and change notifications.
// Writers must go through Save, Add or SetActive; each one replaces the
// whole file.
type Service struct {
	mu            sync.RWMutex
	accounts      []models.Account
	filePath      string
	watcher       *fsnotify.Watcher
	onChange      func()
	eventChan     chan Event
	stopChan      chan struct{}
	debounceTimer *time.Timer
	lastWrite     time.Time
}

// New creates a new accounts service and starts file watching.
func New(filePath string) (*Service, error) {
	if filePath == "" {
		return nil, errors.New("accounts path is empty")
	}

	s := &Service{
		accounts:  make([]models.Account, 0),
		filePath:  filePath,
		eventChan: make(chan Event, 100),
		stopChan:  make(chan struct{}),
	}

	// Ensure directory exists
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create accounts directory: %w", err)
	}

	if err := s.loadAccounts(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load accounts: %w", err)
		}
		if err := s.saveAccounts(); err != nil {
			return nil, fmt.Errorf("failed to create accounts file: %w", err)
		}
	}

	if err := s.startWatcher(); err != nil {
		return nil, fmt.Errorf("failed to start file watcher: %w", err)
	}

	s.sendEvent(Event{Type: EventAccountsLoaded})

	return s, nil
}

// Path returns the accounts file path.
func (s *Service) Path() string {
	return s.filePath
}

// Events returns the event channel for subscribing to account changes.
func (s *Service) Events() <-chan Event {
	return s.eventChan
}

// OnChange registers fn to run after the file was changed by another process.
func (s *Service) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// List returns a deep copy of all accounts in file order.
func (s *Service) List() []models.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accounts := make([]models.Account, len(s.accounts))
	for i := range s.accounts {
		accounts[i] = s.accounts[i].Clone()
	}
	return accounts
}

// Save replaces the whole account list.
func (s *Service) Save(list []models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous := s.accounts
	s.accounts = make([]models.Account, len(list))
	for i := range list {
		s.accounts[i] = list[i].Clone()
	}

	if err := s.saveAccountsLocked(); err != nil {
		s.accounts = previous
		return fmt.Errorf("failed to save accounts: %w", err)
	}

	s.sendEvent(Event{Type: EventAccountsSaved})
	return nil
}

// Active returns the account marked active, or nil.
func (s *Service) Active() *models.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.accounts {
		if s.accounts[i].IsActive {
			acc := s.accounts[i].Clone()
			return &acc
		}
	}
	return nil
}

// SetActive marks exactly the account with id as active.
func (s *Service) SetActive(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if models.FindAccount(s.accounts, id) == nil {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}

	for i := range s.accounts {
		s.accounts[i].IsActive = s.accounts[i].ID == id
	}

	if err := s.saveAccountsLocked(); err != nil {
		return fmt.Errorf("failed to save accounts: %w", err)
	}

	s.sendEvent(Event{Type: EventAccountsSaved})
	return nil
}

// Add appends a new account. The id is required; AddedAt defaults to now.
func (s *Service) Add(account models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if account.ID == "" {
		return errors.New("account id is empty")
	}
	for _, acc := range s.accounts {
		if acc.ID == account.ID || (account.Email != "" && acc.Email == account.Email) {
			return fmt.Errorf("%s: %w", account.ID, ErrDuplicate)
		}
	}

	if account.AddedAt.IsZero() {
		account.AddedAt = time.Now()
	}

	s.accounts = append(s.accounts, account)

	if err := s.saveAccountsLocked(); err != nil {
		// Rollback
		s.accounts = s.accounts[:len(s.accounts)-1]
		return fmt.Errorf("failed to save accounts: %w", err)
	}

	s.sendEvent(Event{Type: EventAccountsSaved})
	return nil
}

// Count returns the number of accounts.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}

// parseAccounts parses account data in the current or the legacy array format.
func parseAccounts(data []byte) ([]models.Account, error) {
	var accountsFile AccountsFile
	if err := json.Unmarshal(data, &accountsFile); err == nil {
		if accountsFile.Accounts == nil {
			accountsFile.Accounts = make([]models.Account, 0)
		}
		return accountsFile.Accounts, nil
	}

	var legacy []legacyAccount
	if err := json.Unmarshal(data, &legacy); err == nil {
		accounts := make([]models.Account, len(legacy))
		for i, l := range legacy {
			accounts[i] = l.toAccount()
		}
		return accounts, nil
	}

	return nil, errors.New("failed to parse accounts file: invalid format")
}

// loadAccounts loads accounts from the JSON file.
func (s *Service) loadAccounts() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	accounts, err := parseAccounts(data)
	if err != nil {
		return err
	}

	s.accounts = accounts
	return nil
}

func (s *Service) saveAccounts() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveAccountsLocked()
}

// saveAccountsLocked saves accounts to the JSON file (must hold lock).
func (s *Service) saveAccountsLocked() error {
	accountsFile := AccountsFile{
		Accounts: s.accounts,
		Version:  fileVersion,
	}

	data, err := json.MarshalIndent(accountsFile, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal accounts: %w", err)
	}

	// Write to temp file first, then rename
	tmpFile := s.filePath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpFile, s.filePath); err != nil {
		if removeErr := os.Remove(tmpFile); removeErr != nil {
			logger.Error("failed to remove temp file", "error", removeErr)
		}
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	s.lastWrite = time.Now()
	return nil
}

// startWatcher starts the file system watcher.
func (s *Service) startWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	s.watcher = watcher

	// Watch the directory (to catch file creation/deletion)
	dir := filepath.Dir(s.filePath)
	if err := watcher.Add(dir); err != nil {
		if closeErr := watcher.Close(); closeErr != nil {
			logger.Error("failed to close watcher", "error", closeErr)
		}
		return err
	}

	go s.watchLoop()
	return nil
}

// watchLoop handles file system events with debouncing.
func (s *Service) watchLoop() {
	const debounceInterval = 100 * time.Millisecond

	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}

			if filepath.Base(event.Name) != filepath.Base(s.filePath) {
				continue
			}

			// A rename of our own temp file shows up as a Create.
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				s.mu.Lock()
				if s.debounceTimer != nil {
					s.debounceTimer.Stop()
				}
				s.debounceTimer = time.AfterFunc(debounceInterval, s.handleFileChange)
				s.mu.Unlock()
			}

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.sendEvent(Event{Type: EventError, Error: err})

		case <-s.stopChan:
			return
		}
	}
}

// handleFileChange reloads accounts from file after an external change.
func (s *Service) handleFileChange() {
	s.mu.RLock()
	info, err := os.Stat(s.filePath)
	ownWrite := err == nil && !info.ModTime().After(s.lastWrite)
	s.mu.RUnlock()

	if ownWrite {
		return
	}

	if err := s.loadAccounts(); err != nil {
		logger.Warn("failed to reload accounts", "path", s.filePath, "error", err)
		s.sendEvent(Event{Type: EventError, Error: err})
		return
	}

	s.sendEvent(Event{Type: EventAccountsChanged})

	s.mu.RLock()
	onChange := s.onChange
	s.mu.RUnlock()

	if onChange != nil {
		onChange()
	}
}

// sendEvent sends an event to the event channel non-blocking.
func (s *Service) sendEvent(event Event) {
	select {
	case s.eventChan <- event:
	default:
		// Channel full, drop oldest event
		select {
		case <-s.eventChan:
		default:
		}
		select {
		case s.eventChan <- event:
		default:
		}
	}
}

// Close stops the file watcher and cleans up resources.
func (s *Service) Close() error {
	close(s.stopChan)

	s.mu.Lock()
	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
	}
	s.mu.Unlock()

	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}
