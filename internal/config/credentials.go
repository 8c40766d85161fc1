package config

import (
	"os"
	"path/filepath"
	"regexp"
)

// ClientCredentials is the OAuth client used to refresh account tokens.
type ClientCredentials struct {
	ClientID     string
	ClientSecret string
}

var (
	clientIDRe     = regexp.MustCompile(`ANTIGRAVITY_CLIENT_ID\s*=\s*"([^"]+)"`)
	clientSecretRe = regexp.MustCompile(`ANTIGRAVITY_CLIENT_SECRET\s*=\s*"([^"]+)"`)
)

// credentialFiles lists the installed auth plugin files that embed the client.
func credentialFiles() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	base := filepath.Join(home, ".config", "opencode", "node_modules", "opencode-antigravity-auth", "dist", "src")
	return []string{
		filepath.Join(base, "constants.d.ts"),
		filepath.Join(base, "constants.js"),
	}
}

// LoadClientCredentials reads the OAuth client from the first installed plugin file that has one.
func LoadClientCredentials() *ClientCredentials {
	for _, path := range credentialFiles() {
		content, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if creds := parseCredentials(string(content)); creds != nil {
			return creds
		}
	}
	return nil
}

func parseCredentials(content string) *ClientCredentials {
	creds := &ClientCredentials{}

	if match := clientIDRe.FindStringSubmatch(content); len(match) > 1 {
		creds.ClientID = match[1]
	}
	if match := clientSecretRe.FindStringSubmatch(content); len(match) > 1 {
		creds.ClientSecret = match[1]
	}

	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil
	}
	return creds
}
