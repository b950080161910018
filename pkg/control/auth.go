/*
 * matchcast is a project to relay live sports HLS streams to any player.
 * Copyright (C) 2025  Lucas Duport
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

package control

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/lucasduport/matchcast/pkg/config"
	"github.com/lucasduport/matchcast/pkg/utils"
)

// ErrUnauthorized is returned when credentials do not grant admin rights.
var ErrUnauthorized = errors.New("unauthorized")

// Credentials are whatever the admin sent along with a request.
type Credentials struct {
	Secret   string
	Username string
	Password string
}

// Authenticator validates admin credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, creds Credentials) error
}

// SecretAuth accepts a single shared secret.
type SecretAuth struct {
	secret string
}

// NewSecretAuth returns a SecretAuth. An empty secret rejects everything.
func NewSecretAuth(secret string) *SecretAuth {
	return &SecretAuth{secret: secret}
}

func (a *SecretAuth) Authenticate(_ context.Context, creds Credentials) error {
	if a.secret == "" || creds.Secret == "" {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(a.secret), []byte(creds.Secret)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// LDAPAuth binds against a directory and optionally requires a group.
type LDAPAuth struct {
	cfg config.LDAPConfig
}

// NewLDAPAuth returns an LDAPAuth for cfg.
func NewLDAPAuth(cfg config.LDAPConfig) *LDAPAuth {
	return &LDAPAuth{cfg: cfg}
}

func (a *LDAPAuth) Authenticate(ctx context.Context, creds Credentials) error {
	if creds.Username == "" || creds.Password == "" {
		return ErrUnauthorized
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if !ldapAuthenticate(a.cfg, creds.Username, creds.Password) {
		return ErrUnauthorized
	}
	return nil
}

// anyAuth succeeds when one of its authenticators does.
type anyAuth []Authenticator

func (a anyAuth) Authenticate(ctx context.Context, creds Credentials) error {
	for _, auth := range a {
		if err := auth.Authenticate(ctx, creds); err == nil {
			return nil
		}
	}
	return ErrUnauthorized
}

// NewAuthenticator combines the shared secret with LDAP when it is enabled.
func NewAuthenticator(cfg *config.ProxyConfig) Authenticator {
	auths := anyAuth{NewSecretAuth(cfg.AdminSecret.String())}
	if cfg.LDAP.Enabled {
		utils.InfoLog("LDAP admin authentication enabled (%s)", cfg.LDAP.Server)
		auths = append(auths, NewLDAPAuth(cfg.LDAP))
	}
	return auths
}

// ldapAuthenticate binds with an optional service account, finds the user DN,
// optionally validates group membership, then attempts a user bind.
func ldapAuthenticate(cfg config.LDAPConfig, username, password string) bool {
	utils.DebugLog("LDAP DialURL: %s", cfg.Server)
	l, err := ldap.DialURL(cfg.Server)
	if err != nil {
		utils.DebugLog("LDAP DialURL error: %v", err)
		return false
	}
	defer l.Close()

	if cfg.BindDN != "" && cfg.BindPassword != "" {
		if err := l.Bind(cfg.BindDN, cfg.BindPassword.String()); err != nil {
			utils.DebugLog("LDAP service bind error: %v", err)
			return false
		}
	}

	filter := fmt.Sprintf("(%s=%s)", cfg.UserAttribute, ldap.EscapeFilter(username))
	searchRequest := ldap.NewSearchRequest(
		cfg.BaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 1, 0, false,
		filter,
		[]string{"dn", cfg.GroupAttribute},
		nil,
	)
	sr, err := l.Search(searchRequest)
	if err != nil {
		utils.DebugLog("LDAP search error: %v", err)
		return false
	}
	if len(sr.Entries) == 0 {
		utils.DebugLog("LDAP search: no entries found for user: %s", username)
		return false
	}
	userDN := sr.Entries[0].DN

	if cfg.RequiredGroup != "" && cfg.GroupAttribute != "" && !hasGroup(sr.Entries[0].GetAttributeValues(cfg.GroupAttribute), cfg.RequiredGroup) {
		utils.DebugLog("LDAP user %s is not a member of required group: %s", username, cfg.RequiredGroup)
		return false
	}

	if err := l.Bind(userDN, password); err != nil {
		utils.DebugLog("LDAP user bind error: %v", err)
		return false
	}
	utils.DebugLog("LDAP user bind succeeded for user: %s", username)
	return true
}

func hasGroup(values []string, required string) bool {
	required = strings.ToLower(required)
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), required) {
			return true
		}
	}
	return false
}
