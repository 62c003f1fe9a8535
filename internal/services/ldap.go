package services

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/ruma-go/homeserver/internal/config"
)

var (
	ErrLDAPDisabled       = errors.New("LDAP is not enabled")
	ErrLDAPUserNotFound   = errors.New("user not found in LDAP")
	ErrLDAPAmbiguous      = errors.New("multiple users found in LDAP")
	ErrLDAPBadCredentials = errors.New("invalid LDAP credentials")
	ldapDialTimeout       = 5 * time.Second
	ldapSearchAttributes  = []string{"dn", "cn", "displayName", "mail", "uid", "sAMAccountName"}
)

// LDAPUser is the subset of a directory entry a homeserver account needs.
type LDAPUser struct {
	DN          string
	Localpart   string
	DisplayName string
	Email       string
}

type LDAPService struct {
	config *config.LDAPConfig
}

func NewLDAPService(cfg *config.LDAPConfig) *LDAPService {
	return &LDAPService{config: cfg}
}

func (s *LDAPService) Enabled() bool {
	return s.config != nil && s.config.Enabled
}

// Authenticate looks the user up with the service account and verifies the
// password by binding as the found entry.
func (s *LDAPService) Authenticate(username, password string) (*LDAPUser, error) {
	if !s.Enabled() {
		return nil, ErrLDAPDisabled
	}
	if password == "" {
		return nil, ErrLDAPBadCredentials
	}

	conn, err := s.dial()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to LDAP server: %w", err)
	}
	defer conn.Close()

	if s.config.BindDN != "" {
		if err := conn.Bind(s.config.BindDN, s.config.BindPassword); err != nil {
			return nil, fmt.Errorf("failed to bind with service account: %w", err)
		}
	}

	searchRequest := ldap.NewSearchRequest(
		s.config.BaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 2, int(ldapDialTimeout.Seconds()), false,
		fmt.Sprintf(s.config.UserFilter, ldap.EscapeFilter(username)),
		ldapSearchAttributes,
		nil,
	)

	result, err := conn.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("LDAP search failed: %w", err)
	}
	switch len(result.Entries) {
	case 0:
		return nil, ErrLDAPUserNotFound
	case 1:
	default:
		return nil, ErrLDAPAmbiguous
	}

	entry := result.Entries[0]
	if err := conn.Bind(entry.DN, password); err != nil {
		return nil, ErrLDAPBadCredentials
	}

	return entryToUser(entry, username), nil
}

func (s *LDAPService) dial() (*ldap.Conn, error) {
	scheme := "ldap"
	if s.config.UseSSL {
		scheme = "ldaps"
	}
	url := fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(s.config.Host, fmt.Sprint(s.config.Port)))

	opts := []ldap.DialOpt{ldap.DialWithDialer(&net.Dialer{Timeout: ldapDialTimeout})}
	if s.config.UseSSL {
		opts = append(opts, ldap.DialWithTLSConfig(&tls.Config{ServerName: s.config.Host}))
	}
	return ldap.DialURL(url, opts...)
}

// entryToUser maps directory attributes onto an account. Active Directory
// keeps the login name in sAMAccountName instead of uid.
func entryToUser(entry *ldap.Entry, username string) *LDAPUser {
	localpart := entry.GetAttributeValue("uid")
	if localpart == "" {
		localpart = entry.GetAttributeValue("sAMAccountName")
	}
	if localpart == "" {
		localpart = username
	}

	display := entry.GetAttributeValue("displayName")
	if display == "" {
		display = entry.GetAttributeValue("cn")
	}

	return &LDAPUser{
		DN:          entry.DN,
		Localpart:   strings.ToLower(localpart),
		DisplayName: display,
		Email:       entry.GetAttributeValue("mail"),
	}
}
