// Package model contains the core entities shared between the store,
// the authorization engine and the HTTP layer.
package model

import "time"

// RealmType determines how a realm's domain value is matched.
type RealmType string

const (
	RealmHost      RealmType = "host"      // exact host only
	RealmSubdomain RealmType = "subdomain" // value and everything below it
	RealmWildcard  RealmType = "wildcard"  // only below the value, never the value itself
)

// Operation is a permission verb a realm can grant.
type Operation string

const (
	OpRead   Operation = "read"
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Account is a registered user owning realms.
type Account struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	Approved     bool      `json:"approved"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Realm is a permission grant scoping what a token may do.
// Empty RecordTypes or Operations means "all allowed".
// AllowedIPRanges empty means any source address.
type Realm struct {
	ID              string      `json:"id"`
	AccountID       string      `json:"account_id"`
	Type            RealmType   `json:"type"`
	Value           string      `json:"value"`
	RecordTypes     []string    `json:"record_types,omitempty"`
	Operations      []Operation `json:"operations,omitempty"`
	AllowedIPRanges []string    `json:"allowed_ip_ranges,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// AuthToken is a bearer credential bound to exactly one realm. The raw
// secret is never stored; only its SHA-256 hash. Prefix is globally
// unique and indexable so the store can find the record before the
// secret is verified.
type AuthToken struct {
	ID         string     `json:"id"`
	RealmID    string     `json:"realm_id"`
	Alias      string     `json:"alias"`
	Prefix     string     `json:"prefix"`
	SecretHash string     `json:"secret_hash"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Active     bool       `json:"active"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Expired reports whether the token's expiry has passed at the given time.
func (t *AuthToken) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && now.After(*t.ExpiresAt)
}

// DomainRoot describes a managed root domain: which backend owns it and
// the zone-level policy that composes with realm-level restrictions.
type DomainRoot struct {
	ID          string      `json:"id"`
	Domain      string      `json:"domain"`
	Backend     string      `json:"backend"` // "powerdns" or "netcup"
	AllowApex   bool        `json:"allow_apex"`
	MinDepth    int         `json:"min_depth"` // labels below the root, inclusive; 0 = unset
	MaxDepth    int         `json:"max_depth"` // labels below the root, inclusive; 0 = unset
	RecordTypes []string    `json:"record_types,omitempty"`
	Operations  []Operation `json:"operations,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// RootPolicy is the slice of a DomainRoot the authorization engine
// consumes. A zero value (AllowApex true, no bounds, no restrictions)
// is the permissive default used when no root is configured.
type RootPolicy struct {
	AllowApex   bool
	MinDepth    int
	MaxDepth    int
	RecordTypes []string
	Operations  []Operation
}

// DefaultRootPolicy is used for targets with no managed root entry.
func DefaultRootPolicy() RootPolicy {
	return RootPolicy{AllowApex: true}
}

// Policy derives the engine-facing policy from a stored root.
func (d *DomainRoot) Policy() RootPolicy {
	return RootPolicy{
		AllowApex:   d.AllowApex,
		MinDepth:    d.MinDepth,
		MaxDepth:    d.MaxDepth,
		RecordTypes: d.RecordTypes,
		Operations:  d.Operations,
	}
}

// RecordChange is a single record mutation handed to a DNS backend.
type RecordChange struct {
	Operation Operation `json:"operation"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	TTL       int64     `json:"ttl,omitempty"`
	Value     string    `json:"value"`
}

// ActivityType classifies an activity-log entry.
type ActivityType string

const (
	ActivityDNSUpdate     ActivityType = "dns_update"
	ActivityRealmInfo     ActivityType = "realm_info"
	ActivityFailedAuth    ActivityType = "failed_auth"
	ActivitySecurityEvent ActivityType = "security_event"
)

// ActivityStatus is the outcome recorded in the activity log.
type ActivityStatus string

const (
	StatusSuccess ActivityStatus = "success"
	StatusFailure ActivityStatus = "failure"
	StatusError   ActivityStatus = "error"
)

// ActivityEntry is an immutable audit record. Account/realm/token
// references are optional: some failures happen before any is resolved.
type ActivityEntry struct {
	ID         int64          `json:"id"`
	AccountID  string         `json:"account_id,omitempty"`
	RealmID    string         `json:"realm_id,omitempty"`
	TokenID    string         `json:"token_id,omitempty"`
	Type       ActivityType   `json:"type"`
	Status     ActivityStatus `json:"status"`
	ErrorCode  string         `json:"error_code,omitempty"`
	Severity   string         `json:"severity"`
	SourceIP   string         `json:"source_ip"`
	Domain     string         `json:"domain,omitempty"`
	RecordType string         `json:"record_type,omitempty"`
	Operation  string         `json:"operation,omitempty"`
	Detail     string         `json:"detail,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}
