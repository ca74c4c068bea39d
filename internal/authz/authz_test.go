package authz

import (
	"testing"

	"github.com/zonegate/zonegate/internal/model"
)

func realm(typ model.RealmType, value string) *model.Realm {
	return &model.Realm{ID: "realm-1", Type: typ, Value: value}
}

func TestAuthorizeScope(t *testing.T) {
	tests := []struct {
		name       string
		realmType  model.RealmType
		realmValue string
		domain     string
		allowed    bool
		reason     DenyReason
	}{
		// host realm
		{"host exact match", model.RealmHost, "home.example.org", "home.example.org", true, ""},
		{"host case and dot insensitive", model.RealmHost, "Home.Example.ORG", "home.example.org.", true, ""},
		{"host denies child", model.RealmHost, "home.example.org", "cam.home.example.org", false, DenyOutOfScope},
		{"host denies parent", model.RealmHost, "home.example.org", "example.org", false, DenyOutOfScope},
		{"host denies sibling", model.RealmHost, "home.example.org", "work.example.org", false, DenyOutOfScope},

		// subdomain realm
		{"subdomain matches value itself", model.RealmSubdomain, "home.example.org", "home.example.org", true, ""},
		{"subdomain matches child", model.RealmSubdomain, "home.example.org", "cam.home.example.org", true, ""},
		{"subdomain matches deep child", model.RealmSubdomain, "home.example.org", "a.b.cam.home.example.org", true, ""},
		{"subdomain denies parent", model.RealmSubdomain, "home.example.org", "example.org", false, DenyOutOfScope},
		{"subdomain denies sibling", model.RealmSubdomain, "home.example.org", "work.example.org", false, DenyOutOfScope},

		// wildcard realm
		{"wildcard matches child", model.RealmWildcard, "dyn.example.org", "host1.dyn.example.org", true, ""},
		{"wildcard matches deep child", model.RealmWildcard, "dyn.example.org", "a.b.dyn.example.org", true, ""},
		{"wildcard denies value itself", model.RealmWildcard, "dyn.example.org", "dyn.example.org", false, DenyApex},
		{"wildcard denies parent", model.RealmWildcard, "dyn.example.org", "example.org", false, DenyOutOfScope},

		// label boundary attacks
		{"suffix without label boundary", model.RealmSubdomain, "example.org", "evilexample.org", false, DenyOutOfScope},
		{"scope value embedded mid-name", model.RealmSubdomain, "example.org", "example.org.evil.com", false, DenyOutOfScope},
		{"wildcard suffix without boundary", model.RealmWildcard, "example.org", "notexample.org", false, DenyOutOfScope},

		// broken realm record
		{"unknown realm type", model.RealmType("bogus"), "example.org", "example.org", false, DenyOutOfScope},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Authorize(Request{
				Realm:     realm(tt.realmType, tt.realmValue),
				Domain:    tt.domain,
				Operation: model.OpUpdate,
				Root:      model.DefaultRootPolicy(),
			})
			if d.Allowed != tt.allowed {
				t.Fatalf("Allowed = %v, want %v (reason %q)", d.Allowed, tt.allowed, d.Reason)
			}
			if !tt.allowed && d.Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", d.Reason, tt.reason)
			}
		})
	}
}

func TestAuthorizeRootPolicy(t *testing.T) {
	tests := []struct {
		name    string
		realm   *model.Realm
		domain  string
		root    model.RootPolicy
		allowed bool
		reason  DenyReason
	}{
		{
			name:    "apex allowed when policy permits",
			realm:   realm(model.RealmSubdomain, "example.org"),
			domain:  "example.org",
			root:    model.RootPolicy{AllowApex: true},
			allowed: true,
		},
		{
			name:   "apex denied when policy forbids",
			realm:  realm(model.RealmSubdomain, "example.org"),
			domain: "example.org",
			root:   model.RootPolicy{AllowApex: false},
			reason: DenyApex,
		},
		{
			name:   "apex denial wins over host realm grant",
			realm:  realm(model.RealmHost, "example.org"),
			domain: "example.org",
			root:   model.RootPolicy{AllowApex: false},
			reason: DenyApex,
		},
		{
			name:    "depth inside bounds",
			realm:   realm(model.RealmSubdomain, "example.org"),
			domain:  "a.b.example.org",
			root:    model.RootPolicy{AllowApex: true, MinDepth: 1, MaxDepth: 2},
			allowed: true,
		},
		{
			name:    "depth at lower bound",
			realm:   realm(model.RealmSubdomain, "example.org"),
			domain:  "a.example.org",
			root:    model.RootPolicy{AllowApex: true, MinDepth: 1, MaxDepth: 2},
			allowed: true,
		},
		{
			name:   "depth above upper bound",
			realm:  realm(model.RealmSubdomain, "example.org"),
			domain: "a.b.c.example.org",
			root:   model.RootPolicy{AllowApex: true, MinDepth: 1, MaxDepth: 2},
			reason: DenyDepthOutOfRange,
		},
		{
			name:   "depth below lower bound",
			realm:  realm(model.RealmSubdomain, "example.org"),
			domain: "a.example.org",
			root:   model.RootPolicy{AllowApex: true, MinDepth: 2},
			reason: DenyDepthOutOfRange,
		},
		{
			name:    "zero bounds are unset",
			realm:   realm(model.RealmSubdomain, "example.org"),
			domain:  "a.b.c.d.e.example.org",
			root:    model.RootPolicy{AllowApex: true},
			allowed: true,
		},
		{
			name:    "apex skips depth bounds",
			realm:   realm(model.RealmSubdomain, "example.org"),
			domain:  "example.org",
			root:    model.RootPolicy{AllowApex: true, MinDepth: 2},
			allowed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Authorize(Request{
				Realm:      tt.realm,
				Domain:     tt.domain,
				Operation:  model.OpUpdate,
				RootDomain: "example.org",
				Root:       tt.root,
			})
			if d.Allowed != tt.allowed {
				t.Fatalf("Allowed = %v, want %v (reason %q)", d.Allowed, tt.allowed, d.Reason)
			}
			if !tt.allowed && d.Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", d.Reason, tt.reason)
			}
		})
	}
}

func TestAuthorizePermissionIntersection(t *testing.T) {
	base := func() *model.Realm {
		return &model.Realm{
			ID:    "realm-1",
			Type:  model.RealmSubdomain,
			Value: "example.org",
		}
	}

	tests := []struct {
		name       string
		realmTypes []string
		realmOps   []model.Operation
		rootTypes  []string
		rootOps    []model.Operation
		reqTypes   []string
		reqOp      model.Operation
		allowed    bool
		reason     DenyReason
	}{
		{
			name:     "empty sets allow everything",
			reqTypes: []string{"A", "AAAA", "TXT"},
			reqOp:    model.OpDelete,
			allowed:  true,
		},
		{
			name:       "realm restricts record type",
			realmTypes: []string{"A", "AAAA"},
			reqTypes:   []string{"TXT"},
			reqOp:      model.OpUpdate,
			reason:     DenyRecordType,
		},
		{
			name:      "root restricts record type",
			rootTypes: []string{"A"},
			reqTypes:  []string{"AAAA"},
			reqOp:     model.OpUpdate,
			reason:    DenyRecordType,
		},
		{
			name:       "intersection must hold at both layers",
			realmTypes: []string{"A", "TXT"},
			rootTypes:  []string{"A", "AAAA"},
			reqTypes:   []string{"TXT"},
			reqOp:      model.OpUpdate,
			reason:     DenyRecordType,
		},
		{
			name:       "one denied type denies the whole set",
			realmTypes: []string{"A"},
			reqTypes:   []string{"A", "AAAA"},
			reqOp:      model.OpUpdate,
			reason:     DenyRecordType,
		},
		{
			name:     "realm restricts operation",
			realmOps: []model.Operation{model.OpUpdate},
			reqTypes: []string{"A"},
			reqOp:    model.OpDelete,
			reason:   DenyOperation,
		},
		{
			name:     "root restricts operation",
			rootOps:  []model.Operation{model.OpUpdate, model.OpCreate},
			reqTypes: []string{"A"},
			reqOp:    model.OpDelete,
			reason:   DenyOperation,
		},
		{
			name:       "matching restrictions allow",
			realmTypes: []string{"A", "AAAA"},
			realmOps:   []model.Operation{model.OpUpdate},
			rootTypes:  []string{"A", "AAAA", "TXT"},
			rootOps:    []model.Operation{model.OpUpdate, model.OpCreate},
			reqTypes:   []string{"A", "AAAA"},
			reqOp:      model.OpUpdate,
			allowed:    true,
		},
		{
			name:       "record type match is case sensitive",
			realmTypes: []string{"A"},
			reqTypes:   []string{"a"},
			reqOp:      model.OpUpdate,
			reason:     DenyRecordType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := base()
			r.RecordTypes = tt.realmTypes
			r.Operations = tt.realmOps

			d := Authorize(Request{
				Realm:       r,
				Domain:      "host.example.org",
				RecordTypes: tt.reqTypes,
				Operation:   tt.reqOp,
				RootDomain:  "example.org",
				Root: model.RootPolicy{
					AllowApex:   true,
					RecordTypes: tt.rootTypes,
					Operations:  tt.rootOps,
				},
			})
			if d.Allowed != tt.allowed {
				t.Fatalf("Allowed = %v, want %v (reason %q)", d.Allowed, tt.allowed, d.Reason)
			}
			if !tt.allowed && d.Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", d.Reason, tt.reason)
			}
		})
	}
}

// Scope must be checked before any permission detail: an out-of-scope
// denial may not reveal record-type or operation restrictions.
func TestAuthorizeScopeCheckedFirst(t *testing.T) {
	d := Authorize(Request{
		Realm: &model.Realm{
			ID:          "realm-1",
			Type:        model.RealmHost,
			Value:       "home.example.org",
			RecordTypes: []string{"A"},
			Operations:  []model.Operation{model.OpUpdate},
		},
		Domain:      "other.example.org",
		RecordTypes: []string{"TXT"},
		Operation:   model.OpDelete,
		RootDomain:  "example.org",
		Root:        model.RootPolicy{AllowApex: true},
	})
	if d.Allowed {
		t.Fatal("out-of-scope request allowed")
	}
	if d.Reason != DenyOutOfScope {
		t.Errorf("Reason = %q, want %q", d.Reason, DenyOutOfScope)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Example.ORG", "example.org"},
		{"example.org.", "example.org"},
		{"  host.example.org \t", "host.example.org"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
