package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/zonegate/zonegate/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "zonegate.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestAccount(t *testing.T, s *Store) *model.Account {
	t.Helper()
	acc, err := s.CreateAccount("alice", "alice@example.org", "hash")
	if err != nil {
		t.Fatalf("failed to create account: %v", err)
	}
	return acc
}

func createTestRealm(t *testing.T, s *Store, accountID string) *model.Realm {
	t.Helper()
	realm := &model.Realm{
		AccountID: accountID,
		Type:      model.RealmSubdomain,
		Value:     "home.example.org",
	}
	if err := s.CreateRealm(realm); err != nil {
		t.Fatalf("failed to create realm: %v", err)
	}
	return realm
}

func TestAccountLifecycle(t *testing.T) {
	s := openTestStore(t)

	acc := createTestAccount(t, s)
	if acc.ID == "" {
		t.Fatal("account has no ID")
	}
	if acc.Approved {
		t.Error("new account must start unapproved")
	}
	if !acc.Active {
		t.Error("new account must start active")
	}

	// Username lookup is case-insensitive.
	got, err := s.GetAccountByUsername("ALICE")
	if err != nil {
		t.Fatalf("GetAccountByUsername failed: %v", err)
	}
	if got == nil || got.ID != acc.ID {
		t.Fatal("account not found by username")
	}

	if _, err := s.CreateAccount("Alice", "", "hash2"); err == nil {
		t.Error("duplicate username accepted")
	}

	got.Approved = true
	if err := s.UpdateAccount(got); err != nil {
		t.Fatalf("UpdateAccount failed: %v", err)
	}
	got, _ = s.GetAccount(acc.ID)
	if !got.Approved {
		t.Error("approval not persisted")
	}

	if err := s.DeleteAccount(acc.ID); err != nil {
		t.Fatalf("DeleteAccount failed: %v", err)
	}
	got, err = s.GetAccount(acc.ID)
	if err != nil || got != nil {
		t.Errorf("deleted account still present: %v, %v", got, err)
	}
}

func TestRealmScopeUniqueness(t *testing.T) {
	s := openTestStore(t)
	acc := createTestAccount(t, s)
	createTestRealm(t, s, acc.ID)

	dup := &model.Realm{
		AccountID: acc.ID,
		Type:      model.RealmSubdomain,
		Value:     "HOME.example.org.",
	}
	if err := s.CreateRealm(dup); err == nil {
		t.Error("duplicate scope accepted")
	}

	// Same value with a different match type is a distinct scope.
	other := &model.Realm{
		AccountID: acc.ID,
		Type:      model.RealmHost,
		Value:     "home.example.org",
	}
	if err := s.CreateRealm(other); err != nil {
		t.Errorf("distinct scope rejected: %v", err)
	}
}

func TestRealmValueNormalized(t *testing.T) {
	s := openTestStore(t)
	acc := createTestAccount(t, s)

	realm := &model.Realm{
		AccountID: acc.ID,
		Type:      model.RealmHost,
		Value:     " Home.Example.ORG. ",
	}
	if err := s.CreateRealm(realm); err != nil {
		t.Fatalf("CreateRealm failed: %v", err)
	}
	if realm.Value != "home.example.org" {
		t.Errorf("value not normalized: %q", realm.Value)
	}
}

func TestRealmScopeImmutable(t *testing.T) {
	s := openTestStore(t)
	acc := createTestAccount(t, s)
	realm := createTestRealm(t, s, acc.ID)

	realm.RecordTypes = []string{"A", "AAAA"}
	if err := s.UpdateRealm(realm); err != nil {
		t.Fatalf("UpdateRealm failed: %v", err)
	}

	realm.Value = "other.example.org"
	if err := s.UpdateRealm(realm); err == nil {
		t.Error("scope change accepted")
	}
}

func TestTokenPrefixIndex(t *testing.T) {
	s := openTestStore(t)
	acc := createTestAccount(t, s)
	realm := createTestRealm(t, s, acc.ID)

	tok := &model.AuthToken{
		RealmID:    realm.ID,
		Alias:      "router",
		Prefix:     "zg_router",
		SecretHash: "aabb",
	}
	if err := s.CreateToken(tok); err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}
	if !tok.Active {
		t.Error("new token must start active")
	}

	got, err := s.GetTokenByPrefix("zg_router")
	if err != nil {
		t.Fatalf("GetTokenByPrefix failed: %v", err)
	}
	if got == nil || got.ID != tok.ID {
		t.Fatal("token not found by prefix")
	}

	got, err = s.GetTokenByPrefix("zg_unknown")
	if err != nil || got != nil {
		t.Errorf("unknown prefix returned %v, %v", got, err)
	}

	collision := &model.AuthToken{
		RealmID:    realm.ID,
		Alias:      "router",
		Prefix:     "zg_router",
		SecretHash: "ccdd",
	}
	if err := s.CreateToken(collision); err == nil {
		t.Error("prefix collision accepted")
	}
}

func TestTokenRevokeAndTouch(t *testing.T) {
	s := openTestStore(t)
	acc := createTestAccount(t, s)
	realm := createTestRealm(t, s, acc.ID)

	tok := &model.AuthToken{RealmID: realm.ID, Alias: "a", Prefix: "zg_a1", SecretHash: "x"}
	if err := s.CreateToken(tok); err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}

	when := time.Now().UTC().Truncate(time.Second)
	if err := s.TouchToken(tok.ID, when); err != nil {
		t.Fatalf("TouchToken failed: %v", err)
	}
	got, _ := s.GetToken(tok.ID)
	if got.LastUsedAt == nil || !got.LastUsedAt.Equal(when) {
		t.Errorf("last_used_at = %v, want %v", got.LastUsedAt, when)
	}

	if err := s.RevokeToken(tok.ID); err != nil {
		t.Fatalf("RevokeToken failed: %v", err)
	}
	got, _ = s.GetToken(tok.ID)
	if got.Active {
		t.Error("revoked token still active")
	}

	// Revoked tokens stay resolvable by prefix; the authenticator is
	// responsible for rejecting them.
	byPrefix, _ := s.GetTokenByPrefix("zg_a1")
	if byPrefix == nil {
		t.Error("revoked token dropped from prefix index")
	}
}

func TestDeleteRealmCascadesTokens(t *testing.T) {
	s := openTestStore(t)
	acc := createTestAccount(t, s)
	realm := createTestRealm(t, s, acc.ID)

	tok := &model.AuthToken{RealmID: realm.ID, Alias: "a", Prefix: "zg_a2", SecretHash: "x"}
	if err := s.CreateToken(tok); err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}

	if err := s.DeleteRealm(realm.ID); err != nil {
		t.Fatalf("DeleteRealm failed: %v", err)
	}

	got, _ := s.GetToken(tok.ID)
	if got != nil {
		t.Error("token survived realm deletion")
	}
	byPrefix, _ := s.GetTokenByPrefix("zg_a2")
	if byPrefix != nil {
		t.Error("prefix index entry survived realm deletion")
	}
}

func TestDeleteAccountCascades(t *testing.T) {
	s := openTestStore(t)
	acc := createTestAccount(t, s)
	realm := createTestRealm(t, s, acc.ID)

	tok := &model.AuthToken{RealmID: realm.ID, Alias: "a", Prefix: "zg_a3", SecretHash: "x"}
	if err := s.CreateToken(tok); err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}

	if err := s.DeleteAccount(acc.ID); err != nil {
		t.Fatalf("DeleteAccount failed: %v", err)
	}

	realms, _ := s.ListRealms(acc.ID)
	if len(realms) != 0 {
		t.Errorf("realms survived account deletion: %d", len(realms))
	}
	got, _ := s.GetToken(tok.ID)
	if got != nil {
		t.Error("token survived account deletion")
	}
}

func TestRootFor(t *testing.T) {
	s := openTestStore(t)

	if err := s.PutRoot(&model.DomainRoot{Domain: "example.org", Backend: "powerdns"}); err != nil {
		t.Fatalf("PutRoot failed: %v", err)
	}
	if err := s.PutRoot(&model.DomainRoot{Domain: "dyn.example.org", Backend: "netcup"}); err != nil {
		t.Fatalf("PutRoot failed: %v", err)
	}

	tests := []struct {
		domain string
		want   string // expected root domain, "" = none
	}{
		{"host.dyn.example.org", "dyn.example.org"},
		{"dyn.example.org", "dyn.example.org"},
		{"host.example.org", "example.org"},
		{"example.org", "example.org"},
		{"example.com", ""},
		{"org", ""},
	}

	for _, tt := range tests {
		root, err := s.RootFor(tt.domain)
		if err != nil {
			t.Fatalf("RootFor(%q) failed: %v", tt.domain, err)
		}
		got := ""
		if root != nil {
			got = root.Domain
		}
		if got != tt.want {
			t.Errorf("RootFor(%q) = %q, want %q", tt.domain, got, tt.want)
		}
	}
}

func TestRootReplaceKeepsIdentity(t *testing.T) {
	s := openTestStore(t)

	first := &model.DomainRoot{Domain: "example.org", Backend: "powerdns"}
	if err := s.PutRoot(first); err != nil {
		t.Fatalf("PutRoot failed: %v", err)
	}

	update, _ := s.GetRoot("example.org")
	update.AllowApex = true
	if err := s.PutRoot(update); err != nil {
		t.Fatalf("PutRoot update failed: %v", err)
	}

	got, _ := s.GetRoot("example.org")
	if got.ID != first.ID {
		t.Error("replacing a root changed its ID")
	}
	if !got.AllowApex {
		t.Error("policy change not persisted")
	}
}

func TestLastApplied(t *testing.T) {
	s := openTestStore(t)

	got, err := s.LastApplied("host.example.org", "A")
	if err != nil {
		t.Fatalf("LastApplied failed: %v", err)
	}
	if got != "" {
		t.Errorf("unset value = %q, want empty", got)
	}

	if err := s.SetLastApplied("host.example.org", "A", "203.0.113.5"); err != nil {
		t.Fatalf("SetLastApplied failed: %v", err)
	}
	if err := s.SetLastApplied("host.example.org", "AAAA", "2001:db8::1"); err != nil {
		t.Fatalf("SetLastApplied failed: %v", err)
	}

	got, _ = s.LastApplied("host.example.org", "A")
	if got != "203.0.113.5" {
		t.Errorf("A = %q", got)
	}
	got, _ = s.LastApplied("host.example.org", "AAAA")
	if got != "2001:db8::1" {
		t.Errorf("AAAA = %q", got)
	}
	got, _ = s.LastApplied("other.example.org", "A")
	if got != "" {
		t.Errorf("unrelated host = %q, want empty", got)
	}
}
