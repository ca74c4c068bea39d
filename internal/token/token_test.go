package token

import (
	"strings"
	"testing"
)

func TestGenerate(t *testing.T) {
	raw, prefix, secretHash, err := Generate("home-router")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if !strings.HasPrefix(raw, Scheme+"_") {
		t.Errorf("token %q does not carry the %s scheme", raw, Scheme)
	}
	if !strings.HasPrefix(raw, prefix+"_") {
		t.Errorf("token %q does not start with its prefix %q", raw, prefix)
	}
	if len(raw) < MinLength || len(raw) > MaxLength {
		t.Errorf("token length %d outside [%d, %d]", len(raw), MinLength, MaxLength)
	}

	gotPrefix, secret, err := Split(raw)
	if err != nil {
		t.Fatalf("Split rejected a generated token: %v", err)
	}
	if gotPrefix != prefix {
		t.Errorf("Split prefix = %q, want %q", gotPrefix, prefix)
	}
	if !VerifySecret(secret, secretHash) {
		t.Error("generated secret does not verify against its own hash")
	}
}

func TestGenerateUniquePrefixes(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		raw, prefix, _, err := Generate("alias")
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		if seen[prefix] {
			t.Fatalf("prefix %q repeated (token %q)", prefix, raw)
		}
		seen[prefix] = true
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name       string
		presented  string
		wantPrefix string
		wantErr    bool
	}{
		{
			name:       "valid token",
			presented:  "zg_router_0123456789abcdef0123456789abcdef",
			wantPrefix: "zg_router",
		},
		{
			name:       "prefix with several separators",
			presented:  "zg_home_router_0123456789abcdef0123456789abcdef",
			wantPrefix: "zg_home_router",
		},
		{
			name:      "empty",
			presented: "",
			wantErr:   true,
		},
		{
			name:      "too short",
			presented: "zg_a_b",
			wantErr:   true,
		},
		{
			name:      "too long",
			presented: "zg_x_" + strings.Repeat("a", 130),
			wantErr:   true,
		},
		{
			name:      "wrong scheme",
			presented: "tk_router_0123456789abcdef0123456789abcdef",
			wantErr:   true,
		},
		{
			name:      "no separator",
			presented: "zgrouterdeadbeefdeadbeefdeadbeef",
			wantErr:   true,
		},
		{
			name:      "illegal character",
			presented: "zg_router_0123456789abcdef0123456789abcde!",
			wantErr:   true,
		},
		{
			name:      "whitespace inside",
			presented: "zg_router_0123456789 bcdef0123456789abcdef",
			wantErr:   true,
		},
		{
			name:      "empty secret",
			presented: "zg_router012345678901234567890_",
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prefix, secret, err := Split(tt.presented)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Split(%q) succeeded, want error", tt.presented)
				}
				return
			}
			if err != nil {
				t.Fatalf("Split(%q) failed: %v", tt.presented, err)
			}
			if prefix != tt.wantPrefix {
				t.Errorf("prefix = %q, want %q", prefix, tt.wantPrefix)
			}
			if prefix+"_"+secret != tt.presented {
				t.Errorf("prefix+secret do not reassemble the token")
			}
		})
	}
}

func TestVerifySecret(t *testing.T) {
	hash := HashSecret("correct-secret")

	if !VerifySecret("correct-secret", hash) {
		t.Error("correct secret rejected")
	}
	if VerifySecret("wrong-secret", hash) {
		t.Error("wrong secret accepted")
	}
	if VerifySecret("", hash) {
		t.Error("empty secret accepted")
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("zg_router_0123456789abcdef0123456789abcdef")
	b := Fingerprint("zg_router_0123456789abcdef0123456789abcdee")

	if a == b {
		t.Error("distinct tokens produced the same fingerprint")
	}
	if len(a) != 12 {
		t.Errorf("fingerprint length = %d, want 12", len(a))
	}
	if strings.Contains(a, "_") {
		t.Errorf("fingerprint %q leaks token structure", a)
	}
}
