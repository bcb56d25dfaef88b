package keys

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestValidate_EmptyKey(t *testing.T) {
	v := NewValidator()

	verdict := v.Validate("", "test")

	if verdict.Valid {
		t.Error("expected empty key to be invalid")
	}
	if verdict.Reason != "Empty key" {
		t.Errorf("expected reason 'Empty key', got %q", verdict.Reason)
	}
	if verdict.ClientSafe {
		t.Error("expected empty key to not be client-safe")
	}
	if verdict.KeyType != Secret {
		t.Errorf("expected key type %v, got %v", Secret, verdict.KeyType)
	}
	if verdict.MaskedValue != "****" {
		t.Errorf("expected masked value '****', got %q", verdict.MaskedValue)
	}
}

func TestValidate_JWTRejected(t *testing.T) {
	v := NewValidator()

	// Unsigned HS256 token for {} claims
	token := "eyJhbGciOiJIUzI1NiJ9.e30.xyz"
	verdict := v.Validate(token, "auth")

	if verdict.Valid {
		t.Error("expected JWT to be rejected as API key")
	}
	if verdict.Reason != "JWT token used as API key" {
		t.Errorf("unexpected reason %q", verdict.Reason)
	}
	if verdict.KeyType != Secret {
		t.Errorf("expected key type %v, got %v", Secret, verdict.KeyType)
	}

	// The JWT check outranks safe patterns
	verdict = v.Validate("eyJpublic_anon_key", "auth")
	if verdict.Valid {
		t.Error("expected eyJ-prefixed key to be rejected despite safe substrings")
	}
}

func TestValidate_JWTAlgorithmDetail(t *testing.T) {
	v := NewValidator()

	// Well-formed unverified token should surface its claimed algorithm
	token := "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.eyJzdWIiOiIxIn0.c2ln"
	verdict := v.Validate(token, "auth")

	if verdict.Valid {
		t.Error("expected token to be rejected")
	}
	if verdict.Detail != "alg=HS256" {
		t.Errorf("expected detail 'alg=HS256', got %q", verdict.Detail)
	}

	// Garbage after the prefix is still rejected, just without detail
	verdict = v.Validate("eyJnot-a-real-token", "auth")
	if verdict.Valid {
		t.Error("expected malformed eyJ key to be rejected")
	}
	if verdict.Detail != "" {
		t.Errorf("expected no detail for unparseable token, got %q", verdict.Detail)
	}
}

func TestValidate_LengthGuard(t *testing.T) {
	v := NewValidator()

	long := strings.Repeat("a", 600)
	verdict := v.Validate(long, "test")

	if !verdict.Valid {
		t.Error("expected overlong key to remain valid")
	}
	if verdict.ClientSafe {
		t.Error("expected overlong key to not be client-safe")
	}
	if verdict.KeyType != Service {
		t.Errorf("expected key type %v, got %v", Service, verdict.KeyType)
	}

	// Length guard overrides pattern matches too
	longSafe := "public_" + strings.Repeat("a", 600)
	verdict = v.Validate(longSafe, "test")
	if verdict.ClientSafe {
		t.Error("expected overlong key with safe substring to not be client-safe")
	}
	if verdict.KeyType != Service {
		t.Errorf("expected key type %v, got %v", Service, verdict.KeyType)
	}
}

func TestValidate_ClientSafety(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		key        string
		clientSafe bool
		keyType    KeyType
	}{
		{"anon_public_key_abc123", true, Anon},
		{"public_site_key", true, Public},
		{"some-unclassified-key", true, Restricted},
		{"sk_live_51Hxxxx", false, Service},
		{"admin_root_token_x", false, Admin},
	}

	for _, tt := range tests {
		verdict := v.Validate(tt.key, "test")
		if !verdict.Valid {
			t.Errorf("expected %q to be valid", tt.key)
		}
		if verdict.ClientSafe != tt.clientSafe {
			t.Errorf("Validate(%q).ClientSafe = %v, want %v", tt.key, verdict.ClientSafe, tt.clientSafe)
		}
		if verdict.KeyType != tt.keyType {
			t.Errorf("Validate(%q).KeyType = %v, want %v", tt.key, verdict.KeyType, tt.keyType)
		}
	}
}

func TestValidate_ContextCarried(t *testing.T) {
	v := NewValidator()

	verdict := v.Validate("anon_key", "STRIPE_ANON_KEY")
	if verdict.Context != "STRIPE_ANON_KEY" {
		t.Errorf("expected context to be carried through, got %q", verdict.Context)
	}
}

func TestValidate_Idempotent(t *testing.T) {
	v := NewValidator()

	inputs := []string{"", "anon_key", "eyJhbGciOiJIUzI1NiJ9.e30.xyz", strings.Repeat("a", 600)}
	for _, in := range inputs {
		first := v.Validate(in, "ctx")
		second := v.Validate(in, "ctx")
		if first != second {
			t.Errorf("Validate(%q) not stable: %+v then %+v", in, first, second)
		}
	}
}

func TestMaskValue(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"", "****"},
		{"ab", "**"},
		{"abcd", "****"},
		{"abcdef", "abcd**"},
		{"sk_live_51Hxxxx", "sk_l***********"},
	}

	for _, tt := range tests {
		if got := MaskValue(tt.key, 4); got != tt.want {
			t.Errorf("MaskValue(%q, 4) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestMaskValue_PreservesLength(t *testing.T) {
	inputs := []string{"a", "ab", "abcd", "abcde", strings.Repeat("x", 100)}
	for _, in := range inputs {
		masked := MaskValue(in, 4)
		if len(masked) != len(in) {
			t.Errorf("MaskValue(%q) changed length: %d -> %d", in, len(in), len(masked))
		}
	}
}

func TestMaskValue_MultibyteInput(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"clé_secrète", "clé_*******"},
		{"密钥abcdef", "密钥ab****"},
		{"héé", "***"},
	}

	for _, tt := range tests {
		got := MaskValue(tt.key, 4)
		if got != tt.want {
			t.Errorf("MaskValue(%q, 4) = %q, want %q", tt.key, got, tt.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("MaskValue(%q, 4) produced invalid UTF-8: %q", tt.key, got)
		}
		if utf8.RuneCountInString(got) != utf8.RuneCountInString(tt.key) {
			t.Errorf("MaskValue(%q, 4) changed rune count: %d -> %d",
				tt.key, utf8.RuneCountInString(tt.key), utf8.RuneCountInString(got))
		}
	}
}
