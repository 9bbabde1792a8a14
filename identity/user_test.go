package identity

import "testing"

func TestEligibleForMFA(t *testing.T) {
	user := AuthUser{
		Email:          "a@b.test",
		EmailVerified:  true,
		HashedPassword: "phc-hash",
		MFAIdentifiers: []AuthIdentifier{
			{Type: IdentifierPhoneNumber, Value: "+15551234567", Verified: true},
		},
	}
	if !user.EligibleForMFA() {
		t.Fatal("password + verified phone + verified email must be eligible")
	}

	noPass := user
	noPass.HashedPassword = ""
	if noPass.EligibleForMFA() {
		t.Fatal("missing password must not be eligible")
	}

	noEmail := user
	noEmail.EmailVerified = false
	if noEmail.EligibleForMFA() {
		t.Fatal("unverified email must not be eligible")
	}

	noPhone := user
	noPhone.MFAIdentifiers = []AuthIdentifier{
		{Type: IdentifierPhoneNumber, Value: "+15551234567", Verified: false},
	}
	if noPhone.EligibleForMFA() {
		t.Fatal("unverified phone must not be eligible")
	}
}

func TestPushPreviousPasswordWindow(t *testing.T) {
	var user AuthUser
	for _, hash := range []string{"h1", "h2", "h3", "h4", "h5"} {
		user.PushPreviousPassword(hash)
	}
	if len(user.PreviousPasswords) != PreviousPasswordWindow {
		t.Fatalf("window = %d, want %d", len(user.PreviousPasswords), PreviousPasswordWindow)
	}
	// Most recent last, oldest dropped.
	want := []string{"h3", "h4", "h5"}
	for i, hash := range want {
		if user.PreviousPasswords[i] != hash {
			t.Fatalf("previousPasswords = %v, want %v", user.PreviousPasswords, want)
		}
	}
}

func TestUpsertIdentifierReplacesPhone(t *testing.T) {
	var user AuthUser
	user.UpsertIdentifier(AuthIdentifier{Type: IdentifierPhoneNumber, Value: "+1111"})
	user.UpsertIdentifier(AuthIdentifier{Type: IdentifierPhoneNumber, Value: "+2222", Verified: true})

	count := 0
	for _, id := range user.MFAIdentifiers {
		if id.Type == IdentifierPhoneNumber {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("phone identifiers = %d, want 1", count)
	}
	id, ok := user.VerifiedPhoneIdentifier()
	if !ok || id.Value != "+2222" {
		t.Fatalf("verified identifier: %+v ok=%v", id, ok)
	}
}

func TestDeviceTokenIdentifiers(t *testing.T) {
	var user AuthUser
	user.UpsertIdentifier(AuthIdentifier{Type: IdentifierDeviceToken, Value: "dev-a"})
	user.UpsertIdentifier(AuthIdentifier{Type: IdentifierDeviceToken, Value: "dev-b"})

	if !user.HasDeviceToken("dev-a") || !user.HasDeviceToken("dev-b") {
		t.Fatal("device tokens are plural, one per device")
	}
	if user.HasDeviceToken("dev-c") {
		t.Fatal("unknown device token")
	}

	if !user.RemoveIdentifier(IdentifierDeviceToken, "dev-a") {
		t.Fatal("remove must report success")
	}
	if user.HasDeviceToken("dev-a") {
		t.Fatal("dev-a must be gone")
	}
	if user.RemoveIdentifier(IdentifierDeviceToken, "dev-a") {
		t.Fatal("second remove must report nothing to do")
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  User@Example.COM "); got != "user@example.com" {
		t.Fatalf("normalized = %q", got)
	}
	if got := NormalizeEmail(""); got != "" {
		t.Fatalf("empty = %q", got)
	}
}
