package auth

import "testing"

func TestGenerateToken(t *testing.T) {
	token, hash, err := GenerateToken()
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if len(token) != tokenBytes*2 {
		t.Fatalf("expected %d hex chars, got %d", tokenBytes*2, len(token))
	}
	if hash != HashToken(token) {
		t.Fatal("returned hash does not match the token")
	}

	other, _, err := GenerateToken()
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if token == other {
		t.Fatal("expected distinct tokens")
	}
}

func TestVerifyTokenHash(t *testing.T) {
	token, hash, err := GenerateToken()
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if !VerifyTokenHash(token, hash) {
		t.Fatal("expected token to verify against its hash")
	}
	if VerifyTokenHash("deadbeef", hash) {
		t.Fatal("wrong token must not verify")
	}
	if VerifyTokenHash("", hash) || VerifyTokenHash(token, "") {
		t.Fatal("empty inputs must not verify")
	}
}
