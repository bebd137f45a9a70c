package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// fastParams keeps Argon2 cheap in tests.
func fastParams() Argon2Params {
	return Argon2Params{
		Memory:      8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func TestHashPasswordFormat(t *testing.T) {
	hash, err := HashPassword("correct horse", fastParams())
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Errorf("unexpected hash prefix: %s", hash)
	}
}

func TestVerifyPassword(t *testing.T) {
	params := fastParams()
	hash, err := HashPassword("secret123", params)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	t.Run("correct password", func(t *testing.T) {
		match, rehash, err := VerifyPassword("secret123", hash, params)
		if err != nil {
			t.Fatalf("VerifyPassword() error = %v", err)
		}
		if !match {
			t.Error("VerifyPassword() = false, want true")
		}
		if rehash {
			t.Error("needsRehash = true with identical params")
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		match, _, err := VerifyPassword("secret124", hash, params)
		if err != nil {
			t.Fatalf("VerifyPassword() error = %v", err)
		}
		if match {
			t.Error("VerifyPassword() matched wrong password")
		}
	})

	t.Run("rehash when params raised", func(t *testing.T) {
		stronger := params
		stronger.Iterations = 2
		match, rehash, err := VerifyPassword("secret123", hash, stronger)
		if err != nil {
			t.Fatalf("VerifyPassword() error = %v", err)
		}
		if !match {
			t.Error("VerifyPassword() = false, want true")
		}
		if !rehash {
			t.Error("needsRehash = false after raising iterations")
		}
	})

	t.Run("malformed hash", func(t *testing.T) {
		if _, _, err := VerifyPassword("x", "not-a-hash", params); err == nil {
			t.Error("VerifyPassword() accepted malformed hash")
		}
	})

	t.Run("wrong variant", func(t *testing.T) {
		bad := strings.Replace(hash, "argon2id", "argon2i", 1)
		if _, _, err := VerifyPassword("secret123", bad, params); err != ErrIncompatibleVariant {
			t.Errorf("VerifyPassword() error = %v, want ErrIncompatibleVariant", err)
		}
	})
}

func TestHashPasswordUniqueSalts(t *testing.T) {
	params := fastParams()
	a, _ := HashPassword("same", params)
	b, _ := HashPassword("same", params)
	if a == b {
		t.Error("two hashes of the same password are identical (salt reuse)")
	}
}

func TestTokenIssueVerify(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)

	token, err := issuer.Issue("user-1", "club-1", "club_admin")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.UserID != "user-1" || claims.ClubID != "club-1" || claims.Role != "club_admin" {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestTokenExpired(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)

	now := time.Now().Add(-2 * time.Hour)
	claims := Claims{
		UserID: "user-1",
		ClubID: "club-1",
		Role:   "club_admin",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("failed to sign expired token: %v", err)
	}

	if _, err := issuer.Verify(expired); err != ErrTokenExpired {
		t.Errorf("Verify() error = %v, want ErrTokenExpired", err)
	}
}

func TestTokenWrongSecret(t *testing.T) {
	issuer := NewTokenIssuer("secret-a", time.Hour)
	other := NewTokenIssuer("secret-b", time.Hour)

	token, _ := issuer.Issue("user-1", "club-1", "club_admin")
	if _, err := other.Verify(token); err != ErrTokenInvalid {
		t.Errorf("Verify() with wrong secret error = %v, want ErrTokenInvalid", err)
	}
}

func TestTokenRejectsNoneAlgorithm(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)

	claims := Claims{
		UserID: "user-1",
		ClubID: "club-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to build unsigned token: %v", err)
	}

	if _, err := issuer.Verify(unsigned); err == nil {
		t.Error("Verify() accepted a token with alg=none")
	}
}

func TestTokenMissingClubID(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)

	claims := Claims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))

	if _, err := issuer.Verify(token); err != ErrTokenInvalid {
		t.Errorf("Verify() error = %v, want ErrTokenInvalid", err)
	}
}
