package app

import (
	"errors"
	"testing"

	"smart-research-agent/internal/pkg/jwtutil"
)

func TestRegisterAndLogin(t *testing.T) {
	db := newTestDB(t)
	service := newTestAuthService(db)

	user := registerTestUser(t, service, "alice")
	if user.ID == "" {
		t.Fatal("expected generated user id")
	}
	if user.PasswordHash == "password123" {
		t.Fatal("password stored in plaintext")
	}
	if user.LastLoginAt != nil {
		t.Errorf("LastLoginAt = %v before first login, want nil", user.LastLoginAt)
	}

	result, err := service.Login(LoginInput{Username: "alice", Password: "password123"})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if result.Token == "" {
		t.Fatal("expected a token")
	}
	if result.User.LastLoginAt == nil {
		t.Error("LastLoginAt not set after login")
	}

	claims, err := jwtutil.ParseToken("test-secret", result.Token)
	if err != nil {
		t.Fatalf("issued token does not parse: %v", err)
	}
	if claims.UserID != user.ID {
		t.Errorf("token user id = %q, want %q", claims.UserID, user.ID)
	}

	// The login time must be durable, not just set on the returned struct.
	stored, err := service.GetUserByID(user.ID)
	if err != nil || stored == nil {
		t.Fatalf("GetUserByID failed: %v, %v", stored, err)
	}
	if stored.LastLoginAt == nil {
		t.Error("stored LastLoginAt is nil after login")
	}
}

func TestRegisterDuplicates(t *testing.T) {
	db := newTestDB(t)
	service := newTestAuthService(db)
	registerTestUser(t, service, "alice")

	_, err := service.Register(RegisterInput{Username: "alice", Email: "other@example.com", Password: "pw12345"})
	if !errors.Is(err, ErrUsernameExists) {
		t.Errorf("duplicate username error = %v, want ErrUsernameExists", err)
	}

	_, err = service.Register(RegisterInput{Username: "bob", Email: "alice@example.com", Password: "pw12345"})
	if !errors.Is(err, ErrEmailExists) {
		t.Errorf("duplicate email error = %v, want ErrEmailExists", err)
	}
}

func TestRegisterInvalidInput(t *testing.T) {
	db := newTestDB(t)
	service := newTestAuthService(db)

	tests := []RegisterInput{
		{Username: "", Email: "a@example.com", Password: "pw12345"},
		{Username: "alice", Email: "", Password: "pw12345"},
		{Username: "alice", Email: "a@example.com", Password: ""},
		{Username: "   ", Email: "a@example.com", Password: "pw12345"},
	}
	for _, input := range tests {
		if _, err := service.Register(input); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Register(%+v) error = %v, want ErrInvalidInput", input, err)
		}
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	db := newTestDB(t)
	service := newTestAuthService(db)
	registerTestUser(t, service, "alice")

	_, err := service.Login(LoginInput{Username: "alice", Password: "wrong"})
	if !errors.Is(err, ErrInvalidCredential) {
		t.Errorf("wrong password error = %v, want ErrInvalidCredential", err)
	}

	_, err = service.Login(LoginInput{Username: "nobody", Password: "password123"})
	if !errors.Is(err, ErrInvalidCredential) {
		t.Errorf("unknown user error = %v, want ErrInvalidCredential", err)
	}
}

func TestDeleteUserCascades(t *testing.T) {
	db := newTestDB(t)
	service := newTestAuthService(db)
	user := registerTestUser(t, service, "alice")

	if err := service.DeleteUser(user.ID); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}

	got, err := service.GetUserByID(user.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if got != nil {
		t.Errorf("user still present after delete: %+v", got)
	}
}
