package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cvision/cvision-api/internal/firebase"
	"github.com/cvision/cvision-api/internal/model"
	"github.com/cvision/cvision-api/internal/repository"
)

// --- モック定義 ---

type mockVerifier struct {
	verifyFn func(ctx context.Context, idToken string) (*firebase.Token, error)
}

func (m *mockVerifier) VerifyIDToken(ctx context.Context, idToken string) (*firebase.Token, error) {
	return m.verifyFn(ctx, idToken)
}

type mockUserRepo struct {
	findByFirebaseUIDFn func(ctx context.Context, uid string) (*model.User, error)
	upsertFn            func(ctx context.Context, user *model.User) (*model.User, error)
	touchFn             func(ctx context.Context, id string) (*model.User, error)
}

func (m *mockUserRepo) FindByID(context.Context, string) (*model.User, error) { return nil, nil }

func (m *mockUserRepo) FindByFirebaseUID(ctx context.Context, uid string) (*model.User, error) {
	if m.findByFirebaseUIDFn != nil {
		return m.findByFirebaseUIDFn(ctx, uid)
	}
	return nil, nil
}

func (m *mockUserRepo) UpsertByFirebaseUID(ctx context.Context, user *model.User) (*model.User, error) {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, user)
	}
	return user, nil
}

func (m *mockUserRepo) Touch(ctx context.Context, id string) (*model.User, error) {
	if m.touchFn != nil {
		return m.touchFn(ctx, id)
	}
	return &model.User{ID: id}, nil
}

func (m *mockUserRepo) LockByID(context.Context, string) (*model.User, error) { return nil, nil }

func (m *mockUserRepo) UpdateProfile(context.Context, string, model.ProfileUpdate) (*model.User, error) {
	return nil, nil
}

func (m *mockUserRepo) SetOnboardingCompleted(context.Context, string) (*model.User, error) {
	return nil, nil
}

// --- compile-time interface checks ---
var _ repository.UserRepository = (*mockUserRepo)(nil)
var _ TokenVerifier = (*mockVerifier)(nil)
var _ TokenVerifier = (*firebase.Client)(nil)

func validVerifier(token *firebase.Token) *mockVerifier {
	return &mockVerifier{verifyFn: func(context.Context, string) (*firebase.Token, error) {
		return token, nil
	}}
}

// --- テスト ---

func TestAuthenticate_InvalidToken_ReturnsUnauthenticated(t *testing.T) {
	verifier := &mockVerifier{verifyFn: func(context.Context, string) (*firebase.Token, error) {
		return nil, firebase.ErrInvalidToken
	}}
	repoCalled := false
	repo := &mockUserRepo{findByFirebaseUIDFn: func(context.Context, string) (*model.User, error) {
		repoCalled = true
		return nil, nil
	}}

	_, err := NewService(verifier, repo, nil).Authenticate(context.Background(), "bad")
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if repoCalled {
		t.Error("repository must not be called when verification fails")
	}
}

func TestAuthenticate_ExistingUser_TouchesTimestamp(t *testing.T) {
	stale := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	fresh := stale.Add(time.Hour)
	existing := &model.User{ID: "user-1", FirebaseUID: "uid-1", Email: "ana@example.com", UpdatedAt: stale}
	var touched string
	repo := &mockUserRepo{
		findByFirebaseUIDFn: func(_ context.Context, uid string) (*model.User, error) {
			if uid != "uid-1" {
				t.Errorf("uid = %q, want %q", uid, "uid-1")
			}
			return existing, nil
		},
		touchFn: func(_ context.Context, id string) (*model.User, error) {
			touched = id
			updated := *existing
			updated.UpdatedAt = fresh
			return &updated, nil
		},
		upsertFn: func(context.Context, *model.User) (*model.User, error) {
			t.Error("upsert must not be called for an existing user")
			return nil, nil
		},
	}

	res, err := NewService(validVerifier(&firebase.Token{UID: "uid-1"}), repo, nil).Authenticate(context.Background(), "tok")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.User.ID != "user-1" || res.User.Email != "ana@example.com" {
		t.Errorf("User = %+v, want existing user", res.User)
	}
	// コンテキストに載るユーザーは更新後の行
	if !res.User.UpdatedAt.Equal(fresh) {
		t.Errorf("UpdatedAt = %v, want %v", res.User.UpdatedAt, fresh)
	}
	if res.Created {
		t.Error("Created should be false for existing user")
	}
	if touched != "user-1" {
		t.Errorf("touched = %q, want %q", touched, "user-1")
	}
}

func TestAuthenticate_TouchFailure_ReturnsUnauthenticated(t *testing.T) {
	repo := &mockUserRepo{
		findByFirebaseUIDFn: func(context.Context, string) (*model.User, error) {
			return &model.User{ID: "user-1"}, nil
		},
		touchFn: func(context.Context, string) (*model.User, error) { return nil, errors.New("db down") },
	}

	res, err := NewService(validVerifier(&firebase.Token{UID: "uid-1"}), repo, nil).Authenticate(context.Background(), "tok")
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if res != nil {
		t.Errorf("result = %+v, want nil", res)
	}
}

func TestAuthenticate_UserDeletedBeforeTouch_ReturnsUnauthenticated(t *testing.T) {
	repo := &mockUserRepo{
		findByFirebaseUIDFn: func(context.Context, string) (*model.User, error) {
			return &model.User{ID: "user-1"}, nil
		},
		touchFn: func(context.Context, string) (*model.User, error) { return nil, nil },
	}

	_, err := NewService(validVerifier(&firebase.Token{UID: "uid-1"}), repo, nil).Authenticate(context.Background(), "tok")
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestAuthenticate_NewUser_CreatedFromTokenClaims(t *testing.T) {
	token := &firebase.Token{
		UID:     "uid-new",
		Email:   "new@example.com",
		Name:    "Ana",
		Picture: "https://example.com/a.png",
	}
	var upserted *model.User
	repo := &mockUserRepo{
		upsertFn: func(_ context.Context, user *model.User) (*model.User, error) {
			upserted = user
			stored := *user
			stored.ID = "generated-id"
			return &stored, nil
		},
	}

	res, err := NewService(validVerifier(token), repo, nil).Authenticate(context.Background(), "tok")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Created {
		t.Error("Created should be true for a new user")
	}
	if res.User.ID != "generated-id" {
		t.Errorf("User.ID = %q, want %q", res.User.ID, "generated-id")
	}
	if upserted.FirebaseUID != "uid-new" || upserted.Email != "new@example.com" {
		t.Errorf("upserted user = %+v", upserted)
	}
	if upserted.FirstName == nil || *upserted.FirstName != "Ana" {
		t.Errorf("FirstName = %v, want Ana", upserted.FirstName)
	}
	if upserted.ProfileImage == nil || *upserted.ProfileImage != "https://example.com/a.png" {
		t.Errorf("ProfileImage = %v", upserted.ProfileImage)
	}
	if res.Token != token {
		t.Error("Token should be the verified token")
	}
}

func TestAuthenticate_NewUserWithoutName_LeavesFieldsNil(t *testing.T) {
	var upserted *model.User
	repo := &mockUserRepo{
		upsertFn: func(_ context.Context, user *model.User) (*model.User, error) {
			upserted = user
			return user, nil
		},
	}

	if _, err := NewService(validVerifier(&firebase.Token{UID: "uid-x"}), repo, nil).Authenticate(context.Background(), "tok"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if upserted.FirstName != nil || upserted.ProfileImage != nil {
		t.Errorf("expected nil name and image, got %+v", upserted)
	}
}

func TestAuthenticate_LookupFailure_ReturnsUnauthenticated(t *testing.T) {
	repo := &mockUserRepo{
		findByFirebaseUIDFn: func(context.Context, string) (*model.User, error) {
			return nil, errors.New("connection refused")
		},
	}

	_, err := NewService(validVerifier(&firebase.Token{UID: "uid-1"}), repo, nil).Authenticate(context.Background(), "tok")
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestAuthenticate_CreateFailure_ReturnsPlainError(t *testing.T) {
	repo := &mockUserRepo{
		upsertFn: func(context.Context, *model.User) (*model.User, error) {
			return nil, errors.New("insert failed")
		},
	}

	_, err := NewService(validVerifier(&firebase.Token{UID: "uid-1"}), repo, nil).Authenticate(context.Background(), "tok")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if errors.Is(err, ErrUnauthenticated) {
		t.Error("creation failure must not be reported as unauthenticated")
	}
}
