package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/ordermart-system/internal/model"
	"github.com/mmeshcher/ordermart-system/internal/repository"
	"github.com/mmeshcher/ordermart-system/internal/userclient"
)

type stubCredRepo struct {
	creds     map[string]*model.Credential
	createErr error
}

func newStubCredRepo() *stubCredRepo {
	return &stubCredRepo{creds: make(map[string]*model.Credential)}
}

func (r *stubCredRepo) Close() error { return nil }

func (r *stubCredRepo) CreateCredential(_ context.Context, cred *model.Credential) error {
	if r.createErr != nil {
		return r.createErr
	}
	if _, ok := r.creds[cred.Login]; ok {
		return repository.ErrCredentialExists
	}
	cred.ID = int64(len(r.creds) + 1)
	r.creds[cred.Login] = cred
	return nil
}

func (r *stubCredRepo) GetCredentialByLogin(_ context.Context, login string) (*model.Credential, error) {
	cred, ok := r.creds[login]
	if !ok {
		return nil, repository.ErrCredentialNotFound
	}
	return cred, nil
}

type stubRemoteUsers struct {
	nextID    int64
	createErr error
	deleteErr error

	created []userclient.CreateUserRequest
	deleted []int64
}

func (s *stubRemoteUsers) CreateUser(_ context.Context, req userclient.CreateUserRequest) (*userclient.User, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.nextID++
	s.created = append(s.created, req)
	return &userclient.User{ID: s.nextID, Name: req.Name, Surname: req.Surname, Email: req.Email}, nil
}

func (s *stubRemoteUsers) DeleteUser(_ context.Context, id int64) error {
	s.deleted = append(s.deleted, id)
	return s.deleteErr
}

func newTestService(repo Repository, users RemoteUsers) *Service {
	tokens := NewTokenManager("test-secret", time.Minute, time.Hour)
	return NewService(repo, users, tokens, zap.NewNop())
}

func registerReq() RegisterRequest {
	return RegisterRequest{
		Login:    "ivan",
		Password: "secret",
		Name:     "Иван",
		Surname:  "Петров",
		Email:    "ivan@example.com",
	}
}

func TestRegisterHappyPath(t *testing.T) {
	repo := newStubCredRepo()
	users := &stubRemoteUsers{}
	svc := newTestService(repo, users)

	cred, err := svc.Register(context.Background(), registerReq())
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if cred.UserID != 1 {
		t.Errorf("userID = %d, want 1", cred.UserID)
	}
	if cred.Role != model.RoleUser {
		t.Errorf("role = %s, want USER", cred.Role)
	}
	if cred.PasswordHash == "secret" || cred.PasswordHash == "" {
		t.Errorf("password stored unhashed")
	}
	if len(users.deleted) != 0 {
		t.Errorf("compensation ran on success: %v", users.deleted)
	}
}

func TestRegisterBusyLoginSkipsRemoteCall(t *testing.T) {
	repo := newStubCredRepo()
	users := &stubRemoteUsers{}
	svc := newTestService(repo, users)

	if _, err := svc.Register(context.Background(), registerReq()); err != nil {
		t.Fatal(err)
	}

	_, err := svc.Register(context.Background(), registerReq())
	if !errors.Is(err, repository.ErrCredentialExists) {
		t.Fatalf("err = %v, want ErrCredentialExists", err)
	}
	if len(users.created) != 1 {
		t.Errorf("remote create calls = %d, want 1: duplicate login must not reach user-service", len(users.created))
	}
}

func TestRegisterCompensatesOnLocalFailure(t *testing.T) {
	repo := newStubCredRepo()
	repo.createErr = errors.New("credentials insert failed")
	users := &stubRemoteUsers{}
	svc := newTestService(repo, users)

	_, err := svc.Register(context.Background(), registerReq())
	if err == nil {
		t.Fatal("register must fail")
	}

	if len(users.deleted) != 1 {
		t.Fatalf("compensation calls = %d, want exactly 1", len(users.deleted))
	}
	if users.deleted[0] != 1 {
		t.Errorf("compensated userID = %d, want 1", users.deleted[0])
	}
}

func TestRegisterCompensationFailureKeepsOriginalError(t *testing.T) {
	original := errors.New("credentials insert failed")
	repo := newStubCredRepo()
	repo.createErr = original
	users := &stubRemoteUsers{deleteErr: errors.New("delete also failed")}
	svc := newTestService(repo, users)

	_, err := svc.Register(context.Background(), registerReq())
	if !errors.Is(err, original) {
		t.Fatalf("err = %v, want original step failure", err)
	}
}

func TestRegisterRemoteFailureSkipsLocalWrite(t *testing.T) {
	repo := newStubCredRepo()
	users := &stubRemoteUsers{createErr: userclient.ErrUnavailable}
	svc := newTestService(repo, users)

	_, err := svc.Register(context.Background(), registerReq())
	if !errors.Is(err, userclient.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if len(repo.creds) != 0 {
		t.Errorf("credentials persisted without remote user")
	}
	if len(users.deleted) != 0 {
		t.Errorf("compensation ran though nothing was created")
	}
}

func TestLoginAndValidate(t *testing.T) {
	repo := newStubCredRepo()
	users := &stubRemoteUsers{}
	svc := newTestService(repo, users)

	if _, err := svc.Register(context.Background(), registerReq()); err != nil {
		t.Fatal(err)
	}

	pair, err := svc.Login(context.Background(), "ivan", "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	claims, err := svc.Validate(context.Background(), pair.AccessToken)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != 1 || claims.Role != model.RoleUser {
		t.Errorf("claims = %+v", claims)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	repo := newStubCredRepo()
	svc := newTestService(repo, &stubRemoteUsers{})

	if _, err := svc.Register(context.Background(), registerReq()); err != nil {
		t.Fatal(err)
	}

	_, err := svc.Login(context.Background(), "ivan", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}

	// Несуществующий логин неотличим от неверного пароля.
	_, err = svc.Login(context.Background(), "nosuch", "secret")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestRefreshIssuesNewPair(t *testing.T) {
	repo := newStubCredRepo()
	svc := newTestService(repo, &stubRemoteUsers{})

	if _, err := svc.Register(context.Background(), registerReq()); err != nil {
		t.Fatal(err)
	}
	pair, err := svc.Login(context.Background(), "ivan", "secret")
	if err != nil {
		t.Fatal(err)
	}

	refreshed, err := svc.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}

	claims, err := svc.Validate(context.Background(), refreshed.AccessToken)
	if err != nil {
		t.Fatalf("validate refreshed: %v", err)
	}
	if claims.UserID != 1 {
		t.Errorf("userID = %d, want 1", claims.UserID)
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	svc := newTestService(newStubCredRepo(), &stubRemoteUsers{})

	_, err := svc.Validate(context.Background(), "not.a.token")
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}
