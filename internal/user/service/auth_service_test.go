package service

import (
	"context"
	"testing"
	"time"

	"codearena/internal/common/db"
	"codearena/internal/user/repository"
	pkgerrors "codearena/pkg/errors"

	"golang.org/x/crypto/bcrypt"
)

type fakeUserRepo struct {
	usersByEmail map[string]*repository.User
	usersByID    map[int64]*repository.User
	nextID       int64
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		usersByEmail: make(map[string]*repository.User),
		usersByID:    make(map[int64]*repository.User),
		nextID:       1,
	}
}

func (r *fakeUserRepo) Create(ctx context.Context, tx db.Transaction, user *repository.User) (int64, error) {
	if _, ok := r.usersByEmail[user.Email]; ok {
		return 0, repository.ErrEmailExists
	}
	id := r.nextID
	r.nextID++
	clone := *user
	clone.ID = id
	r.usersByEmail[user.Email] = &clone
	r.usersByID[id] = &clone
	return id, nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, tx db.Transaction, id int64) (*repository.User, error) {
	user, ok := r.usersByID[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, tx db.Transaction, email string) (*repository.User, error) {
	user, ok := r.usersByEmail[email]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func (r *fakeUserRepo) ExistsByEmail(ctx context.Context, tx db.Transaction, email string) (bool, error) {
	_, ok := r.usersByEmail[email]
	return ok, nil
}

func (r *fakeUserRepo) Delete(ctx context.Context, tx db.Transaction, id int64) error {
	user, ok := r.usersByID[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	delete(r.usersByEmail, user.Email)
	delete(r.usersByID, id)
	return nil
}

type fakeTokenRepo struct {
	blocked map[string]time.Time
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{blocked: make(map[string]time.Time)}
}

func (r *fakeTokenRepo) Block(ctx context.Context, token string, until time.Time) error {
	r.blocked[token] = until
	return nil
}

func (r *fakeTokenRepo) IsBlocked(ctx context.Context, token string) (bool, error) {
	until, ok := r.blocked[token]
	return ok && time.Now().Before(until), nil
}

type fakeSolvedRepo struct {
	byUser map[int64][]int64
	purged []int64
}

func newFakeSolvedRepo() *fakeSolvedRepo {
	return &fakeSolvedRepo{byUser: make(map[int64][]int64)}
}

func (r *fakeSolvedRepo) Add(ctx context.Context, tx db.Transaction, userID, problemID int64) (bool, error) {
	for _, id := range r.byUser[userID] {
		if id == problemID {
			return false, nil
		}
	}
	r.byUser[userID] = append(r.byUser[userID], problemID)
	return true, nil
}

func (r *fakeSolvedRepo) Contains(ctx context.Context, tx db.Transaction, userID, problemID int64) (bool, error) {
	for _, id := range r.byUser[userID] {
		if id == problemID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeSolvedRepo) List(ctx context.Context, tx db.Transaction, userID int64) ([]int64, error) {
	return r.byUser[userID], nil
}

func (r *fakeSolvedRepo) Purge(ctx context.Context, tx db.Transaction, userID int64) error {
	delete(r.byUser, userID)
	r.purged = append(r.purged, userID)
	return nil
}

// fakeTxDB satisfies db.Database for services that open transactions.
// The fn runs with a nil tx; the fake repositories ignore it anyway.
type fakeTxDB struct{}

func (fakeTxDB) Query(ctx context.Context, query string, args ...interface{}) (db.Rows, error) {
	return nil, nil
}

func (fakeTxDB) QueryRow(ctx context.Context, query string, args ...interface{}) db.Row {
	return nil
}

func (fakeTxDB) Exec(ctx context.Context, query string, args ...interface{}) (db.Result, error) {
	return nil, nil
}

func (fakeTxDB) Transaction(ctx context.Context, fn func(tx db.Transaction) error) error {
	return fn(nil)
}

func (fakeTxDB) Ping(ctx context.Context) error { return nil }
func (fakeTxDB) Close() error                   { return nil }

func newTestAuthService(t *testing.T) (*AuthService, *fakeUserRepo, *fakeTokenRepo, *fakeSolvedRepo) {
	t.Helper()
	users := newFakeUserRepo()
	tokens := newFakeTokenRepo()
	solved := newFakeSolvedRepo()
	provider := db.NewStaticProvider(fakeTxDB{})
	svc := NewAuthService(provider, users, tokens, solved, AuthServiceConfig{
		JWTSecret: []byte("test-secret"),
	})
	return svc, users, tokens, solved
}

func TestRegisterAndLogin(t *testing.T) {
	svc, users, _, _ := newTestAuthService(t)
	ctx := context.Background()

	result, err := svc.Register(ctx, RegisterInput{
		FirstName: "Ada",
		Email:     "ada@example.com",
		Password:  "passw0rd!",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if result.Token == "" {
		t.Fatal("Register returned empty token")
	}
	if result.User.Role != repository.UserRoleUser {
		t.Fatalf("Role = %q, want user", result.User.Role)
	}

	stored := users.usersByEmail["ada@example.com"]
	if stored == nil {
		t.Fatal("user not persisted")
	}
	if stored.PasswordHash == "passw0rd!" {
		t.Fatal("password stored in plain text")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("passw0rd!")); err != nil {
		t.Fatalf("stored hash does not verify: %v", err)
	}

	login, err := svc.Login(ctx, LoginInput{Email: "ada@example.com", Password: "passw0rd!"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if login.User.ID != result.User.ID {
		t.Fatalf("login user id = %d, want %d", login.User.ID, result.User.ID)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _, _ := newTestAuthService(t)
	ctx := context.Background()

	cases := []struct {
		name     string
		input    RegisterInput
		wantCode pkgerrors.ErrorCode
	}{
		{"bad email", RegisterInput{FirstName: "Ada", Email: "not-an-email", Password: "passw0rd!"}, pkgerrors.InvalidEmail},
		{"short password", RegisterInput{FirstName: "Ada", Email: "a@b.co", Password: "short"}, pkgerrors.PasswordTooWeak},
		{"no digits", RegisterInput{FirstName: "Ada", Email: "a@b.co", Password: "passwords"}, pkgerrors.PasswordTooWeak},
		{"short name", RegisterInput{FirstName: "A", Email: "a@b.co", Password: "passw0rd!"}, pkgerrors.ValidationFailed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tc.input)
			if !pkgerrors.Is(err, tc.wantCode) {
				t.Fatalf("err = %v, want code %d", err, tc.wantCode)
			}
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _, _, _ := newTestAuthService(t)
	ctx := context.Background()

	input := RegisterInput{FirstName: "Ada", Email: "ada@example.com", Password: "passw0rd!"}
	if _, err := svc.Register(ctx, input); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	_, err := svc.Register(ctx, input)
	if !pkgerrors.Is(err, pkgerrors.EmailAlreadyExists) {
		t.Fatalf("err = %v, want EmailAlreadyExists", err)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	svc, _, _, _ := newTestAuthService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{FirstName: "Ada", Email: "ada@example.com", Password: "passw0rd!"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, err := svc.Login(ctx, LoginInput{Email: "ada@example.com", Password: "wrong-passw0rd"})
	if !pkgerrors.Is(err, pkgerrors.InvalidCredentials) {
		t.Fatalf("wrong password: err = %v, want InvalidCredentials", err)
	}

	_, err = svc.Login(ctx, LoginInput{Email: "ghost@example.com", Password: "passw0rd!"})
	if !pkgerrors.Is(err, pkgerrors.InvalidCredentials) {
		t.Fatalf("unknown email: err = %v, want InvalidCredentials", err)
	}
}

func TestLoginAdminRejectsRegularUser(t *testing.T) {
	svc, _, _, _ := newTestAuthService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{FirstName: "Ada", Email: "ada@example.com", Password: "passw0rd!"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, err := svc.LoginAdmin(ctx, LoginInput{Email: "ada@example.com", Password: "passw0rd!"})
	if !pkgerrors.Is(err, pkgerrors.InvalidCredentials) {
		t.Fatalf("err = %v, want InvalidCredentials", err)
	}
}

func TestAuthenticate(t *testing.T) {
	svc, _, _, _ := newTestAuthService(t)
	ctx := context.Background()

	result, err := svc.RegisterAdmin(ctx, RegisterInput{FirstName: "Root", Email: "root@example.com", Password: "passw0rd!"})
	if err != nil {
		t.Fatalf("RegisterAdmin: %v", err)
	}

	principal, err := svc.Authenticate(ctx, result.Token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if principal.UserID != result.User.ID {
		t.Fatalf("UserID = %d, want %d", principal.UserID, result.User.ID)
	}
	if !principal.IsAdmin() {
		t.Fatal("expected admin principal")
	}

	_, err = svc.Authenticate(ctx, "not-a-jwt")
	if !pkgerrors.Is(err, pkgerrors.TokenInvalid) {
		t.Fatalf("garbage token: err = %v, want TokenInvalid", err)
	}
}

func TestLogoutBlocksToken(t *testing.T) {
	svc, _, tokens, _ := newTestAuthService(t)
	ctx := context.Background()

	result, err := svc.Register(ctx, RegisterInput{FirstName: "Ada", Email: "ada@example.com", Password: "passw0rd!"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := svc.Logout(ctx, result.Token); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if len(tokens.blocked) != 1 {
		t.Fatalf("blocked %d tokens, want 1", len(tokens.blocked))
	}

	_, err = svc.Authenticate(ctx, result.Token)
	if !pkgerrors.Is(err, pkgerrors.TokenBlocked) {
		t.Fatalf("err = %v, want TokenBlocked", err)
	}
}

func TestDeleteProfileInvalidatesToken(t *testing.T) {
	svc, _, _, solved := newTestAuthService(t)
	ctx := context.Background()

	result, err := svc.Register(ctx, RegisterInput{FirstName: "Ada", Email: "ada@example.com", Password: "passw0rd!"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := solved.Add(ctx, nil, result.User.ID, 1); err != nil {
		t.Fatalf("seed solved: %v", err)
	}

	if err := svc.DeleteProfile(ctx, result.User.ID); err != nil {
		t.Fatalf("DeleteProfile: %v", err)
	}
	if len(solved.byUser[result.User.ID]) != 0 {
		t.Fatal("solved rows should be purged with the account")
	}

	// Token still parses but the account is gone.
	_, err = svc.Authenticate(ctx, result.Token)
	if !pkgerrors.Is(err, pkgerrors.TokenInvalid) {
		t.Fatalf("err = %v, want TokenInvalid", err)
	}

	err = svc.DeleteProfile(ctx, result.User.ID)
	if !pkgerrors.Is(err, pkgerrors.UserNotFound) {
		t.Fatalf("second delete: err = %v, want UserNotFound", err)
	}
}
