package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/users"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/verifications"
)

// Operation names accepted by MemoryStore.FailOn.
const (
	OpUsersCreate                = "users.Create"
	OpUsersFindByID              = "users.FindByID"
	OpUsersFindByEmail           = "users.FindByEmail"
	OpUsersFindUnverifiedByEmail = "users.FindUnverifiedByEmail"
	OpUsersMarkEmailVerified     = "users.MarkEmailVerified"
	OpUsersDeleteByID            = "users.DeleteByID"
	OpSessionsCreate             = "sessions.Create"
	OpSessionsFindByToken        = "sessions.FindByToken"
	OpSessionsDeleteByToken      = "sessions.DeleteByToken"
	OpSessionsDeleteByUserID     = "sessions.DeleteByUserID"
	OpAccountsCreate             = "accounts.Create"
	OpAccountsFindByProvider     = "accounts.FindByProvider"
	OpAccountsFindCredential     = "accounts.FindCredential"
	OpAccountsUpdatePassword     = "accounts.UpdatePassword"
	OpAccountsDeleteByUserID     = "accounts.DeleteByUserID"
	OpVerificationsCreate        = "verifications.Create"
	OpVerificationsFind          = "verifications.FindByIdentifier"
	OpVerificationsDelete        = "verifications.DeleteByIdentifier"
)

// MemoryStore keeps all rows in process memory. It enforces the same unique
// and foreign key constraints as the SQL schema. Transactions are serialized
// by a single mutex and work on a copy that replaces the live data on commit.
//
// fn passed to Do or InTx must not call back into the store.
type MemoryStore struct {
	mu   sync.Mutex
	data *memData

	fmu      sync.Mutex
	failures map[string]error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: newMemData(), failures: map[string]error{}}
}

func (s *MemoryStore) Do(ctx context.Context, fn Func) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(ctx, memRepos{s: s, d: s.data})
}

func (s *MemoryStore) InTx(ctx context.Context, fn Func) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.data.clone()
	if err := fn(ctx, memRepos{s: s, d: work}); err != nil {
		return err
	}
	s.data = work
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// FailOn makes every later call of op return err until cleared with a nil err.
func (s *MemoryStore) FailOn(op string, err error) {
	s.fmu.Lock()
	defer s.fmu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

func (s *MemoryStore) injected(op string) error {
	s.fmu.Lock()
	defer s.fmu.Unlock()
	if err, ok := s.failures[op]; ok {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// SeedUser, SeedSession and SeedAccount write rows directly, skipping every
// constraint. They exist to load fixtures, including legacy data the schema
// would reject.
func (s *MemoryStore) SeedUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.users[u.ID] = u
}

func (s *MemoryStore) SeedSession(sess models.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.sessions[sess.ID] = sess
}

func (s *MemoryStore) SeedAccount(a models.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.accounts[a.ID] = a
}

// User returns a committed user row.
func (s *MemoryStore) User(id string) (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.data.users[id]
	return u, ok
}

// UsersByEmail returns committed users with exactly this email, oldest first.
func (s *MemoryStore) UsersByEmail(email string) []models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.usersByEmail(email, nil)
}

// Session returns a committed session row by id.
func (s *MemoryStore) Session(id string) (models.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.data.sessions[id]
	return sess, ok
}

// Account returns a committed account row by id.
func (s *MemoryStore) Account(id string) (models.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.data.accounts[id]
	return a, ok
}

// SessionsOf returns the committed sessions of userID.
func (s *MemoryStore) SessionsOf(userID string) []models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Session
	for _, sess := range s.data.sessions {
		if sess.UserID == userID {
			out = append(out, sess)
		}
	}
	return out
}

// AccountsOf returns the committed accounts of userID.
func (s *MemoryStore) AccountsOf(userID string) []models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Account
	for _, a := range s.data.accounts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out
}

type memData struct {
	users         map[string]models.User
	sessions      map[string]models.Session
	accounts      map[string]models.Account
	verifications map[string]models.Verification
}

func newMemData() *memData {
	return &memData{
		users:         map[string]models.User{},
		sessions:      map[string]models.Session{},
		accounts:      map[string]models.Account{},
		verifications: map[string]models.Verification{},
	}
}

func (d *memData) clone() *memData {
	c := newMemData()
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.sessions {
		c.sessions[k] = v
	}
	for k, v := range d.accounts {
		c.accounts[k] = v
	}
	for k, v := range d.verifications {
		c.verifications[k] = v
	}
	return c
}

func (d *memData) usersByEmail(email string, keep func(models.User) bool) []models.User {
	var out []models.User
	for _, u := range d.users {
		if u.Email == email && (keep == nil || keep(u)) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

type memRepos struct {
	s *MemoryStore
	d *memData
}

func (r memRepos) Users() users.Repository                 { return memUsers(r) }
func (r memRepos) Sessions() sessions.Repository           { return memSessions(r) }
func (r memRepos) Accounts() accounts.Repository           { return memAccounts(r) }
func (r memRepos) Verifications() verifications.Repository { return memVerifications(r) }

type memUsers memRepos

func (r memUsers) Create(_ context.Context, u *models.User) error {
	if err := r.s.injected(OpUsersCreate); err != nil {
		return err
	}
	if _, ok := r.d.users[u.ID]; ok {
		return common.ErrorAlreadyExists
	}
	if len(r.d.usersByEmail(u.Email, nil)) > 0 {
		return common.ErrEmailInUse
	}
	r.d.users[u.ID] = *u
	return nil
}

func (r memUsers) FindByID(_ context.Context, id string) (*models.User, error) {
	if err := r.s.injected(OpUsersFindByID); err != nil {
		return nil, err
	}
	u, ok := r.d.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &u, nil
}

func (r memUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	if err := r.s.injected(OpUsersFindByEmail); err != nil {
		return nil, err
	}
	found := r.d.usersByEmail(email, nil)
	if len(found) == 0 {
		return nil, common.ErrorNotFound
	}
	return &found[0], nil
}

func (r memUsers) FindUnverifiedByEmail(_ context.Context, email string) (*models.User, error) {
	if err := r.s.injected(OpUsersFindUnverifiedByEmail); err != nil {
		return nil, err
	}
	found := r.d.usersByEmail(email, func(u models.User) bool { return !u.EmailVerified })
	if len(found) == 0 {
		return nil, common.ErrorNotFound
	}
	return &found[0], nil
}

func (r memUsers) MarkEmailVerified(_ context.Context, id string, at time.Time) error {
	if err := r.s.injected(OpUsersMarkEmailVerified); err != nil {
		return err
	}
	u, ok := r.d.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.EmailVerified = true
	u.UpdatedAt = at
	r.d.users[id] = u
	return nil
}

func (r memUsers) DeleteByID(_ context.Context, id string) error {
	if err := r.s.injected(OpUsersDeleteByID); err != nil {
		return err
	}
	if _, ok := r.d.users[id]; !ok {
		return common.ErrorNotFound
	}
	for _, s := range r.d.sessions {
		if s.UserID == id {
			return fmt.Errorf("db error: user %s is still referenced by session %s", id, s.ID)
		}
	}
	for _, a := range r.d.accounts {
		if a.UserID == id {
			return fmt.Errorf("db error: user %s is still referenced by account %s", id, a.ID)
		}
	}
	delete(r.d.users, id)
	return nil
}

type memSessions memRepos

func (r memSessions) Create(_ context.Context, s *models.Session) error {
	if err := r.s.injected(OpSessionsCreate); err != nil {
		return err
	}
	if _, ok := r.d.users[s.UserID]; !ok {
		return fmt.Errorf("db error: session references missing user %s", s.UserID)
	}
	for _, existing := range r.d.sessions {
		if existing.ID == s.ID || existing.Token == s.Token {
			return common.ErrorAlreadyExists
		}
	}
	r.d.sessions[s.ID] = *s
	return nil
}

func (r memSessions) FindByToken(_ context.Context, token string) (*models.Session, error) {
	if err := r.s.injected(OpSessionsFindByToken); err != nil {
		return nil, err
	}
	for _, s := range r.d.sessions {
		if s.Token == token {
			return &s, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r memSessions) DeleteByToken(_ context.Context, token string) error {
	if err := r.s.injected(OpSessionsDeleteByToken); err != nil {
		return err
	}
	for id, s := range r.d.sessions {
		if s.Token == token {
			delete(r.d.sessions, id)
		}
	}
	return nil
}

func (r memSessions) DeleteByUserID(_ context.Context, userID string) (int64, error) {
	if err := r.s.injected(OpSessionsDeleteByUserID); err != nil {
		return 0, err
	}
	var n int64
	for id, s := range r.d.sessions {
		if s.UserID == userID {
			delete(r.d.sessions, id)
			n++
		}
	}
	return n, nil
}

type memAccounts memRepos

func (r memAccounts) Create(_ context.Context, a *models.Account) error {
	if err := r.s.injected(OpAccountsCreate); err != nil {
		return err
	}
	if _, ok := r.d.users[a.UserID]; !ok {
		return fmt.Errorf("db error: account references missing user %s", a.UserID)
	}
	for _, existing := range r.d.accounts {
		if existing.ID == a.ID || (existing.ProviderID == a.ProviderID && existing.AccountID == a.AccountID) {
			return common.ErrorAlreadyExists
		}
	}
	r.d.accounts[a.ID] = *a
	return nil
}

func (r memAccounts) FindByProvider(_ context.Context, providerID, accountID string) (*models.Account, error) {
	if err := r.s.injected(OpAccountsFindByProvider); err != nil {
		return nil, err
	}
	for _, a := range r.d.accounts {
		if a.ProviderID == providerID && a.AccountID == accountID {
			return &a, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r memAccounts) FindCredential(_ context.Context, userID string) (*models.Account, error) {
	if err := r.s.injected(OpAccountsFindCredential); err != nil {
		return nil, err
	}
	for _, a := range r.d.accounts {
		if a.UserID == userID && a.ProviderID == models.CredentialProviderID {
			return &a, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r memAccounts) UpdatePassword(_ context.Context, id, hash string, at time.Time) error {
	if err := r.s.injected(OpAccountsUpdatePassword); err != nil {
		return err
	}
	a, ok := r.d.accounts[id]
	if !ok {
		return common.ErrorNotFound
	}
	a.Password = hash
	a.UpdatedAt = at
	r.d.accounts[id] = a
	return nil
}

func (r memAccounts) DeleteByUserID(_ context.Context, userID string) (int64, error) {
	if err := r.s.injected(OpAccountsDeleteByUserID); err != nil {
		return 0, err
	}
	var n int64
	for id, a := range r.d.accounts {
		if a.UserID == userID {
			delete(r.d.accounts, id)
			n++
		}
	}
	return n, nil
}

type memVerifications memRepos

func (r memVerifications) Create(_ context.Context, v *models.Verification) error {
	if err := r.s.injected(OpVerificationsCreate); err != nil {
		return err
	}
	if _, ok := r.d.verifications[v.ID]; ok {
		return common.ErrorAlreadyExists
	}
	r.d.verifications[v.ID] = *v
	return nil
}

func (r memVerifications) FindByIdentifier(_ context.Context, identifier string) (*models.Verification, error) {
	if err := r.s.injected(OpVerificationsFind); err != nil {
		return nil, err
	}
	var latest *models.Verification
	for _, v := range r.d.verifications {
		if v.Identifier != identifier {
			continue
		}
		if latest == nil || v.CreatedAt.After(latest.CreatedAt) {
			v := v
			latest = &v
		}
	}
	if latest == nil {
		return nil, common.ErrorNotFound
	}
	return latest, nil
}

func (r memVerifications) DeleteByIdentifier(_ context.Context, identifier string) error {
	if err := r.s.injected(OpVerificationsDelete); err != nil {
		return err
	}
	for id, v := range r.d.verifications {
		if v.Identifier == identifier {
			delete(r.d.verifications, id)
		}
	}
	return nil
}

var _ Store = (*MemoryStore)(nil)
