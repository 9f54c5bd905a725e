package services

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/notify"
	"github.com/dmitrijs2005/authkeeper/internal/server/reconcile"
	"github.com/dmitrijs2005/authkeeper/internal/server/store"
	"github.com/stretchr/testify/require"
)

// --- helpers ---

type recordingNotifier struct {
	mu     sync.Mutex
	verify []notify.Message
	reset  []notify.Message
}

func (n *recordingNotifier) SendVerificationEmail(_ context.Context, m notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.verify = append(n.verify, m)
	return nil
}

func (n *recordingNotifier) SendPasswordResetEmail(_ context.Context, m notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reset = append(n.reset, m)
	return nil
}

func (n *recordingNotifier) lastVerifyToken(t *testing.T) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.verify, "no verification email sent")
	return tokenFromURL(t, n.verify[len(n.verify)-1].URL)
}

func (n *recordingNotifier) lastResetToken(t *testing.T) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.reset, "no reset email sent")
	return tokenFromURL(t, n.reset[len(n.reset)-1].URL)
}

func tokenFromURL(t *testing.T, raw string) string {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	tok := u.Query().Get("token")
	require.NotEmpty(t, tok)
	return tok
}

type fakeRecorder struct {
	mu            sync.Mutex
	signUps       map[string]int
	signIns       map[string]int
	verifications map[string]int
	evictions     int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{signUps: map[string]int{}, signIns: map[string]int{}, verifications: map[string]int{}}
}

func (f *fakeRecorder) RecordSignUp(r string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signUps[r]++
}

func (f *fakeRecorder) RecordSignIn(r string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signIns[r]++
}

func (f *fakeRecorder) RecordVerification(r string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifications[r]++
}

func (f *fakeRecorder) RecordEviction() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evictions++
}

type fixture struct {
	svc      *AuthService
	store    *store.MemoryStore
	notifier *recordingNotifier
	metrics  *fakeRecorder
}

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, Options{
		SecretKey:            []byte("k"),
		BaseURL:              "http://auth.test",
		SessionTTL:           time.Hour,
		EmailVerificationTTL: time.Hour,
		ResetPasswordTTL:     time.Hour,
		Providers:            []string{"github", "google"},
		AccountLinking:       true,
		TrustedProviders:     []string{"google"},
	})
}

func newFixtureWith(t *testing.T, opts Options) *fixture {
	t.Helper()
	st := store.NewMemoryStore()
	n := &recordingNotifier{}
	rec := newFakeRecorder()
	l := logging.Discard()

	svc := NewAuthService(st, reconcile.NewGuard(l, rec), n, rec, l, opts)
	svc.now = func() time.Time { return testNow }

	return &fixture{svc: svc, store: st, notifier: n, metrics: rec}
}

// verifiedUser signs up and verifies email, returning the user id.
func (f *fixture) verifiedUser(t *testing.T, email, password string) string {
	t.Helper()
	u, err := f.svc.SignUpEmail(context.Background(), SignUpInput{Email: email, Name: "V", Password: password})
	require.NoError(t, err)
	_, err = f.svc.VerifyEmail(context.Background(), f.notifier.lastVerifyToken(t), SessionMeta{})
	require.NoError(t, err)
	return u.ID
}
