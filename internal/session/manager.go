package session

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nhle/todosync/internal/model"
	"github.com/nhle/todosync/internal/remote"
)

// EventKind names an auth state change.
type EventKind string

const (
	InitialSession EventKind = "INITIAL_SESSION"
	SignedIn       EventKind = "SIGNED_IN"
	SignedOut      EventKind = "SIGNED_OUT"
	TokenRefreshed EventKind = "TOKEN_REFRESHED"
)

// Event is delivered to subscribers on every auth state change. Session is
// nil for SignedOut and for an anonymous InitialSession.
type Event struct {
	Kind    EventKind
	Session *model.Session
}

// Authenticator is the part of the auth API the manager needs.
type Authenticator interface {
	SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error)
	SignUp(ctx context.Context, email, password string) (*remote.SignUpResult, error)
	RefreshSession(ctx context.Context, refreshToken string) (*model.Session, error)
	SignOut(ctx context.Context, accessToken string) error
	GetUser(ctx context.Context, accessToken string) (model.User, error)
}

// Persister keeps the session across runs.
type Persister interface {
	LoadSession() (*model.Session, error)
	SaveSession(s *model.Session) error
	ClearSession() error
}

const (
	// subscriptionBuffer is how many events a slow subscriber may lag behind
	// before the oldest pending event is dropped.
	subscriptionBuffer = 16

	refreshTimeout    = 30 * time.Second
	refreshRetryDelay = 30 * time.Second
)

// ErrClosed is returned by operations on a closed manager.
var ErrClosed = errors.New("session manager closed")

// Options tune a Manager.
type Options struct {
	// RefreshMargin is how long before expiry the access token is
	// refreshed.
	RefreshMargin time.Duration

	Logger *log.Logger
	Now    func() time.Time
}

// Manager tracks the current session, persists it, keeps the access token
// fresh and notifies subscribers of every change.
type Manager struct {
	auth   Authenticator
	store  Persister
	logger *log.Logger
	margin time.Duration
	now    func() time.Time

	mu         gosync.Mutex
	current    *model.Session
	subs       map[*Subscription]struct{}
	retryAfter time.Time
	started    bool
	closed     bool

	kickCh chan struct{}
	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a manager. Call Start to restore the persisted session and
// Close to release it.
func New(auth Authenticator, store Persister, opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		auth:   auth,
		store:  store,
		logger: opts.Logger,
		margin: opts.RefreshMargin,
		now:    opts.Now,
		subs:   make(map[*Subscription]struct{}),
		kickCh: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start restores the persisted session, refreshing it when it is expired
// and verifying it otherwise, publishes InitialSession and starts the
// auto-refresh loop.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.mu.Unlock()

	sess, err := m.store.LoadSession()
	if err != nil {
		m.logger.Warn("discarding stored session", "err", err)
		sess = nil
	}
	sess = m.restore(ctx, complete(sess))

	m.mu.Lock()
	m.current = sess
	m.publishLocked(Event{Kind: InitialSession, Session: sess})
	m.mu.Unlock()

	go m.refreshLoop()
	return nil
}

// restore makes a stored session usable. An expired session is refreshed.
// A live one is checked against the service, which also picks up a changed
// email. Sessions the service rejects are dropped; when the service cannot
// be reached a live session is kept as is.
func (m *Manager) restore(ctx context.Context, sess *model.Session) *model.Session {
	if sess == nil {
		return nil
	}

	if sess.Expired(m.now(), m.margin) {
		refreshed, err := m.auth.RefreshSession(ctx, sess.RefreshToken)
		if err != nil {
			m.logger.Warn("stored session could not be refreshed", "err", err)
			m.forget()
			return nil
		}
		sess = complete(refreshed)
		m.persist(sess)
		return sess
	}

	user, err := m.auth.GetUser(ctx, sess.AccessToken)
	switch {
	case err == nil:
		if user != sess.User {
			next := *sess
			next.User = user
			sess = &next
			m.persist(sess)
		}
	case remote.IsRejected(err):
		m.logger.Warn("stored session rejected by service", "err", err)
		m.forget()
		return nil
	default:
		m.logger.Warn("could not verify stored session", "err", err)
	}
	return sess
}

// Current returns the current session or nil when signed out.
func (m *Manager) Current() *model.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// AccessToken returns the current access token, or "" when signed out.
func (m *Manager) AccessToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return ""
	}
	return m.current.AccessToken
}

// SignIn authenticates with email and password. On failure the previous
// state is kept.
func (m *Manager) SignIn(ctx context.Context, email, password string) error {
	sess, err := m.auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		return err
	}
	sess = complete(sess)
	m.persist(sess)
	m.set(sess, SignedIn)
	m.logger.Info("signed in", "user", sess.User.Email)
	return nil
}

// SignUp registers a new account. It never changes the local session: the
// user confirms through the emailed link and then signs in.
func (m *Manager) SignUp(ctx context.Context, email, password string) (*remote.SignUpResult, error) {
	res, err := m.auth.SignUp(ctx, email, password)
	if err != nil {
		return nil, err
	}
	m.logger.Info("signed up", "user", email, "confirmation_required", res.ConfirmationRequired())
	return res, nil
}

// SignOut revokes the session remotely and forgets it locally. A token the
// service already rejects counts as signed out; any other failure keeps the
// session.
func (m *Manager) SignOut(ctx context.Context) error {
	cur := m.Current()
	if cur == nil {
		return nil
	}
	if err := m.auth.SignOut(ctx, cur.AccessToken); err != nil && !remote.IsAuthError(err) {
		return err
	}
	m.forget()
	m.set(nil, SignedOut)
	m.logger.Info("signed out", "user", cur.User.Email)
	return nil
}

// Invalidate drops the session after the service rejected its token.
func (m *Manager) Invalidate(reason error) {
	if m.Current() == nil {
		return
	}
	m.logger.Warn("session invalidated by service", "err", reason)
	m.forget()
	m.set(nil, SignedOut)
}

// Subscribe registers for auth state changes. The caller must Unsubscribe.
func (m *Manager) Subscribe() *Subscription {
	sub := &Subscription{
		ch: make(chan Event, subscriptionBuffer),
		m:  m,
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		close(sub.ch)
		sub.once.Do(func() {})
		return sub
	}
	m.subs[sub] = struct{}{}
	return sub
}

// Close stops the refresh loop and closes every subscription. It is safe
// to call more than once.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	started := m.started
	subs := make([]*Subscription, 0, len(m.subs))
	for s := range m.subs {
		subs = append(subs, s)
	}
	m.mu.Unlock()

	close(m.stopCh)
	if started {
		<-m.doneCh
	}
	for _, s := range subs {
		s.Unsubscribe()
	}
}

func (m *Manager) set(sess *model.Session, kind EventKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = sess
	m.retryAfter = time.Time{}
	m.publishLocked(Event{Kind: kind, Session: sess})
	select {
	case m.kickCh <- struct{}{}:
	default:
	}
}

func (m *Manager) persist(sess *model.Session) {
	if err := m.store.SaveSession(sess); err != nil {
		m.logger.Error("persisting session", "err", err)
	}
}

func (m *Manager) forget() {
	if err := m.store.ClearSession(); err != nil {
		m.logger.Error("clearing stored session", "err", err)
	}
}

// publishLocked fans ev out to every subscriber. A full subscriber loses its
// oldest pending event rather than blocking the publisher.
func (m *Manager) publishLocked(ev Event) {
	for sub := range m.subs {
		sub.deliver(ev)
	}
}

// refreshLoop refreshes the access token margin before it expires.
func (m *Manager) refreshLoop() {
	defer close(m.doneCh)

	for {
		var timer *time.Timer
		var fire <-chan time.Time
		if wait, ok := m.nextRefresh(); ok {
			timer = time.NewTimer(wait)
			fire = timer.C
		}

		select {
		case <-m.stopCh:
			if timer != nil {
				timer.Stop()
			}
			return
		case <-m.kickCh:
			if timer != nil {
				timer.Stop()
			}
		case <-fire:
			m.refresh()
		}
	}
}

// nextRefresh reports how long until the current session needs refreshing.
func (m *Manager) nextRefresh() (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.current
	if s == nil || s.ExpiresAt.IsZero() || s.RefreshToken == "" {
		return 0, false
	}
	now := m.now()
	at := s.ExpiresAt.Add(-m.margin)
	if m.retryAfter.After(at) {
		at = m.retryAfter
	}
	wait := at.Sub(now)
	if wait < 0 {
		wait = 0
	}
	return wait, true
}

func (m *Manager) refresh() {
	cur := m.Current()
	if cur == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	refreshed, err := m.auth.RefreshSession(ctx, cur.RefreshToken)
	if err != nil {
		if remote.IsRejected(err) {
			if m.replace(cur, nil, SignedOut) {
				m.logger.Warn("session invalidated by service", "err", fmt.Errorf("refreshing token: %w", err))
				m.forget()
			}
			return
		}
		m.logger.Warn("token refresh failed, will retry", "err", err, "retry_in", refreshRetryDelay)
		m.mu.Lock()
		if m.current == cur {
			m.retryAfter = m.now().Add(refreshRetryDelay)
		}
		m.mu.Unlock()
		return
	}

	refreshed = complete(refreshed)
	if !m.replace(cur, refreshed, TokenRefreshed) {
		// Signed out or replaced while the request was in flight.
		return
	}
	m.persist(refreshed)

	// The session may have changed while it was being saved. Store whatever
	// is current now so the save does not outlive a sign-out.
	if now := m.Current(); now != refreshed {
		if now == nil {
			m.forget()
		} else {
			m.persist(now)
		}
		return
	}
	m.logger.Debug("token refreshed", "expires_at", refreshed.ExpiresAt)
}

// replace swaps the current session for next only while it is still cur,
// and publishes kind when it does.
func (m *Manager) replace(cur, next *model.Session, kind EventKind) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != cur {
		return false
	}
	m.current = next
	m.retryAfter = time.Time{}
	m.publishLocked(Event{Kind: kind, Session: next})
	select {
	case m.kickCh <- struct{}{}:
	default:
	}
	return true
}

// Subscription receives auth state changes until it is released.
type Subscription struct {
	ch   chan Event
	m    *Manager
	once gosync.Once
}

// C returns the event channel. It is closed on Unsubscribe or when the
// manager closes.
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Unsubscribe stops delivery and closes the channel.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.m.mu.Lock()
		delete(s.m.subs, s)
		close(s.ch)
		s.m.mu.Unlock()
	})
}

// deliver is called with the manager lock held.
func (s *Subscription) deliver(ev Event) {
	select {
	case s.ch <- ev:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- ev:
	default:
	}
}
