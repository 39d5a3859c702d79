package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"storefront-api/pkg/idle"
	"storefront-api/pkg/logger"
	"storefront-api/pkg/observable"
)

// Session is the sign-in state of one client. The current user is observable;
// nil means signed out.
type Session struct {
	ID       string
	provider Provider
	user     *observable.Observable[*User]
	log      *logger.Logger

	mu             sync.Mutex
	verificationID string

	seen idle.Stamp
}

func NewSession(id string, p Provider) *Session {
	l := logger.Named("auth").With().Str("session", id).Logger()
	return &Session{
		ID:       id,
		provider: p,
		user:     observable.New[*User](nil),
		log:      &l,
	}
}

func (s *Session) SignInWithGoogle(ctx context.Context, idToken string) (*User, error) {
	u, err := s.provider.SignInWithGoogle(ctx, idToken)
	if err != nil {
		return nil, err
	}
	s.setUser(&u)
	return &u, nil
}

// StartPhoneVerification asks the provider to send a code. If the provider
// verifies the number on its own the session is signed in right away.
func (s *Session) StartPhoneVerification(ctx context.Context, req PhoneRequest, onEvent func(VerificationEvent)) (string, error) {
	id, err := s.provider.StartPhoneVerification(ctx, req, func(ev VerificationEvent) {
		switch ev.Kind {
		case CodeSent:
			s.mu.Lock()
			s.verificationID = ev.VerificationID
			s.mu.Unlock()
		case AutoVerified:
			if ev.User != nil {
				u := *ev.User
				s.setUser(&u)
			}
		case Failed:
			s.log.Info().Err(ev.Err).Msg("phone verification failed")
		}
		if onEvent != nil {
			onEvent(ev)
		}
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// VerifyPhoneCode completes a phone sign-in. An empty verificationID uses
// the one from the last CodeSent event.
func (s *Session) VerifyPhoneCode(ctx context.Context, verificationID, code string) (*User, error) {
	if verificationID == "" {
		s.mu.Lock()
		verificationID = s.verificationID
		s.mu.Unlock()
	}
	if verificationID == "" {
		return nil, ErrVerificationFailed
	}
	u, err := s.provider.VerifyPhoneCode(ctx, verificationID, code)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.verificationID = ""
	s.mu.Unlock()
	s.setUser(&u)
	return &u, nil
}

func (s *Session) SignOut() error {
	if s.user.Get() == nil {
		return ErrNotSignedIn
	}
	s.setUser(nil)
	return nil
}

func (s *Session) CurrentUser() (*User, bool) {
	u := s.user.Get()
	return u, u != nil
}

func (s *Session) IsSignedIn() bool {
	return s.user.Get() != nil
}

// Subscribe streams the current user, then every change.
func (s *Session) Subscribe(ctx context.Context) <-chan *User {
	return s.user.Subscribe(ctx)
}

func (s *Session) Close() {
	s.user.Close()
}

func (s *Session) setUser(u *User) {
	s.user.Set(u)
	if u == nil {
		s.log.Info().Msg("signed out")
		return
	}
	s.log.Info().Str("user", u.ID).Msg("signed in")
}

// Sessions keeps the auth sessions of all connected clients. A session is
// used whenever Create or Get hands it out.
type Sessions struct {
	provider Provider
	ctx      context.Context
	cancel   context.CancelFunc
	now      func() time.Time
	log      *logger.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessions(p Provider) *Sessions {
	ctx, cancel := context.WithCancel(context.Background())
	return &Sessions{
		provider: p,
		ctx:      ctx,
		cancel:   cancel,
		now:      time.Now,
		log:      logger.Named("auth"),
		sessions: make(map[string]*Session),
	}
}

func (r *Sessions) Create() *Session {
	s := NewSession(uuid.NewString(), r.provider)
	s.seen.Touch(r.now())
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	return s
}

func (r *Sessions) Get(id string) (*Session, bool) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok {
		s.seen.Touch(r.now())
	}
	return s, ok
}

// GetOrCreate returns the session for id, or a new one when id is unknown.
func (r *Sessions) GetOrCreate(id string) *Session {
	if s, ok := r.Get(id); ok {
		return s
	}
	return r.Create()
}

func (r *Sessions) Delete(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		s.Close()
	}
	return ok
}

func (r *Sessions) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// ExpireIdle closes the sessions nobody used for longer than ttl and reports
// how many were closed.
func (r *Sessions) ExpireIdle(ttl time.Duration) int {
	now := r.now()
	var expired []*Session

	r.mu.Lock()
	for id, s := range r.sessions {
		if s.seen.Expired(now, ttl) {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		s.Close()
		r.log.Info().Str("session", s.ID).Bool("signed_in", s.IsSignedIn()).Msg("auth session expired")
	}
	return len(expired)
}

// StartReaper runs ExpireIdle in the background until ctx is done or
// CloseAll is called. A non-positive ttl disables expiry.
func (r *Sessions) StartReaper(ctx context.Context, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	context.AfterFunc(r.ctx, cancel)
	go func() {
		defer cancel()
		idle.Sweep(ctx, idle.Interval(ttl), func() { r.ExpireIdle(ttl) })
	}()
}

func (r *Sessions) CloseAll() {
	r.cancel()
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()
	for _, s := range all {
		s.Close()
	}
}
