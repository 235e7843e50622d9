package metaserver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/udisondev/mythmeta/internal/auth"
	"github.com/udisondev/mythmeta/internal/model"
	"github.com/udisondev/mythmeta/internal/protocol"
	"github.com/udisondev/mythmeta/internal/store"
)

// guestLogin is the reserved name for anonymous sessions.
const guestLogin = "guest"

// handleLogin starts the two-step exchange: record the claimed login,
// answer with a challenge. Whether the account exists is not
// disclosed; unknown users get a challenge too and fail later with the
// same packet as a wrong password.
func (s *Server) handleLogin(ctx context.Context, c *Client, payload []byte) error {
	req, err := decodeLogin(payload)
	if err != nil {
		return err
	}

	if c.UserID() != 0 {
		sendMessage(c, protocol.CodeUserAlreadyLoggedIn)
		return nil
	}
	c.SetGameFlags(req.GameFlags)

	if min := s.cfg.MinimumClientBuild; min > 0 && req.Build < uint32(min) {
		slog.Info("stale client refused", "ip", c.IP(), "build", req.Build, "minimum", min)
		sendURL(c, "Your client is out of date.", s.cfg.UpdateURL)
		sendMessage(c, protocol.CodeLoginFailedInvalidVersion)
		c.CloseAsync()
		return nil
	}

	state := &loginState{login: req.Login, scheme: auth.DefaultScheme}
	if state.salt, err = auth.NewSalt(); err != nil {
		sendMessage(c, protocol.CodeInternalError)
		return nil
	}

	if s.cfg.GuestLoginsAllowed && req.Login == guestLogin {
		state.userKnown = true
	} else {
		u, err := s.stores.Users.GetByLogin(ctx, req.Login)
		if err != nil {
			slog.Error("user lookup failed", "login", req.Login, "error", err)
			sendMessage(c, protocol.CodeInternalError)
			return nil
		}
		if u != nil {
			state.userKnown = true
			state.scheme = auth.Scheme(u.PasswordScheme)
		}
	}

	c.mu.Lock()
	c.build = req.Build
	c.pending = state
	c.mu.Unlock()

	sendPasswordChallenge(c, state.scheme, state.salt)
	return nil
}

// handlePasswordResponse finishes the login: verify, mint a token,
// register the session, kick any older session for the same account.
func (s *Server) handlePasswordResponse(ctx context.Context, c *Client, payload []byte) error {
	password, err := decodePasswordResponse(payload)
	if err != nil {
		return err
	}

	c.mu.Lock()
	state := c.pending
	c.mu.Unlock()
	if state == nil {
		return fmt.Errorf("password response without a pending login")
	}
	state.attempts++

	if s.cfg.GuestLoginsAllowed && state.login == guestLogin {
		return s.admitGuest(c)
	}

	u, verifyErr := s.verifyCredentials(ctx, state, password)
	if verifyErr != nil {
		sendMessage(c, protocol.CodeInternalError)
		return nil
	}
	if u == nil && !state.userKnown && s.cfg.AllowNewAccounts && password != "" {
		u, verifyErr = s.registerAccount(ctx, state.login, password, c.IP())
		if verifyErr != nil {
			sendMessage(c, protocol.CodeInternalError)
			return nil
		}
	}
	if u == nil {
		s.auditEvent(ctx, store.AuditEvent{Kind: "login_failed", IP: c.IP(),
			Detail: fmt.Sprintf("login %q attempt %d", state.login, state.attempts)})
		sendMessage(c, protocol.CodeLoginFailedBadUserOrPass)
		if state.attempts >= s.cfg.MaxLoginAttempts {
			slog.Info("login attempt cap reached", "ip", c.IP(), "login", state.login)
			c.CloseAsync()
		}
		return nil
	}

	if u.IsBanned(s.now()) {
		s.auditEvent(ctx, store.AuditEvent{Kind: "login_failed", UserID: u.ID, IP: c.IP(),
			Detail: "account locked"})
		sendMessage(c, protocol.CodeAccountLocked)
		c.CloseAsync()
		return nil
	}

	token, err := auth.MintToken(c.HostIP(), u.ID, s.now(), s.cfg.TokenLifetime)
	if err != nil {
		slog.Error("minting token", "user", u.ID, "error", err)
		sendMessage(c, protocol.CodeInternalError)
		return nil
	}
	s.tokens.Insert(token)

	// Kick-old duplicate policy: the previous session is told why and
	// closed, the new one stands.
	if old := s.sessions.Register(u.ID, c); old != nil {
		slog.Info("duplicate login, kicking old session", "user", u.ID, "old_conn", old.ID())
		sendBlammed(old, protocol.CodeAccountAlreadyLoggedIn)
		old.CloseAsync()
	}
	c.bindUser(u, token)

	u.LastLoginAt = s.now()
	u.LastLoginIP = c.IP()
	if err := s.stores.Users.Update(ctx, u); err != nil {
		slog.Error("recording last login", "user", u.ID, "error", err)
	}
	s.auditEvent(ctx, store.AuditEvent{Kind: "login", UserID: u.ID, IP: c.IP()})
	slog.Info("user logged in", "user", u.ID, "login", u.Login, "client", c.IP())

	if s.cfg.MOTD != "" {
		sendMOTD(c, s.cfg.MOTD)
	}
	sendLoginSuccess(c, u.ID, u.OrderID, token)
	sendRoomList(c, s.rooms.Rooms(), s.hostAddr, s.roomPort)
	return nil
}

// verifyCredentials returns the user on success, nil on a clean
// mismatch (including unknown users) and an error only for storage or
// corrupt-record trouble.
func (s *Server) verifyCredentials(ctx context.Context, state *loginState, password string) (*model.User, error) {
	if !state.userKnown {
		return nil, nil
	}
	u, err := s.stores.Users.GetByLogin(ctx, state.login)
	if err != nil {
		slog.Error("user lookup failed", "login", state.login, "error", err)
		return nil, err
	}
	if u == nil {
		return nil, nil
	}

	ok, err := auth.VerifyPassword(password, auth.PasswordRecord{
		Scheme: auth.Scheme(u.PasswordScheme),
		Hash:   u.PasswordHash,
		Salt:   u.PasswordSalt,
	})
	if err != nil {
		slog.Error("password record unusable", "user", u.ID, "error", err)
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return u, nil
}

// registerAccount creates a record for an unknown login on its first
// password round. The offered password becomes the account password.
func (s *Server) registerAccount(ctx context.Context, login, password, ip string) (*model.User, error) {
	if len(password) > model.MaximumPasswordLength {
		password = password[:model.MaximumPasswordLength]
	}
	rec, err := auth.HashPassword(password, auth.DefaultScheme)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	u := &model.User{
		Login:          login,
		Name:           login,
		PasswordScheme: int16(rec.Scheme),
		PasswordHash:   rec.Hash,
		PasswordSalt:   rec.Salt,
	}
	if err := s.stores.Users.Insert(ctx, u); err != nil {
		return nil, fmt.Errorf("inserting user %q: %w", login, err)
	}
	s.auditEvent(ctx, store.AuditEvent{Kind: "account_created", UserID: u.ID, IP: ip})
	slog.Info("account created", "user", u.ID, "login", login, "client", ip)
	return u, nil
}

// admitGuest issues a user-id-0 token. Guests get no session binding
// and no persistent record.
func (s *Server) admitGuest(c *Client) error {
	token, err := auth.MintToken(c.HostIP(), 0, s.now(), s.cfg.TokenLifetime)
	if err != nil {
		sendMessage(c, protocol.CodeInternalError)
		return nil
	}
	s.tokens.Insert(token)

	guest := &model.User{Name: "Guest", Login: guestLogin}
	c.bindUser(guest, token)
	slog.Info("guest logged in", "client", c.IP())

	if s.cfg.MOTD != "" {
		sendMOTD(c, s.cfg.MOTD)
	}
	sendLoginSuccess(c, 0, 0, token)
	sendRoomList(c, s.rooms.Rooms(), s.hostAddr, s.roomPort)
	return nil
}

// handleVersionControl answers the client's build probe; stale clients
// additionally get the updater URL.
func (s *Server) handleVersionControl(c *Client, payload []byte) error {
	build, err := decodeVersionControl(payload)
	if err != nil {
		return err
	}
	min := uint32(s.cfg.MinimumClientBuild)
	sendVersions(c, min)
	if min > 0 && build < min {
		sendURL(c, "A newer build is required.", s.cfg.UpdateURL)
	}
	return nil
}
