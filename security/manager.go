package security

import (
	"crypto/subtle"
	"sync"

	"github.com/ojas-mohbansi/my-own-os/log"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

var (
	ErrBadCredentials = errors.New("invalid username or password")
	ErrUserExists     = errors.New("user already exists")
	ErrUserTableFull  = errors.New("user table is full")
	ErrAuthFailed     = errors.New("authentication failed")
	ErrNotLoggedIn    = errors.New("no authenticated user")
)

// Manager is the identity provider for the whole system. It owns the
// fixed-capacity user table, the current-principal pointer and the
// audit log. Process-wide, initialized once at boot.
type Manager struct {
	mu sync.Mutex

	users     [MaxUsers]User
	userCount int

	current        *User
	sessionCounter uint32

	audit auditLog
}

func NewManager() *Manager {
	m := &Manager{}

	m.logEvent("SECURITY_INIT", "security subsystem initialized", nil)

	return m
}

func hashPassword(password string) [32]byte {
	return blake2b.Sum256([]byte(password))
}

func (m *Manager) CreateUser(name, password string, privilege PrivilegeLevel) (*User, error) {
	if name == "" || password == "" {
		return nil, ErrBadCredentials
	}

	if len(name) >= MaxUsernameLength || len(password) >= MaxPasswordLength {
		return nil, ErrBadCredentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.findUser(name) != nil {
		return nil, errors.Wrapf(ErrUserExists, "username: %s", name)
	}

	if m.userCount >= MaxUsers {
		return nil, ErrUserTableFull
	}

	user := &m.users[m.userCount]
	m.userCount++

	user.Name = name
	user.credHash = hashPassword(password)
	user.Privilege = privilege
	user.Active = true
	user.SessionID = 0

	m.logEvent("USER_CREATED", name, nil)

	return user, nil
}

// Authenticate verifies credentials and, on success, makes the matched
// user the current principal.
func (m *Manager) Authenticate(name, password string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user := m.findUser(name)
	if user == nil || !user.Active {
		m.logEvent("AUTH_FAILED", name, nil)
		return nil, ErrAuthFailed
	}

	provided := hashPassword(password)
	if subtle.ConstantTimeCompare(user.credHash[:], provided[:]) != 1 {
		m.logEvent("AUTH_FAILED", name, nil)
		return nil, ErrAuthFailed
	}

	m.sessionCounter++
	user.SessionID = m.sessionCounter
	m.current = user

	m.logEvent("USER_LOGIN", name, user)
	log.L.Debug("user-login", "name", name, "session", user.SessionID)

	return user, nil
}

func (m *Manager) Logout(user *User) error {
	if user == nil {
		return ErrNotLoggedIn
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == user {
		m.current = nil
	}

	user.SessionID = 0

	m.logEvent("USER_LOGOUT", user.Name, user)

	return nil
}

// CurrentUser returns the current principal, or nil when nobody is
// logged in.
func (m *Manager) CurrentUser() *User {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.current
}

// CheckPermission reports whether user holds at least the required
// privilege level.
func (m *Manager) CheckPermission(user *User, required PrivilegeLevel) bool {
	if user == nil || !user.Active {
		return false
	}

	return user.Privilege >= required
}

func (m *Manager) Users() []User {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]User, m.userCount)
	copy(out, m.users[:m.userCount])

	return out
}

// findUser must be called with mu held.
func (m *Manager) findUser(name string) *User {
	for i := 0; i < m.userCount; i++ {
		if m.users[i].Name == name {
			return &m.users[i]
		}
	}

	return nil
}
