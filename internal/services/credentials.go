package services

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"imagesearch/internal/models"
)

// CredentialStore checks passwords and resolves usernames to profiles.
type CredentialStore interface {
	Authenticate(username, password string) (*models.User, bool)
	Lookup(username string) (*models.User, bool)
}

// UserEntry is one configured account. PasswordHash, when set, is a bcrypt
// hash and wins over Password.
type UserEntry struct {
	Username     string
	Password     string
	PasswordHash string
	FullName     string
	Email        string
}

type staticUser struct {
	profile models.User
	hash    []byte
}

// StaticCredentials is a fixed in-memory user table.
type StaticCredentials struct {
	users     map[string]staticUser
	dummyHash []byte
}

// NewStaticCredentials builds the table from configured users. Plain
// passwords are hashed on load at the highest cost among the configured
// hashes, never below bcrypt.DefaultCost, and unknown usernames are checked
// against a dummy hash of the same cost, so every login runs one bcrypt
// comparison.
func NewStaticCredentials(users []UserEntry) (*StaticCredentials, error) {
	cost := bcrypt.DefaultCost
	for _, u := range users {
		if u.PasswordHash == "" {
			continue
		}
		c, err := bcrypt.Cost([]byte(u.PasswordHash))
		if err != nil {
			return nil, fmt.Errorf("user %q: invalid password hash: %w", u.Username, err)
		}
		cost = max(cost, c)
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("dummy-password"), cost)
	if err != nil {
		return nil, fmt.Errorf("dummy hash: %w", err)
	}
	c := &StaticCredentials{
		users:     make(map[string]staticUser, len(users)),
		dummyHash: dummy,
	}
	for _, u := range users {
		if _, dup := c.users[u.Username]; dup {
			return nil, fmt.Errorf("duplicate user %q", u.Username)
		}
		hash := []byte(u.PasswordHash)
		if u.PasswordHash == "" {
			if hash, err = bcrypt.GenerateFromPassword([]byte(u.Password), cost); err != nil {
				return nil, fmt.Errorf("user %q: hash password: %w", u.Username, err)
			}
		}
		c.users[u.Username] = staticUser{
			profile: models.User{
				Username: u.Username,
				FullName: u.FullName,
				Email:    u.Email,
			},
			hash: hash,
		}
	}
	return c, nil
}

func (c *StaticCredentials) Authenticate(username, password string) (*models.User, bool) {
	u, ok := c.users[username]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(c.dummyHash, []byte(password))
		return nil, false
	}
	if bcrypt.CompareHashAndPassword(u.hash, []byte(password)) != nil {
		return nil, false
	}
	p := u.profile
	return &p, true
}

func (c *StaticCredentials) Lookup(username string) (*models.User, bool) {
	u, ok := c.users[username]
	if !ok {
		return nil, false
	}
	p := u.profile
	return &p, true
}
