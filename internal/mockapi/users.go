package mockapi

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	errUserNotFound = errors.New("user not found")
	errUserExists   = errors.New("email already registered")
)

// User is an account held by the mock service.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	DateJoined   time.Time `json:"date_joined"`
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// userRepo is an in-memory user table keyed by id with an email index.
type userRepo struct {
	users    map[string]*User
	emailIds map[string]string
	lock     sync.RWMutex
}

func newUserRepo() *userRepo {
	return &userRepo{
		users:    make(map[string]*User),
		emailIds: make(map[string]string),
	}
}

// Create adds a user, failing if the email is taken.
func (ur *userRepo) Create(email, password string, now time.Time) (*User, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	ur.lock.Lock()
	defer ur.lock.Unlock()

	if _, ok := ur.emailIds[email]; ok {
		return nil, errUserExists
	}
	user := &User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
		DateJoined:   now,
	}
	ur.users[user.ID] = user
	ur.emailIds[user.Email] = user.ID
	return user, nil
}

func (ur *userRepo) GetByEmail(email string) (*User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := ur.emailIds[email]
	if !ok {
		return nil, errUserNotFound
	}
	return ur.users[id], nil
}

// Authenticate returns the user only when the password matches.
func (ur *userRepo) Authenticate(email, password string) (*User, bool) {
	user, err := ur.GetByEmail(email)
	if err != nil || !user.IsActive {
		return nil, false
	}
	if !CheckPasswordHash(password, user.PasswordHash) {
		return nil, false
	}
	return user, true
}
