package fakeapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/collabnotes/collabnotes.go/pkg/models"
)

var errInvalidToken = errors.New("could not validate credentials")

type tokenClaims struct {
	Epoch int `json:"epoch"`
	jwt.RegisteredClaims
}

// IssueToken signs a bearer token for the user.
func (s *Server) IssueToken(id models.UserID) (string, error) {
	s.mu.RLock()
	epoch := s.epoch
	s.mu.RUnlock()

	now := s.now()
	claims := tokenClaims{
		Epoch: epoch,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.String(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// parseToken returns the user a bearer token belongs to.
func (s *Server) parseToken(raw string) (models.UserID, error) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return 0, errInvalidToken
	}

	s.mu.RLock()
	epoch := s.epoch
	s.mu.RUnlock()
	if claims.Epoch != epoch {
		return 0, errInvalidToken
	}

	id, err := models.ParseUserID(claims.Subject)
	if err != nil {
		return 0, errInvalidToken
	}
	return id, nil
}

// authenticate resolves the bearer token of r to a user snapshot.
func (s *Server) authenticate(r *http.Request) (models.User, error) {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return models.User{}, errInvalidToken
	}
	id, err := s.parseToken(raw)
	if err != nil {
		return models.User{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.accounts[id]
	if !ok || !acct.user.IsActive {
		return models.User{}, errInvalidToken
	}
	return acct.user, nil
}

// withUser wraps handlers of authenticated routes.
func (s *Server) withUser(h func(http.ResponseWriter, *http.Request, models.User)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := s.authenticate(r)
		if err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			respondError(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		h(w, r, user)
	}
}

func hashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
}

func checkPassword(hash []byte, password string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}

// AddUser registers an account directly, bypassing the HTTP API.
func (s *Server) AddUser(email, password, name string) (models.User, error) {
	hash, err := hashPassword(password)
	if err != nil {
		return models.User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := normalizeEmail(email)
	if _, exists := s.byEmail[key]; exists {
		return models.User{}, fmt.Errorf("email %s already registered", email)
	}
	s.nextUser++
	on, off := true, false
	now := models.NewTimestamp(s.now())
	user := models.User{
		ID:                   models.UserID(s.nextUser),
		Email:                strings.TrimSpace(email),
		Name:                 name,
		Theme:                "light",
		Language:             "en",
		EmailNotifications:   &on,
		BrowserNotifications: &off,
		IsActive:             true,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	s.accounts[user.ID] = &account{user: user, hash: hash}
	s.byEmail[key] = user.ID
	return user, nil
}

// Login authenticates directly and returns a token.
func (s *Server) Login(email, password string) (string, error) {
	s.mu.RLock()
	id, ok := s.byEmail[normalizeEmail(email)]
	var acct *account
	if ok {
		acct = s.accounts[id]
	}
	s.mu.RUnlock()
	if acct == nil || !checkPassword(acct.hash, password) {
		return "", errors.New("incorrect email or password")
	}
	return s.IssueToken(id)
}

// User returns the stored user.
func (s *Server) User(id models.UserID) (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.accounts[id]
	if !ok {
		return models.User{}, false
	}
	return acct.user, true
}
