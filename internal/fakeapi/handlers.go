package fakeapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/collabnotes/collabnotes.go/pkg/models"
)

// Version is reported by the root document.
const Version = "1.0.0"

func (s *Server) routes() *mux.Router {
	router := mux.NewRouter()
	router.Use(s.failureMiddleware)

	router.HandleFunc("/", s.handleRoot).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()

	// Auth routes
	api.HandleFunc("/auth/register", s.handleRegister).Methods("POST")
	api.HandleFunc("/auth/login", s.handleLogin).Methods("POST")
	api.HandleFunc("/auth/me", s.withUser(s.handleMe)).Methods("GET")

	// Note routes
	api.HandleFunc("/notes", s.withUser(s.handleListNotes)).Methods("GET")
	api.HandleFunc("/notes", s.withUser(s.handleCreateNote)).Methods("POST")
	api.HandleFunc("/notes/{id}", s.withUser(s.handleGetNote)).Methods("GET")
	api.HandleFunc("/notes/{id}", s.withUser(s.handleUpdateNote)).Methods("PUT")
	api.HandleFunc("/notes/{id}", s.withUser(s.handleDeleteNote)).Methods("DELETE")
	api.HandleFunc("/notes/{id}/share", s.withUser(s.handleShareNote)).Methods("POST")
	api.HandleFunc("/notes/{id}/public-link", s.withUser(s.handleCreatePublicLink)).Methods("POST")
	api.HandleFunc("/notes/{id}/public-link", s.withUser(s.handleRevokePublicLink)).Methods("DELETE")
	api.HandleFunc("/public/notes/{token}", s.handlePublicNote).Methods("GET")

	// User settings routes
	api.HandleFunc("/users/me", s.withUser(s.handleMe)).Methods("GET")
	api.HandleFunc("/users/profile", s.withUser(s.handleUpdateProfile)).Methods("PUT")
	api.HandleFunc("/users/password", s.withUser(s.handleUpdatePassword)).Methods("PUT")
	api.HandleFunc("/users/preferences", s.withUser(s.handleUpdatePreferences)).Methods("PUT")
	api.HandleFunc("/users/account", s.withUser(s.handleDeleteAccount)).Methods("DELETE")

	return router
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_, _ = w.Write(response)
	}
}

func respondError(w http.ResponseWriter, status int, detail string) {
	respondErrorCode(w, status, detail, "")
}

func respondErrorCode(w http.ResponseWriter, status int, detail, code string) {
	body := map[string]string{"detail": detail}
	if code != "" {
		body["code"] = code
	}
	respondJSON(w, status, body)
}

func respondAPIError(w http.ResponseWriter, err *apiError) {
	respondErrorCode(w, err.status, err.detail, err.code)
}

// fieldError mirrors the request validation errors of the real API.
type fieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

func respondFieldError(w http.ResponseWriter, field, msg string) {
	respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"detail": []fieldError{{Loc: []string{"body", field}, Msg: msg, Type: "value_error"}},
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusUnprocessableEntity, "Invalid request payload")
		return false
	}
	return true
}

func noteID(w http.ResponseWriter, r *http.Request) (models.NoteID, bool) {
	id, err := models.ParseNoteID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "Invalid note ID")
		return 0, false
	}
	return id, true
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Welcome to CollabNotes API",
		"version": Version,
		"docs":    "/docs",
	})
}

// Auth handlers

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req models.Registration
	if !decodeBody(w, r, &req) {
		return
	}
	if !strings.Contains(req.Email, "@") {
		respondFieldError(w, "email", "value is not a valid email address")
		return
	}
	if req.Password == "" {
		respondFieldError(w, "password", "field required")
		return
	}
	user, err := s.AddUser(req.Email, req.Password, req.Name)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Email already registered")
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.Credentials
	if !decodeBody(w, r, &req) {
		return
	}
	token, err := s.Login(req.Email, req.Password)
	if err != nil {
		w.Header().Set("WWW-Authenticate", "Bearer")
		respondError(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}

	s.mu.RLock()
	user := s.accounts[s.byEmail[normalizeEmail(req.Email)]].user
	s.mu.RUnlock()

	respondJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "bearer",
		"user":         user,
	})
}

func (s *Server) handleMe(w http.ResponseWriter, _ *http.Request, user models.User) {
	respondJSON(w, http.StatusOK, user)
}

// Note handlers

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request, user models.User) {
	q := r.URL.Query()
	var visibility models.Visibility
	if v := q.Get("visibility"); v != "" {
		parsed, err := models.ParseVisibility(v)
		if err != nil {
			respondFieldError(w, "visibility", "Input should be 'PRIVATE', 'SHARED' or 'PUBLIC'")
			return
		}
		visibility = parsed
	}
	notes := s.listNotes(user, q.Get("search"), visibility, q["tags"])
	if notes == nil {
		notes = []models.Note{}
	}
	respondJSON(w, http.StatusOK, notes)
}

func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request, user models.User) {
	var draft models.NoteDraft
	if !decodeBody(w, r, &draft) {
		return
	}
	if draft.Title == "" {
		respondFieldError(w, "title", "field required")
		return
	}
	if draft.Visibility != "" && !draft.Visibility.Valid() {
		respondFieldError(w, "visibility", "Input should be 'PRIVATE', 'SHARED' or 'PUBLIC'")
		return
	}
	respondJSON(w, http.StatusCreated, s.AddNote(user.ID, draft))
}

func (s *Server) handleGetNote(w http.ResponseWriter, r *http.Request, user models.User) {
	id, ok := noteID(w, r)
	if !ok {
		return
	}
	s.mu.RLock()
	rec, apiErr := s.lookup(id, user)
	var note models.Note
	if apiErr == nil {
		note = s.view(rec)
	}
	s.mu.RUnlock()
	if apiErr != nil {
		respondAPIError(w, apiErr)
		return
	}
	respondJSON(w, http.StatusOK, note)
}

func (s *Server) handleUpdateNote(w http.ResponseWriter, r *http.Request, user models.User) {
	id, ok := noteID(w, r)
	if !ok {
		return
	}
	var draft models.NoteDraft
	if !decodeBody(w, r, &draft) {
		return
	}
	note, apiErr := s.updateNote(id, user, draft)
	if apiErr != nil {
		respondAPIError(w, apiErr)
		return
	}
	respondJSON(w, http.StatusOK, note)
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request, user models.User) {
	id, ok := noteID(w, r)
	if !ok {
		return
	}
	if apiErr := s.deleteNote(id, user); apiErr != nil {
		respondAPIError(w, apiErr)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleShareNote(w http.ResponseWriter, r *http.Request, user models.User) {
	id, ok := noteID(w, r)
	if !ok {
		return
	}
	var req models.ShareRequest
	if !decodeBody(w, r, &req) {
		return
	}
	note, apiErr := s.shareNote(id, user, req.UserEmail)
	if apiErr != nil {
		respondAPIError(w, apiErr)
		return
	}
	respondJSON(w, http.StatusOK, note)
}

func (s *Server) handleCreatePublicLink(w http.ResponseWriter, r *http.Request, user models.User) {
	id, ok := noteID(w, r)
	if !ok {
		return
	}
	link, apiErr := s.createPublicLink(id, user)
	if apiErr != nil {
		respondAPIError(w, apiErr)
		return
	}
	respondJSON(w, http.StatusOK, link)
}

func (s *Server) handleRevokePublicLink(w http.ResponseWriter, r *http.Request, user models.User) {
	id, ok := noteID(w, r)
	if !ok {
		return
	}
	if apiErr := s.revokePublicLink(id, user); apiErr != nil {
		respondAPIError(w, apiErr)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePublicNote(w http.ResponseWriter, r *http.Request) {
	note, apiErr := s.publicNote(mux.Vars(r)["token"])
	if apiErr != nil {
		respondAPIError(w, apiErr)
		return
	}
	respondJSON(w, http.StatusOK, note)
}

// User settings handlers

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request, user models.User) {
	var req models.ProfileUpdate
	if !decodeBody(w, r, &req) {
		return
	}

	s.mu.Lock()
	acct := s.accounts[user.ID]
	if req.Email != nil && normalizeEmail(*req.Email) != normalizeEmail(acct.user.Email) {
		if _, taken := s.byEmail[normalizeEmail(*req.Email)]; taken {
			s.mu.Unlock()
			respondError(w, http.StatusBadRequest, "Email already registered")
			return
		}
		delete(s.byEmail, normalizeEmail(acct.user.Email))
		s.byEmail[normalizeEmail(*req.Email)] = user.ID
	}
	now := models.NewTimestamp(s.now())
	acct.user = models.UserPatch{
		Name:           req.Name,
		Email:          req.Email,
		ProfilePicture: req.ProfilePicture,
		UpdatedAt:      &now,
	}.Apply(acct.user)
	updated := acct.user
	s.mu.Unlock()

	respondJSON(w, http.StatusOK, models.UserResponse{Message: "Profile updated successfully", User: updated})
}

func (s *Server) handleUpdatePassword(w http.ResponseWriter, r *http.Request, user models.User) {
	var req models.PasswordUpdate
	if !decodeBody(w, r, &req) {
		return
	}

	s.mu.RLock()
	hash := s.accounts[user.ID].hash
	s.mu.RUnlock()
	if !checkPassword(hash, req.CurrentPassword) {
		respondError(w, http.StatusBadRequest, "Current password is incorrect")
		return
	}
	newHash, err := hashPassword(req.NewPassword)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to update password")
		return
	}

	s.mu.Lock()
	s.accounts[user.ID].hash = newHash
	s.mu.Unlock()

	respondJSON(w, http.StatusOK, models.MessageResponse{Message: "Password updated successfully"})
}

func (s *Server) handleUpdatePreferences(w http.ResponseWriter, r *http.Request, user models.User) {
	var req models.PreferencesUpdate
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Theme != nil && *req.Theme != "light" && *req.Theme != "dark" && *req.Theme != "system" {
		respondError(w, http.StatusBadRequest, "Invalid theme value")
		return
	}
	if req.Language != nil && *req.Language != "fr" && *req.Language != "en" {
		respondError(w, http.StatusBadRequest, "Invalid language value")
		return
	}

	s.mu.Lock()
	acct := s.accounts[user.ID]
	now := models.NewTimestamp(s.now())
	acct.user = models.UserPatch{
		Theme:                req.Theme,
		Language:             req.Language,
		EmailNotifications:   req.EmailNotifications,
		BrowserNotifications: req.BrowserNotifications,
		UpdatedAt:            &now,
	}.Apply(acct.user)
	updated := acct.user
	s.mu.Unlock()

	respondJSON(w, http.StatusOK, models.UserResponse{Message: "Preferences updated successfully", User: updated})
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request, user models.User) {
	var req models.AccountDelete
	if !decodeBody(w, r, &req) {
		return
	}

	s.mu.RLock()
	hash := s.accounts[user.ID].hash
	s.mu.RUnlock()
	if !checkPassword(hash, req.Password) {
		respondError(w, http.StatusBadRequest, "Password is incorrect")
		return
	}

	s.deleteAccount(user)
	respondJSON(w, http.StatusOK, models.MessageResponse{Message: "Account deleted successfully"})
}
