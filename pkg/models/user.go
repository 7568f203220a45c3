package models

// User is the authenticated identity as returned by /api/auth/me.
type User struct {
	ID                   UserID    `json:"id" cbor:"id"`
	Email                string    `json:"email" cbor:"email"`
	Name                 string    `json:"name,omitempty" cbor:"name,omitempty"`
	ProfilePicture       string    `json:"profile_picture,omitempty" cbor:"profile_picture,omitempty"`
	Theme                string    `json:"theme,omitempty" cbor:"theme,omitempty"`
	Language             string    `json:"language,omitempty" cbor:"language,omitempty"`
	EmailNotifications   *bool     `json:"email_notifications,omitempty" cbor:"email_notifications,omitempty"`
	BrowserNotifications *bool     `json:"browser_notifications,omitempty" cbor:"browser_notifications,omitempty"`
	IsActive             bool      `json:"is_active,omitempty" cbor:"is_active,omitempty"`
	CreatedAt            Timestamp `json:"created_at" cbor:"created_at"`
	UpdatedAt            Timestamp `json:"updated_at" cbor:"updated_at"`
}

// UserPatch is a partial identity update. Nil fields are left untouched.
type UserPatch struct {
	Name                 *string
	Email                *string
	ProfilePicture       *string
	Theme                *string
	Language             *string
	EmailNotifications   *bool
	BrowserNotifications *bool
	UpdatedAt            *Timestamp
}

// Apply returns a copy of u with the non-nil fields of p merged in.
func (p UserPatch) Apply(u User) User {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.ProfilePicture != nil {
		u.ProfilePicture = *p.ProfilePicture
	}
	if p.Theme != nil {
		u.Theme = *p.Theme
	}
	if p.Language != nil {
		u.Language = *p.Language
	}
	if p.EmailNotifications != nil {
		v := *p.EmailNotifications
		u.EmailNotifications = &v
	}
	if p.BrowserNotifications != nil {
		v := *p.BrowserNotifications
		u.BrowserNotifications = &v
	}
	if p.UpdatedAt != nil {
		u.UpdatedAt = *p.UpdatedAt
	}
	return u
}

// PatchFromUser builds a patch carrying every profile and preference field of u.
func PatchFromUser(u User) UserPatch {
	p := UserPatch{
		Name:           &u.Name,
		Email:          &u.Email,
		ProfilePicture: &u.ProfilePicture,
		Theme:          &u.Theme,
		Language:       &u.Language,
	}
	if u.EmailNotifications != nil {
		p.EmailNotifications = u.EmailNotifications
	}
	if u.BrowserNotifications != nil {
		p.BrowserNotifications = u.BrowserNotifications
	}
	if !u.UpdatedAt.IsZero() {
		ts := u.UpdatedAt
		p.UpdatedAt = &ts
	}
	return p
}

// Credentials is the body of the login request.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Registration is the body of the register request.
type Registration struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name,omitempty"`
}

type ProfileUpdate struct {
	Name           *string `json:"name,omitempty"`
	Email          *string `json:"email,omitempty" validate:"omitempty,email"`
	ProfilePicture *string `json:"profile_picture,omitempty"`
}

type PreferencesUpdate struct {
	Theme                *string `json:"theme,omitempty" validate:"omitempty,oneof=light dark system"`
	Language             *string `json:"language,omitempty" validate:"omitempty,oneof=fr en"`
	EmailNotifications   *bool   `json:"email_notifications,omitempty"`
	BrowserNotifications *bool   `json:"browser_notifications,omitempty"`
}

type PasswordUpdate struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

type AccountDelete struct {
	Password string `json:"password" validate:"required"`
}

// UserResponse is the envelope returned by the profile and preferences endpoints.
type UserResponse struct {
	Message string `json:"message"`
	User    User   `json:"user"`
}

// MessageResponse is the envelope returned by endpoints without a payload.
type MessageResponse struct {
	Message string `json:"message"`
}
