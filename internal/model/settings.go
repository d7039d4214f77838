package model

import "time"

// MaxContactPhoneLength bounds the contact phone number.
const MaxContactPhoneLength = 20

// UserSettings holds a user's privacy and contact preferences.
// ShowProfile and ProfileVisibility are display preferences for clients;
// the server stores them but does not filter on them.
type UserSettings struct {
	UserID             string     `json:"-" db:"user_id"`
	ShowEmail          bool       `json:"show_email" db:"show_email"`
	ShowProfile        bool       `json:"show_profile" db:"show_profile"`
	AllowSharing       bool       `json:"allow_sharing" db:"allow_sharing"`
	ProfileVisibility  bool       `json:"profile_visibility" db:"profile_visibility"`
	ContactInformation bool       `json:"contact_information" db:"contact_information"`
	ContactEmail       string     `json:"contact_email" db:"contact_email"`
	ContactPhone       string     `json:"contact_phone" db:"contact_phone"`
	UpdatedAt          *time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

// DefaultSettings returns the settings of a user who never saved any.
func DefaultSettings(userID string) *UserSettings {
	return &UserSettings{
		UserID:       userID,
		ShowProfile:  true,
		AllowSharing: true,
	}
}

// Contact is what a user lets their lending counterparts see.
type Contact struct {
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// PublicContact returns the contact details s allows to be shown, or nil
// when there are none. accountEmail is used when ShowEmail is set and no
// separate contact email is shared.
func (s *UserSettings) PublicContact(accountEmail string) *Contact {
	c := &Contact{}
	if s.ContactInformation {
		c.Email = s.ContactEmail
		c.Phone = s.ContactPhone
	}
	if c.Email == "" && s.ShowEmail {
		c.Email = accountEmail
	}
	if c.Email == "" && c.Phone == "" {
		return nil
	}
	return c
}
