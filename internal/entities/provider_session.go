package entities

import "time"

// ProviderSession is the identity provider's signed-in session, persisted so a
// production session survives restarts. Token columns hold sealed ciphertext.
type ProviderSession struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// SessionKey is the app client id the session was issued to, suffixed
	// with the browser session id for sessions started over HTTP.
	SessionKey string `gorm:"type:varchar(191);not null;uniqueIndex" json:"session_key"`

	Username string `gorm:"type:varchar(255)" json:"username"`

	AccessToken  string `gorm:"type:text;not null" json:"-"`
	IDToken      string `gorm:"type:text" json:"-"`
	RefreshToken string `gorm:"type:text" json:"-"`

	ExpiresAt time.Time `json:"expires_at"`
}

func (ProviderSession) TableName() string {
	return "provider_sessions"
}
