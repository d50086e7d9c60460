package entities

import "time"

type AuthOperation string

const (
	AuthOpSignUp           AuthOperation = "sign_up"
	AuthOpConfirmSignUp    AuthOperation = "confirm_sign_up"
	AuthOpSignIn           AuthOperation = "sign_in"
	AuthOpSignInWithGoogle AuthOperation = "sign_in_with_google"
	AuthOpCompleteRedirect AuthOperation = "complete_redirect"
	AuthOpSignOut          AuthOperation = "sign_out"
)

type AuthStatus string

const (
	AuthStatusSuccess AuthStatus = "success"
	AuthStatusFailed  AuthStatus = "failed"
)

// AuthEvent records one state-changing facade call. Query operations are not recorded.
type AuthEvent struct {
	ID            uint          `gorm:"primaryKey" json:"id"`
	CorrelationID string        `gorm:"size:36;index" json:"correlation_id"`
	Operation     AuthOperation `gorm:"index;size:40" json:"operation"`
	Mode          string        `gorm:"size:20" json:"mode"`
	Email         string        `gorm:"size:255;index" json:"email,omitempty"`
	Status        AuthStatus    `gorm:"size:20" json:"status"`
	ErrorMsg      string        `gorm:"size:500" json:"error_msg,omitempty"`
	DurationMs    int64         `json:"duration_ms"`
	CreatedAt     time.Time     `gorm:"index" json:"created_at"`
}

func (AuthEvent) TableName() string {
	return "auth_events"
}
