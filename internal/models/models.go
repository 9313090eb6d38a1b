package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is the internal identity anchor. Rows are never deleted by the
// application; external identities and sessions hang off of it.
type User struct {
	ID          string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	ExternalID  string    `gorm:"type:varchar(191);uniqueIndex;not null" json:"external_id"`
	DisplayName string    `gorm:"type:varchar(191);not null" json:"display_name"`
	Email       *string   `gorm:"type:varchar(191);index" json:"email,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

func (User) TableName() string { return "users" }

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// UserIdentity is one external IdP binding. (provider, provider_sub) is the
// sole lookup key for returning users; one User may own many identities.
type UserIdentity struct {
	ID          string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID      string    `gorm:"type:varchar(36);not null;index" json:"user_id"`
	Provider    string    `gorm:"type:varchar(32);not null;uniqueIndex:uq_identity_provider_sub,priority:1" json:"provider"`
	ProviderSub string    `gorm:"type:varchar(191);not null;uniqueIndex:uq_identity_provider_sub,priority:2" json:"provider_sub"`
	Email       *string   `gorm:"type:varchar(191)" json:"email,omitempty"`
	DisplayName *string   `gorm:"type:varchar(191)" json:"display_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	LastUsedAt  time.Time `json:"last_used_at"`

	User *User `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"-"`
}

func (UserIdentity) TableName() string { return "user_identities" }

func (ui *UserIdentity) BeforeCreate(tx *gorm.DB) error {
	if ui.ID == "" {
		ui.ID = uuid.NewString()
	}
	if ui.LastUsedAt.IsZero() {
		ui.LastUsedAt = time.Now().UTC()
	}
	return nil
}

// Session is a conversational session scoped to one user. ExternalID is the
// client-supplied session token, unique per user.
type Session struct {
	ID         string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID     string    `gorm:"type:varchar(36);not null;uniqueIndex:uq_session_user_external,priority:1" json:"user_id"`
	ExternalID string    `gorm:"type:varchar(191);not null;uniqueIndex:uq_session_user_external,priority:2" json:"external_id"`
	Title      string    `gorm:"type:varchar(191)" json:"title"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
	IsActive   bool      `gorm:"not null;default:true" json:"is_active"`

	User *User `gorm:"foreignKey:UserID;references:ID" json:"-"`
}

func (Session) TableName() string { return "sessions" }

func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.LastSeenAt.IsZero() {
		s.LastSeenAt = time.Now().UTC()
	}
	return nil
}

// RouterRequest is one logical "ask the router" event; it scopes the
// invocations produced while answering it. Immutable after creation.
type RouterRequest struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID    string    `gorm:"type:varchar(36);not null;index" json:"user_id"`
	SessionID string    `gorm:"type:varchar(36);not null;index" json:"session_id"`
	Profile   string    `gorm:"type:varchar(32)" json:"profile"`
	CreatedAt time.Time `json:"created_at"`
}

func (RouterRequest) TableName() string { return "ai_router_requests" }

func (r *RouterRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// Invocation is one concrete call to one provider/model. Appended exactly
// once per adapter call and never mutated; TokensTotal is in+out at write
// time.
type Invocation struct {
	ID              string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID          string    `gorm:"type:varchar(36);not null;index" json:"user_id"`
	SessionID       string    `gorm:"type:varchar(36);not null;index" json:"session_id"`
	RouterRequestID *string   `gorm:"type:varchar(36);index" json:"router_request_id,omitempty"`
	Provider        string    `gorm:"type:varchar(32);not null" json:"provider"`
	Model           string    `gorm:"type:varchar(64);not null" json:"model"`
	Profile         string    `gorm:"type:varchar(32);not null" json:"profile"`
	Confidence      float64   `gorm:"type:decimal(4,3)" json:"confidence"`
	TokensIn        int       `json:"tokens_in"`
	TokensOut       int       `json:"tokens_out"`
	TokensTotal     int       `json:"tokens_total"`
	CostUSD         float64   `gorm:"type:decimal(10,6)" json:"cost_usd"`
	LatencyMs       int       `json:"latency_ms"`
	Success         bool      `gorm:"not null" json:"success"`
	ErrorCode       *string   `gorm:"type:varchar(128)" json:"error_code,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func (Invocation) TableName() string { return "ai_invocations" }

func (inv *Invocation) BeforeCreate(tx *gorm.DB) error {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	inv.TokensTotal = inv.TokensIn + inv.TokensOut
	return nil
}

type RouterJobStatus string

const (
	RouterJobQueued    RouterJobStatus = "queued"
	RouterJobRunning   RouterJobStatus = "running"
	RouterJobSucceeded RouterJobStatus = "succeeded"
	RouterJobFailed    RouterJobStatus = "failed"
)

// RouterJob is an asynchronously executed router chat request. The request
// body is stored verbatim and replayed by the worker.
type RouterJob struct {
	ID string `gorm:"primaryKey;size:26" json:"id"` // ULID length

	UserID    string `gorm:"type:varchar(36);index;not null;uniqueIndex:uq_router_job_idempo,priority:1" json:"user_id"`
	SessionID string `gorm:"type:varchar(36);index;not null" json:"session_id"`

	Payload string `gorm:"type:text;not null" json:"-"`

	IdempotencyKey *string `gorm:"type:varchar(128);uniqueIndex:uq_router_job_idempo,priority:2" json:"idempotency_key,omitempty"`

	Status RouterJobStatus `gorm:"type:varchar(16);index;not null" json:"status"`

	// Filled when succeeded
	ResultRequestID *string `gorm:"type:varchar(36);index" json:"result_request_id,omitempty"`
	FinalContent    *string `gorm:"type:text" json:"final_content,omitempty"`

	// Filled when failed
	Error *string `gorm:"type:text" json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (RouterJob) TableName() string { return "ai_router_jobs" }

// LocalCredential holds the bcrypt hash for password-backed "local"
// identities. One row per registered email.
type LocalCredential struct {
	ID           string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID       string    `gorm:"type:varchar(36);not null;index" json:"user_id"`
	Email        string    `gorm:"type:varchar(191);not null;uniqueIndex" json:"email"`
	PasswordHash string    `gorm:"type:varchar(191);not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`

	User *User `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"-"`
}

func (LocalCredential) TableName() string { return "local_credentials" }

func (lc *LocalCredential) BeforeCreate(tx *gorm.DB) error {
	if lc.ID == "" {
		lc.ID = uuid.NewString()
	}
	return nil
}
