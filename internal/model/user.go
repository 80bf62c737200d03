package model

import "time"

// Role values stored on User.Role.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Plan tags stored on User.SubscriptionPlan and used by the plan catalog.
const (
	PlanFree       = "free"
	PlanPro        = "pro"
	PlanEnterprise = "enterprise"
)

type User struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Email              string    `json:"email"`
	EmailVerified      bool      `json:"email_verified"`
	Role               string    `json:"role"`
	StripeCustomerID   *string   `json:"stripe_customer_id"`
	SubscriptionStatus *string   `json:"subscription_status"`
	SubscriptionPlan   string    `json:"subscription_plan"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type Session struct {
	ID        int64     `json:"id"`
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
