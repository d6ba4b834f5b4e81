package users

import "time"

type User struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	FullName   string     `json:"fullName"`
	Role       string     `json:"role"`
	Department string     `json:"department"`
	IsActive   bool       `json:"isActive"`
	MFAEnabled bool       `json:"mfaEnabled"`
	LastLogin  *time.Time `json:"lastLogin,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

type CreateInput struct {
	Email      string
	Password   string
	FullName   string
	Role       string
	Department string
}

type Filter struct {
	Role       string
	Department string
	ActiveOnly bool
}

type Invitation struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	FullName       string     `json:"fullName"`
	CorporateEmail string     `json:"corporateEmail"`
	Department     string     `json:"department"`
	InvitedBy      string     `json:"invitedBy"`
	IsActivated    bool       `json:"isActivated"`
	ActivatedAt    *time.Time `json:"activatedAt,omitempty"`
	UserID         *string    `json:"userId,omitempty"`
	ExpiresAt      time.Time  `json:"expiresAt"`
	CreatedAt      time.Time  `json:"createdAt"`
}

type InviteInput struct {
	Email      string
	FullName   string
	Department string
}
