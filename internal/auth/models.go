package auth

import "time"

// Role is the workflow role an account acts in.
type Role string

const (
	RoleBuyer      Role = "Buyer"
	RoleSeller     Role = "Seller"
	RoleGovernment Role = "Government"
	RoleAdmin      Role = "Admin"
)

// ParseRole accepts the canonical names plus the lower-case forms the
// frontend sends.
func ParseRole(s string) (Role, bool) {
	switch s {
	case "Buyer", "buyer":
		return RoleBuyer, true
	case "Seller", "seller":
		return RoleSeller, true
	case "Government", "government", "Government Authority", "authority":
		return RoleGovernment, true
	case "Admin", "admin":
		return RoleAdmin, true
	}
	return "", false
}

// UserStatus is the account verification state managed by admins.
type UserStatus string

const (
	UserPending   UserStatus = "pending"
	UserVerified  UserStatus = "verified"
	UserSuspended UserStatus = "suspended"
)

func (s UserStatus) Valid() bool {
	switch s {
	case UserPending, UserVerified, UserSuspended:
		return true
	}
	return false
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	Role  Role   `json:"role"`
	Email string `json:"email"`
}

// System is the actor used by background jobs.
var System = Actor{Role: RoleAdmin, Email: "system"}

// User is a registered account.
type User struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	FullName     string     `json:"full_name" gorm:"not null"`
	Email        string     `json:"email" gorm:"not null;uniqueIndex"`
	PasswordHash string     `json:"-" gorm:"not null"`
	Role         Role       `json:"role" gorm:"not null;index"`
	Status       UserStatus `json:"status" gorm:"not null;default:pending"`
	Bio          string     `json:"bio"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// RegisterRequest is the payload for account creation.
type RegisterRequest struct {
	FullName string `json:"full_name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role" binding:"required"`
}

// LoginRequest is the payload for login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the issued bearer token.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user"`
}
