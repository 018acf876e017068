package model

import "time"

// Staff roles.  Administrators manage everything; Managers manage the
// catalogue and other Managers but never see Administrators.
const (
	RoleAdministrator = "Administrator"
	RoleManager       = "Manager"
)

// User represents a staff account as stored in the `users` table.
// PasswordHash is a bcrypt digest and is never serialized.
//
// Fields:
//  ID           – primary key identifier.
//  Username     – unique login name.
//  PasswordHash – bcrypt hashed password.
//  Role         – Administrator or Manager.
//  FirstName    – given name.
//  LastName     – family name.
//  Email        – optional contact address.
//  Phone        – optional phone number.
//  Address      – optional postal address.
//  CreatedAt    – timestamp of creation.
type User struct {
	ID           uint64    `json:"id"`         // users.id
	Username     string    `json:"username"`   // users.username
	PasswordHash string    `json:"-"`          // users.password_hash
	Role         string    `json:"role"`       // users.role
	FirstName    string    `json:"first_name"` // users.first_name
	LastName     string    `json:"last_name"`  // users.last_name
	Email        string    `json:"email"`      // users.email
	Phone        string    `json:"phone"`      // users.phone
	Address      string    `json:"address"`    // users.address
	CreatedAt    time.Time `json:"created_at"` // users.created_at
}

// ValidRole reports whether r is one of the known staff roles.
func ValidRole(r string) bool {
	return r == RoleAdministrator || r == RoleManager
}
