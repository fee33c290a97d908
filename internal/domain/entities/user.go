package entities

// User is the authenticated caller, resolved from a session token
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// HasRole reports whether the user holds role. The platform service role
// is accepted everywhere.
func (u *User) HasRole(role string) bool {
	if u == nil {
		return false
	}
	return u.Role == role || u.Role == "service_role"
}
