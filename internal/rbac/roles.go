package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

func IsAdmin(role string) bool { return role == RoleAdmin }

// RoleFor resolves the role granted at login. Emails are compared case-insensitively
// by the caller normalizing both sides to lower case.
func RoleFor(email string, adminEmails []string) string {
	for _, a := range adminEmails {
		if a == email {
			return RoleAdmin
		}
	}
	return RoleUser
}
