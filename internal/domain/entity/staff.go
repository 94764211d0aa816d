package entity

// RoleAdmin is the role name of administrators. Every other role is a department.
const RoleAdmin = "Admin"

// Staff is a user whose timeline the engine manages.
type Staff struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	Department string `json:"department"`
	IsActive   bool   `json:"is_active"`
	LarkOpenID string `json:"-"`
}

// IsAdmin reports whether the staff member holds the admin role.
func (s *Staff) IsAdmin() bool {
	return s.Department == RoleAdmin
}

// Actor identifies who triggered an operation. A nil *Actor means the system.
type Actor struct {
	UserID     int64
	Name       string
	Department string
}

// IsAdmin reports whether the actor may act on other staff.
func (a *Actor) IsAdmin() bool {
	return a != nil && a.Department == RoleAdmin
}

// CreatedBy returns the value recorded in tasks.created_by.
func (a *Actor) CreatedBy() *int64 {
	if a == nil {
		return nil
	}
	id := a.UserID
	return &id
}

// ActorFromStaff builds an actor for an authenticated staff member.
func ActorFromStaff(s *Staff) *Actor {
	return &Actor{UserID: s.ID, Name: s.Name, Department: s.Department}
}
