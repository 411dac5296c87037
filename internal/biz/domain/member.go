package domain

import "fmt"

// User is an opaque chat identity (value object). Two users are equal when their IDs are.
type User struct {
	ID   string
	Name string
}

// Is reports whether u and other are the same identity
func (u User) Is(other User) bool {
	return u.ID != "" && u.ID == other.ID
}

// FormatMention formats the @ mention syntax
func (u User) FormatMention() string {
	return "@" + u.Name
}

// FormatDisplay formats for display
func (u User) FormatDisplay() string {
	return fmt.Sprintf("%s (id: %s)", u.Name, u.ID)
}

// Group is a chat group handle with its last known size
type Group struct {
	ID   string
	Name string
	Size int
}

// Has reports whether the user is among members
func Has(members []User, u User) bool {
	for _, m := range members {
		if m.Is(u) {
			return true
		}
	}
	return false
}
