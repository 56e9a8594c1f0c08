package messenger

// Role expresses what the local participant is in the conversation.
// The value is caller-supplied (navigation parameter) and unauthenticated in
// this core; treat it as a hint for need-to-know visibility, not as proof.
type Role string

const (
	RoleArtisan Role = "artisan"
	RoleBuyer   Role = "buyer"
)

// Assistive reports whether the role is allowed to see AI reply suggestions.
// Only the seller side of a conversation holds that capability.
func (r Role) Assistive() bool {
	return r == RoleArtisan
}
