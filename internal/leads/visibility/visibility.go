// Package visibility implements the subscription gate: the read-time
// projection that hides a lead's customer contact details from agents who
// have not paid for access. It is pure and never touches the stored row.
package visibility

import "strings"

const (
	phonePrefixLen  = 6
	phoneMaskMarker = "*****"
	addressEllipsis = "..."
)

// ContactView is the customer contact surface returned to a requesting agent.
type ContactView struct {
	Phone    string `json:"phone"`
	Name     string `json:"name,omitempty"`
	Address  string `json:"address"`
	Masked   bool   `json:"masked"`
}

// Project returns the contact view for a requesting agent. Subscribed agents
// see the stored values unchanged; unsubscribed agents get the masked
// projection.
func Project(phone, name, address string, subscribed bool) ContactView {
	if subscribed {
		return ContactView{Phone: phone, Name: name, Address: address}
	}
	return ContactView{
		Phone:   MaskPhone(phone),
		Address: MaskAddress(address),
		Masked:  true,
	}
}

// MaskPhone keeps the first six characters and replaces the rest with a fixed
// marker. Inputs at or under the prefix length are fully replaced so nothing
// beyond the stated prefix can leak on short numbers.
func MaskPhone(phone string) string {
	if phone == "" {
		return ""
	}
	runes := []rune(phone)
	if len(runes) <= phonePrefixLen {
		return phoneMaskMarker
	}
	return string(runes[:phonePrefixLen]) + phoneMaskMarker
}

// MaskAddress keeps the text before the first comma and appends an ellipsis.
// Addresses without a comma keep only their first segment semantics: the
// whole string is the first segment, so it is returned with the ellipsis.
func MaskAddress(address string) string {
	if address == "" {
		return ""
	}
	before, _, _ := strings.Cut(address, ",")
	return strings.TrimSpace(before) + addressEllipsis
}
