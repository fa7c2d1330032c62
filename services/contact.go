package services

import (
	"net/mail"
	"regexp"
	"strings"

	"github.com/kendall-kelly/servicehub-api/models"
)

var (
	phoneSeparators = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")
	phonePattern    = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
)

// NormalizePhone strips the usual separators so "0532 123-45 67" and
// "05321234567" identify the same customer
func NormalizePhone(phone string) string {
	return phoneSeparators.Replace(strings.TrimSpace(phone))
}

// ValidPhone is a loose sanity check, not a numbering-plan validation
func ValidPhone(phone string) bool {
	return phonePattern.MatchString(NormalizePhone(phone))
}

// NormalizeEmail trims and lower-cases an address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail accepts a bare address only, without a display name
func ValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// ContactIdentity is how an unauthenticated customer is recognised
type ContactIdentity struct {
	Phone string
	Email string
}

// Normalized returns the identity in the form it is stored in
func (c ContactIdentity) Normalized() ContactIdentity {
	return ContactIdentity{Phone: NormalizePhone(c.Phone), Email: NormalizeEmail(c.Email)}
}

// IsZero reports whether neither phone nor email is set
func (c ContactIdentity) IsZero() bool {
	return strings.TrimSpace(c.Phone) == "" && strings.TrimSpace(c.Email) == ""
}

// Owns reports whether req was posted under this identity
func (c ContactIdentity) Owns(req *models.ServiceRequest) bool {
	n := c.Normalized()
	if n.Phone != "" && n.Phone == req.CustomerPhone {
		return true
	}
	return n.Email != "" && req.CustomerEmail != nil && n.Email == *req.CustomerEmail
}
