package auth

import "errors"

// User-facing messages shown on the login page.
const (
	MsgInvalidCredentials = "Fel email eller lösenord"
	MsgNotApproved        = "Ditt konto är inte godkänt ännu"
	MsgSignInFailed       = "Inloggningen misslyckades, försök igen"
)

// Message maps an auth error to the text shown to the user.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials):
		return MsgInvalidCredentials
	case errors.Is(err, ErrNotApproved), errors.Is(err, ErrApprovalLookup):
		return MsgNotApproved
	default:
		return MsgSignInFailed
	}
}
