package auth

import "github.com/alfeusrudyanta/simple-social-media/internal/templates/partials"

// LoginPageData encapsulates rendering state for the sign-in screen.
type LoginPageData struct {
	Email             string
	Error             string
	Notice            string
	LoginPath         string
	RegisterURL       string
	CSRFToken         string
	MinPasswordLength int
	Submitting        bool
	Toasts            []partials.Toast
}
