package auth

import (
	"context"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"github.com/alfeusrudyanta/simple-social-media/internal/templates/helpers"
	"github.com/alfeusrudyanta/simple-social-media/internal/templates/layout"
)

// LoginFormID is the swap target for htmx submissions.
const LoginFormID = "login-form"

// LoginPage renders the full sign-in document.
func LoginPage(data LoginPageData) templ.Component {
	return layout.Base(layout.Page{
		Title:     "Login",
		CSRFToken: data.CSRFToken,
		Toasts:    data.Toasts,
	}, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := helpers.NewWriter(w)
		hw.Raw(`<section class="auth-card"><h1>Login</h1>`)
		if data.Notice != "" {
			hw.Raw(`<p class="auth-card__notice" data-login-notice>`)
			hw.Text(data.Notice)
			hw.Raw(`</p>`)
		}
		if err := hw.Err(); err != nil {
			return err
		}
		if err := LoginForm(data).Render(ctx, w); err != nil {
			return err
		}
		hw.Raw(`<p class="auth-card__footer">Don&#39;t have an account? <a data-register-link`)
		hw.URLAttr("href", data.RegisterURL)
		hw.Raw(`>Register</a></p></section>`)
		return hw.Err()
	}))
}

// LoginForm renders the form on its own so htmx can swap it after a submit.
// The password value is never echoed back.
func LoginForm(data LoginPageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := helpers.NewWriter(w)
		minLength := data.MinPasswordLength
		if minLength <= 0 {
			minLength = 8
		}

		hw.Raw(`<form`)
		hw.Attr("id", LoginFormID)
		hw.Attr("class", "auth-form")
		hw.Raw(` method="post"`)
		hw.URLAttr("action", data.LoginPath)
		hw.URLAttr("hx-post", data.LoginPath)
		hw.Attr("hx-target", "#"+LoginFormID)
		hw.Raw(` hx-swap="outerHTML" hx-disabled-elt="find fieldset" novalidate>`)
		hw.Raw(`<input type="hidden" name="_csrf"`)
		hw.Attr("value", data.CSRFToken)
		hw.Raw(`><fieldset`)
		hw.Flag("disabled", data.Submitting)
		hw.Raw(`>`)

		hw.Raw(`<label for="login-email">Email</label>`)
		hw.Raw(`<input id="login-email" type="email" name="email" autocomplete="email" required`)
		hw.Attr("value", data.Email)
		hw.Raw(`>`)

		hw.Raw(`<label for="login-password">Password</label>`)
		hw.Raw(`<input id="login-password" type="password" name="password" autocomplete="current-password" required`)
		hw.Attr("minlength", strconv.Itoa(minLength))
		hw.Raw(`>`)

		if data.Error != "" {
			hw.Raw(`<p class="auth-form__error" role="alert" data-login-error>`)
			hw.Text(data.Error)
			hw.Raw(`</p>`)
		}

		hw.Raw(`<button type="submit" class="auth-form__submit" data-login-submit>`)
		hw.Raw(`<span class="auth-form__label">`)
		if data.Submitting {
			hw.Raw(`Logging in...`)
		} else {
			hw.Raw(`Login`)
		}
		hw.Raw(`</span><span class="auth-form__busy" aria-hidden="true">Logging in...</span></button>`)
		hw.Raw(`</fieldset></form>`)
		return hw.Err()
	})
}
