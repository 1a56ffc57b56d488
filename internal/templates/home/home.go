package home

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"github.com/alfeusrudyanta/simple-social-media/internal/templates/helpers"
	"github.com/alfeusrudyanta/simple-social-media/internal/templates/layout"
	"github.com/alfeusrudyanta/simple-social-media/internal/templates/partials"
)

// PageData is the signed-in landing page state.
type PageData struct {
	Identifier string
	LogoutPath string
	CSRFToken  string
	Toasts     []partials.Toast
}

// Page renders the landing page shown after sign-in.
func Page(data PageData) templ.Component {
	return layout.Base(layout.Page{
		Title:     "Home",
		CSRFToken: data.CSRFToken,
		Toasts:    data.Toasts,
	}, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := helpers.NewWriter(w)
		hw.Raw(`<section class="home"><h1>Welcome</h1><p>Signed in as <strong data-identifier>`)
		hw.Text(data.Identifier)
		hw.Raw(`</strong></p><form method="post" data-logout-form`)
		hw.URLAttr("action", data.LogoutPath)
		hw.Raw(`><input type="hidden" name="_csrf"`)
		hw.Attr("value", data.CSRFToken)
		hw.Raw(`><button type="submit">Logout</button></form></section>`)
		return hw.Err()
	}))
}
