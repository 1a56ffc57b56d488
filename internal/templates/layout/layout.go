package layout

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"github.com/alfeusrudyanta/simple-social-media/internal/templates/helpers"
	"github.com/alfeusrudyanta/simple-social-media/internal/templates/partials"
)

// Scripts are served from the embedded public/static tree only.
var scripts = []string{"/public/static/form.js", "/public/static/toast.js"}

// Page carries the shell-level data every page needs.
type Page struct {
	Title     string
	CSRFToken string
	Toasts    []partials.Toast
}

// Base wraps body in the document shell.
func Base(page Page, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := helpers.NewWriter(w)
		hw.Raw(`<!doctype html><html lang="en"><head><meta charset="utf-8">`)
		hw.Raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		hw.Raw(`<meta name="csrf-token"`)
		hw.Attr("content", page.CSRFToken)
		hw.Raw(`><title>`)
		hw.Text(page.Title)
		hw.Raw(`</title>`)
		hw.Raw(`<link rel="stylesheet" href="/public/static/app.css">`)
		for _, src := range scripts {
			hw.Raw(`<script`)
			hw.Attr("src", src)
			hw.Raw(` defer></script>`)
		}
		hw.Raw(`</head><body hx-headers='{"X-CSRF-Token": "`)
		hw.Text(page.CSRFToken)
		hw.Raw(`"}'><main class="page">`)
		if err := hw.Err(); err != nil {
			return err
		}
		if body != nil {
			if err := body.Render(ctx, w); err != nil {
				return err
			}
		}
		hw.Raw(`</main>`)
		if err := hw.Err(); err != nil {
			return err
		}
		if err := partials.ToastRegion(page.Toasts).Render(ctx, w); err != nil {
			return err
		}
		hw.Raw(`</body></html>`)
		return hw.Err()
	})
}
