package partials

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"github.com/alfeusrudyanta/simple-social-media/internal/templates/helpers"
)

// ToastRegionID is the element id toast.js appends live toasts to.
const ToastRegionID = "toast-region"

// Toast is one notification rendered in the toast region.
type Toast struct {
	Tone    string
	Message string
}

// ToastRegion renders the live region with any toasts known at render time.
func ToastRegion(toasts []Toast) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := helpers.NewWriter(w)
		hw.Raw(`<div`)
		hw.Attr("id", ToastRegionID)
		hw.Raw(` class="toast-region" aria-live="polite" data-toast-region>`)
		for _, toast := range toasts {
			if toast.Message == "" {
				continue
			}
			role := "status"
			if toast.Tone == "error" {
				role = "alert"
			}
			hw.Raw(`<div`)
			hw.Attr("class", helpers.ClassNames("toast", "toast--"+toast.Tone))
			hw.Attr("role", role)
			hw.Attr("data-tone", toast.Tone)
			hw.Raw(` data-toast>`)
			hw.Text(toast.Message)
			hw.Raw(`</div>`)
		}
		hw.Raw(`</div>`)
		return hw.Err()
	})
}
