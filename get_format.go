package attachments

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sndcds/attachments/api"
	"github.com/sndcds/attachments/attachment"
	"github.com/sndcds/attachments/picture"
	"github.com/sndcds/attachments/repository"
	"github.com/sndcds/attachments/resolver"
)

// getFormat resolves the URL of a format variant. With ?redirect the
// client is sent to it instead.
func (h *Attachments) getFormat(gc *gin.Context) {
	const responseType = "attachment-format"

	id, ok := ParamUUID(gc, responseType, "id")
	if !ok {
		return
	}
	def, ok := h.Registry.Get(gc.Param("format"))
	if !ok {
		api.JSONError(gc, responseType, http.StatusNotFound, "unknown format")
		return
	}
	breakpoint := GetUrlQueryParam(gc, "breakpoint", Int)
	if breakpoint.Err != nil {
		api.JSONError(gc, responseType, http.StatusBadRequest, "invalid breakpoint parameter")
		return
	}
	if _, err := def.Recipe(breakpoint.IntOr(0)); err != nil {
		api.JSONError(gc, responseType, http.StatusNotFound, err.Error())
		return
	}

	ctx := gc.Request.Context()
	a, err := h.Repo.Get(ctx, id)
	if err != nil {
		h.writeServiceError(gc, responseType, err)
		return
	}

	var result resolver.Result
	if GetUrlQueryParam(gc, "webp", Boolean).Bool {
		result = h.Resolver.ResolveWebp(ctx, a, def, breakpoint.IntOr(0))
	} else {
		result = h.Resolver.Resolve(ctx, a, def, breakpoint.IntOr(0))
	}

	if GetUrlQueryParam(gc, "redirect", Boolean).Bool {
		if result.URL == "" {
			api.JSONError(gc, responseType, http.StatusNotFound, "file not available")
			return
		}
		gc.Redirect(http.StatusFound, result.URL)
		return
	}
	api.JSONSuccess(gc, responseType, result, nil)
}

// getPicture returns the responsive sources of an attachment. Unknown
// attachments render as a placeholder sized by the format.
func (h *Attachments) getPicture(gc *gin.Context) {
	const responseType = "attachment-picture"

	id, ok := ParamUUID(gc, responseType, "id")
	if !ok {
		return
	}
	def, ok := h.Registry.Get(gc.Param("format"))
	if !ok {
		api.JSONError(gc, responseType, http.StatusNotFound, "unknown format")
		return
	}

	ctx := gc.Request.Context()
	var a *attachment.Attachment
	found, err := h.Repo.Get(ctx, id)
	switch {
	case err == nil:
		a = found
	case errors.Is(err, repository.ErrNotFound):
	default:
		h.writeServiceError(gc, responseType, err)
		return
	}

	locale := GetUrlQueryParam(gc, "locale", String).ValueOr(h.DefaultLocale)
	opts := picture.Options{
		Class:          gc.Query("class"),
		PictureClass:   gc.Query("picture_class"),
		Alt:            gc.Query("alt"),
		Title:          gc.Query("title"),
		Lazyload:       GetUrlQueryParam(gc, "lazyload", Boolean).Bool,
		Locale:         locale,
		FallbackLocale: h.DefaultLocale,
	}
	api.JSONSuccess(gc, responseType, h.Selector.Select(ctx, a, def, opts), nil)
}
