package attachments

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sndcds/attachments/api"
	"github.com/sndcds/attachments/imageproc"
	"github.com/sndcds/attachments/storage"
)

func (h *Attachments) listAttachments(gc *gin.Context) {
	const responseType = "attachments"

	search := GetUrlQueryParam(gc, "search", String)
	limit := GetUrlQueryParam(gc, "limit", Int)
	if limit.Err != nil || limit.IntOr(0) < 0 {
		api.JSONError(gc, responseType, http.StatusBadRequest, "invalid limit parameter")
		return
	}

	list, err := h.Repo.Search(gc.Request.Context(), search.ValueOr(""), limit.IntOr(0))
	if err != nil {
		h.writeServiceError(gc, responseType, err)
		return
	}
	api.JSONSuccess(gc, responseType, h.views(list), map[string]any{"count": len(list)})
}

func (h *Attachments) getAttachment(gc *gin.Context) {
	const responseType = "attachment"

	id, ok := ParamUUID(gc, responseType, "id")
	if !ok {
		return
	}
	a, err := h.Repo.Get(gc.Request.Context(), id)
	if err != nil {
		h.writeServiceError(gc, responseType, err)
		return
	}
	api.JSONSuccess(gc, responseType, h.view(a), nil)
}

// getAttachmentExif returns the EXIF tags of the original. Attachments
// without EXIF data yield an empty object.
func (h *Attachments) getAttachmentExif(gc *gin.Context) {
	const responseType = "attachment-exif"

	id, ok := ParamUUID(gc, responseType, "id")
	if !ok {
		return
	}
	ctx := gc.Request.Context()

	a, err := h.Repo.Get(ctx, id)
	if err != nil {
		h.writeServiceError(gc, responseType, err)
		return
	}
	if !a.IsImage() {
		api.JSONSuccess(gc, responseType, map[string]string{}, nil)
		return
	}

	disk, err := h.Disks.Get(a.Disk)
	if err != nil {
		h.writeServiceError(gc, responseType, err)
		return
	}
	content, err := storage.ReadAll(ctx, disk, a.FilePath())
	if err != nil {
		h.writeServiceError(gc, responseType, err)
		return
	}

	api.JSONSuccess(gc, responseType, imageproc.Exif(content), nil)
}
