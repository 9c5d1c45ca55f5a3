package attachments

import (
	"github.com/gin-gonic/gin"

	"github.com/sndcds/attachments/api"
	"github.com/sndcds/attachments/service"
)

// patchAttachment merges localized metadata. Sending an empty string for a
// locale removes it.
func (h *Attachments) patchAttachment(gc *gin.Context) {
	const responseType = "update-attachment"

	id, ok := ParamUUID(gc, responseType, "id")
	if !ok {
		return
	}

	var update service.MetadataUpdate
	if err := gc.ShouldBindJSON(&update); err != nil {
		api.JSONPayloadError(gc, responseType)
		return
	}

	a, err := h.Editor.Update(gc.Request.Context(), id, update)
	if err != nil {
		h.writeServiceError(gc, responseType, err)
		return
	}
	api.JSONSuccess(gc, responseType, h.view(a), nil)
}

func (h *Attachments) regenerateAttachment(gc *gin.Context) {
	const responseType = "regenerate-attachment"

	id, ok := ParamUUID(gc, responseType, "id")
	if !ok {
		return
	}
	queued, err := h.Uploader.Regenerate(gc.Request.Context(), id)
	if err != nil {
		h.writeServiceError(gc, responseType, err)
		return
	}
	api.JSONSuccess(gc, responseType, gin.H{"jobs": queued}, nil)
}
