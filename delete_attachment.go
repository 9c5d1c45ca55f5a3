package attachments

import (
	"github.com/gin-gonic/gin"

	"github.com/sndcds/attachments/api"
)

// deleteAttachment removes the record first and then its directory, which
// holds the original and every derivative.
func (h *Attachments) deleteAttachment(gc *gin.Context) {
	const responseType = "delete-attachment"

	id, ok := ParamUUID(gc, responseType, "id")
	if !ok {
		return
	}
	if err := h.Deleter.Delete(gc.Request.Context(), id); err != nil {
		h.writeServiceError(gc, responseType, err)
		return
	}
	api.JSONSuccessNoData(gc, responseType)
}
