package attachments

import (
	"mime"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
)

// getFile serves originals and derivatives of local disks. Temporary files
// of pending atomic writes are never served.
func (h *Attachments) getFile(gc *gin.Context) {
	file := strings.TrimPrefix(gc.Param("path"), "/")

	// Security: Disallow path traversal attempts
	if file == "" || strings.Contains(file, "..") || path.IsAbs(file) || strings.Contains(file, "\\") {
		gc.AbortWithStatusJSON(400, gin.H{"error": "Invalid file path"})
		return
	}
	if strings.HasPrefix(path.Base(file), ".tmp-") {
		gc.AbortWithStatusJSON(404, gin.H{"error": "File not found"})
		return
	}

	disk, err := h.Disks.Get(gc.Param("disk"))
	if err != nil {
		gc.AbortWithStatusJSON(404, gin.H{"error": "Unknown disk"})
		return
	}
	exists, err := disk.Exists(gc.Request.Context(), file)
	if err != nil || !exists {
		gc.AbortWithStatusJSON(404, gin.H{"error": "File not found"})
		return
	}

	if mimeType := mime.TypeByExtension(path.Ext(file)); mimeType != "" {
		gc.Header("Content-Type", mimeType)
	}
	gc.File(disk.AbsolutePath(file))
}
