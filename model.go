package attachments

import (
	"github.com/sndcds/attachments/attachment"
)

// AttachmentView is the JSON representation of an attachment.
type AttachmentView struct {
	*attachment.Attachment
	URL        string `json:"url"`
	Capability string `json:"capability"`
}

func (h *Attachments) view(a *attachment.Attachment) AttachmentView {
	v := AttachmentView{Attachment: a, Capability: a.Capability.String()}
	if disk, err := h.Disks.Get(a.Disk); err == nil {
		v.URL = disk.URL(a.FilePath())
	}
	return v
}

func (h *Attachments) views(list []*attachment.Attachment) []AttachmentView {
	result := make([]AttachmentView, 0, len(list))
	for _, a := range list {
		result = append(result, h.view(a))
	}
	return result
}
