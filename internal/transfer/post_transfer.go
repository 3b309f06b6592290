package transfer

type PostCreation struct {
	Content    string `json:"content"`
	TemplateID string `json:"templateId"`
}

type ScheduleRequest struct {
	PostID      string `json:"postId"`
	ScheduledAt string `json:"scheduledAt"`
}

type CancelRequest struct {
	PostID string `json:"postId"`
}

type LinkedinStatus struct {
	Connected bool   `json:"connected"`
	Name      string `json:"name,omitempty"`
	Picture   string `json:"picture,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
}
