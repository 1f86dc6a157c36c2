package dto

// CreateHubContentRequest represents the request to create a hub content item
type CreateHubContentRequest struct {
	Title string `json:"title" validate:"required,max=255"`
}

// ChannelStatusDTO is one entry of the hub channel status map
type ChannelStatusDTO struct {
	Status     string  `json:"status"`
	ExternalID *string `json:"external_id,omitempty"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
}

// HubContentResponse represents a hub content item in responses
type HubContentResponse struct {
	ID            uint                        `json:"id"`
	UUID          string                      `json:"uuid"`
	Title         string                      `json:"title"`
	ChannelStatus map[string]ChannelStatusDTO `json:"channel_status"`
	BlogPostID    *uint                       `json:"blog_post_id,omitempty"`
	CreatedAt     string                      `json:"created_at"`
	UpdatedAt     string                      `json:"updated_at"`
}

// AttachDraftBlogResponse reports the blog post linked to a hub
type AttachDraftBlogResponse struct {
	HubContentID uint `json:"hub_content_id"`
	BlogPostID   uint `json:"blog_post_id"`
	Created      bool `json:"created"`
}
