package models

// RenderedItem is a channel-ready notification. It is produced per new
// feed item and consumed immediately by dispatch; never persisted.
type RenderedItem struct {
	Content      string
	DisplayName  string
	AvatarURL    string
	SourceHandle string
}
