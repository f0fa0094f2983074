package dto

// UnreadCount is returned by the unread counter endpoint.
type UnreadCount struct {
	Unread int `json:"unread"`
}

// MarkReadResult reports how many notifications flipped to read.
type MarkReadResult struct {
	Updated int64 `json:"updated"`
}
