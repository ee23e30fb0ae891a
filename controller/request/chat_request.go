package request

// OpenConversationReq 打开会话
type OpenConversationReq struct {
	Kind string `json:"kind" binding:"required,oneof=personal group"`
	ID   string `json:"id" binding:"required"`
}

// SendTextReq 发送文本消息
type SendTextReq struct {
	Content  string `json:"content" binding:"required"`
	ParentID string `json:"parentId"`
}

// ShareLocationReq 分享位置; latitude/longitude is the device fix read by the
// UI shell, timestamp its time in unix millis.
type ShareLocationReq struct {
	ParentID  string   `json:"parentId"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Timestamp int64    `json:"timestamp"`
}

// AddAttachmentReq 添加待发送附件
type AddAttachmentReq struct {
	LocalURI    string `json:"localUri" binding:"required"`
	DisplayName string `json:"displayName"`
	MimeType    string `json:"mimeType"`
	SizeBytes   int64  `json:"sizeBytes" binding:"min=0"`
}

// RemoveAttachmentReq 移除待发送附件
type RemoveAttachmentReq struct {
	LocalURI string `json:"localUri" binding:"required"`
}

// SendAttachmentsReq 发送附件
type SendAttachmentsReq struct {
	Content  string `json:"content"`
	ParentID string `json:"parentId"`
}

// SetTokenReq 设置访问令牌
type SetTokenReq struct {
	Token string `json:"token" binding:"required"`
}
