package model

// FileError 单个文件的处理失败信息
type FileError struct {
	Filename string `json:"filename"`
	Stage    string `json:"stage"` // decode, model, encode
	Error    string `json:"error"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Success  bool        `json:"success"`
	Message  string      `json:"message"`
	Error    string      `json:"error,omitempty"`
	Failures []FileError `json:"failures,omitempty"`
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status  string  `json:"status"`
	Version string  `json:"version"`
	RSSMB   float64 `json:"rss_mb"`
}
