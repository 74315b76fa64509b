package service

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// NewPublicID 生成对外公开ID（32位十六进制，无连字符）
func NewPublicID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewStoredName 生成磁盘存储名，保留原始扩展名
func NewStoredName(fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	// 扩展名同样来自用户输入，只接受简单字符
	if len(ext) > 16 || strings.ContainsAny(ext, `/\ `) {
		ext = ""
	}
	return NewPublicID() + ext
}
