package service

import (
	"strings"
	"unicode"
	"unicode/utf8"

	apperrors "github.com/weiwangfds/ditdrive/internal/errors"
)

// MaxNameLength 文件夹名和文件名的最大字符数
const MaxNameLength = 255

// NormalizeName 规范化用户输入的文件夹名或文件名
// 只去除首尾空白和控制字符，其余字符原样保存，输出时由展示层负责转义；
// 结果为空、为 "." / ".." 或过长时返回 ErrInvalidName
func NormalizeName(name string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	cleaned = strings.TrimSpace(cleaned)

	switch {
	case cleaned == "":
		return "", apperrors.NewWithDetails(apperrors.ErrInvalidName, apperrors.GetErrorMessage(apperrors.ErrInvalidName), "name is required")
	case cleaned == "." || cleaned == "..":
		return "", apperrors.NewWithDetails(apperrors.ErrInvalidName, apperrors.GetErrorMessage(apperrors.ErrInvalidName), cleaned)
	case utf8.RuneCountInString(cleaned) > MaxNameLength:
		return "", apperrors.NewWithDetails(apperrors.ErrInvalidName, apperrors.GetErrorMessage(apperrors.ErrInvalidName), "name too long")
	}
	return cleaned, nil
}

// NormalizeFileName 规范化上传的文件名，只保留最后一个路径分量
func NormalizeFileName(name string) (string, error) {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	return NormalizeName(name)
}
