package service

import (
	"unicode/utf8"

	apperrors "github.com/weiwangfds/ditdrive/internal/errors"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength 密码最小长度
const MinPasswordLength = 6

// HashPassword 使用bcrypt生成密码哈希
func HashPassword(password string) (string, error) {
	if err := ValidatePassword(password); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", apperrors.WrapCode(apperrors.ErrInternalServer, err)
	}
	return string(hash), nil
}

// CheckPassword 校验明文密码与哈希是否匹配
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidatePassword 检查密码长度，bcrypt 只使用前72字节
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength || len(password) > 72 {
		return apperrors.NewWithDetails(apperrors.ErrInvalidParams, apperrors.GetErrorMessage(apperrors.ErrInvalidParams),
			"password must be 6 to 72 bytes")
	}
	return nil
}
