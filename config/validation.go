package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate 校验配置
// 先执行结构体标签校验，再执行无法用标签表达的规则
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if cfg.Server.EnableHTTPS && (cfg.Server.TLSCertFile == "" || cfg.Server.TLSKeyFile == "") {
		return fmt.Errorf("server: tls_cert_file and tls_key_file are required when enable_https is set")
	}
	if cfg.Server.EnableHTTP2 && !cfg.Server.EnableHTTPS {
		return fmt.Errorf("server: enable_http2 requires enable_https")
	}
	if (cfg.Seed.MasterEmail == "") != (cfg.Seed.MasterPassword == "") {
		return fmt.Errorf("seed: master_email and master_password must be set together")
	}
	return nil
}

// formatValidationError 把 validator 的错误整理成一行可读信息
func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed '%s=%s' (value: %v)", field, fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed '%s'", field, fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
