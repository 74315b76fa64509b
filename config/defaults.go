package config

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaults 注册所有配置项的默认值
// 每个键都需要注册，AutomaticEnv 才能在 Unmarshal 时覆盖它
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 0)
	v.SetDefault("server.write_timeout", 0)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.enable_https", false)
	v.SetDefault("server.enable_http2", false)
	v.SetDefault("server.tls_cert_file", "")
	v.SetDefault("server.tls_key_file", "")
	v.SetDefault("server.enable_swagger", false)
	v.SetDefault("server.max_upload_size", int64(2)<<30)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "data/ditdrive.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.conn_max_lifetime", 3600)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("storage.root_path", "storage")
	v.SetDefault("storage.temp_dir", "")

	v.SetDefault("retention.enabled", true)
	v.SetDefault("retention.days", 30)
	v.SetDefault("retention.sweep_interval", 24*time.Hour)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "ditDrive")
	v.SetDefault("auth.audience", "ditDriveUsers")
	v.SetDefault("auth.expire_minutes", 720)

	v.SetDefault("share.base_url", "https://drive.aetherstudio.web.id")

	v.SetDefault("seed.master_email", "")
	v.SetDefault("seed.master_password", "")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.per_minute", 120)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", time.Hour)

	v.SetDefault("cors.allow_origins", []string{"*"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "console")
	v.SetDefault("log.file_path", "logs/app.log")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_age", 30)
	v.SetDefault("log.max_backups", 10)
	v.SetDefault("log.compress", true)
}
