package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/sirupsen/logrus"
)

type Config struct {
	HTTPPort string `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	DBType     string `env:"DBType" envDefault:"sqlite"`
	DSNURL     string `env:"DSN_URL" envDefault:""`
	DBUser     string `env:"DBUser" envDefault:""`
	DBPassword string `env:"DBPassword" envDefault:""`
	DBAddr     string `env:"DBAddr" envDefault:""`
	DBName     string `env:"DBName" envDefault:"artsheets"`
	DBPath     string `env:"DBPath" envDefault:"datas/artsheets.db"`
	DBPort     string `env:"DBPort" envDefault:"3306"`

	StorageType          string `env:"STORAGE_TYPE" envDefault:"local"`
	StorageLocalDir      string `env:"STORAGE_LOCAL_DIR" envDefault:"datas/sheets"`
	StoragePublicBaseURL string `env:"STORAGE_PUBLIC_BASE_URL" envDefault:"/files"`

	// S3 兼容存储配置
	StorageS3Region          string `env:"STORAGE_S3_REGION"`
	StorageS3Bucket          string `env:"STORAGE_S3_BUCKET"`
	StorageS3Prefix          string `env:"STORAGE_S3_PREFIX"`
	StorageS3Endpoint        string `env:"STORAGE_S3_ENDPOINT"`
	StorageS3AccessKeyID     string `env:"STORAGE_S3_ACCESS_KEY_ID"`
	StorageS3SecretAccessKey string `env:"STORAGE_S3_SECRET_ACCESS_KEY"`
	StorageS3SessionToken    string `env:"STORAGE_S3_SESSION_TOKEN"`
	StorageS3ForcePathStyle  bool   `env:"STORAGE_S3_FORCE_PATH_STYLE" envDefault:"false"`

	// 阿里云 OSS 存储配置
	StorageOSSEndpoint        string `env:"STORAGE_OSS_ENDPOINT"`
	StorageOSSBucket          string `env:"STORAGE_OSS_BUCKET"`
	StorageOSSPrefix          string `env:"STORAGE_OSS_PREFIX"`
	StorageOSSAccessKeyID     string `env:"STORAGE_OSS_ACCESS_KEY_ID"`
	StorageOSSAccessKeySecret string `env:"STORAGE_OSS_ACCESS_KEY_SECRET"`

	// 腾讯云 COS 存储配置
	StorageCOSBucketURL string `env:"STORAGE_COS_BUCKET_URL"`
	StorageCOSPrefix    string `env:"STORAGE_COS_PREFIX"`
	StorageCOSSecretID  string `env:"STORAGE_COS_SECRET_ID"`
	StorageCOSSecretKey string `env:"STORAGE_COS_SECRET_KEY"`

	// Cloudflare R2 存储配置
	StorageR2AccountID       string `env:"STORAGE_R2_ACCOUNT_ID"`
	StorageR2Endpoint        string `env:"STORAGE_R2_ENDPOINT"`
	StorageR2Region          string `env:"STORAGE_R2_REGION" envDefault:"auto"`
	StorageR2Bucket          string `env:"STORAGE_R2_BUCKET"`
	StorageR2Prefix          string `env:"STORAGE_R2_PREFIX"`
	StorageR2AccessKeyID     string `env:"STORAGE_R2_ACCESS_KEY_ID"`
	StorageR2SecretAccessKey string `env:"STORAGE_R2_SECRET_ACCESS_KEY"`

	// MinIO 自建存储配置
	StorageMinIOEndpoint        string `env:"STORAGE_MINIO_ENDPOINT"`
	StorageMinIOBucket          string `env:"STORAGE_MINIO_BUCKET"`
	StorageMinIOPrefix          string `env:"STORAGE_MINIO_PREFIX"`
	StorageMinIORegion          string `env:"STORAGE_MINIO_REGION"`
	StorageMinIOAccessKeyID     string `env:"STORAGE_MINIO_ACCESS_KEY_ID"`
	StorageMinIOSecretAccessKey string `env:"STORAGE_MINIO_SECRET_ACCESS_KEY"`
	StorageMinIOUseSSL          bool   `env:"STORAGE_MINIO_USE_SSL" envDefault:"false"`

	// 生成后端配置
	GenerationBackend     string        `env:"GENERATION_BACKEND" envDefault:"volcengine"`
	VolcengineAPIKey      string        `env:"VOLCENGINE_API_KEY" envDefault:""`
	VolcengineModel       string        `env:"VOLCENGINE_MODEL" envDefault:"doubao-seedream-4-0-250828"`
	OpenAIAPIKey          string        `env:"OPENAI_API_KEY" envDefault:""`
	OpenAIBaseURL         string        `env:"OPENAI_BASE_URL" envDefault:""`
	OpenAIImageModel      string        `env:"OPENAI_IMAGE_MODEL" envDefault:"gpt-image-1"`
	GenerationTimeout     time.Duration `env:"GENERATION_TIMEOUT" envDefault:"3m"`
	GenerationMaxAttempts int           `env:"GENERATION_MAX_ATTEMPTS" envDefault:"1"`
	GenerationConcurrency int           `env:"GENERATION_CONCURRENCY" envDefault:"3"`
	GenerationMaxQuantity int           `env:"GENERATION_MAX_QUANTITY" envDefault:"10"`
	GenerationRatePerMin  int           `env:"GENERATION_RATE_PER_MINUTE" envDefault:"6"`
	ThumbnailWidth        int           `env:"THUMBNAIL_WIDTH" envDefault:"320"`
	RedisAddr             string        `env:"REDIS_ADDR" envDefault:""`
	RedisPassword         string        `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB               int           `env:"REDIS_DB" envDefault:"0"`

	// 额度配置
	ReservationTTL           time.Duration `env:"RESERVATION_TTL" envDefault:"15m"`
	ReservationSweepInterval time.Duration `env:"RESERVATION_SWEEP_INTERVAL" envDefault:"1m"`
	PlanFreeCredits          int           `env:"PLAN_FREE_CREDITS" envDefault:"10"`
	PlanBasicCredits         int           `env:"PLAN_BASIC_CREDITS" envDefault:"100"`
	PlanPremiumCredits       int           `env:"PLAN_PREMIUM_CREDITS" envDefault:"500"`

	JWTSecret            string `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
	JWTIssuer            string `env:"JWT_ISSUER" envDefault:"artsheets"`
	JWTExpirationMinutes int    `env:"JWT_EXPIRATION_MINUTES" envDefault:"1440"`
}

func ParseConfig() (Config, error) {
	var Conf Config
	err := env.Parse(&Conf)
	if err != nil {
		logrus.WithError(err).Error("env.Parse error")
		return Config{}, err
	}
	logrus.WithFields(logrus.Fields{
		"db_type":            Conf.DBType,
		"storage_type":       Conf.StorageType,
		"generation_backend": Conf.GenerationBackend,
	}).Debug("config loaded")
	return Conf, nil
}
