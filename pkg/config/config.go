package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/util/validation/field"

	"github.com/Layr-Labs/eigenx-vault-go/pkg/keystore"
)

// Environment variable names for vault server configuration
const (
	EnvVaultPort            = "VAULT_PORT"
	EnvVaultPersistenceType = "VAULT_PERSISTENCE_TYPE"
	EnvVaultDataPath        = "VAULT_DATA_PATH"
	EnvVaultRedisAddress    = "VAULT_REDIS_ADDRESS"
	EnvVaultRedisPassword   = "VAULT_REDIS_PASSWORD"
	EnvVaultRedisDB         = "VAULT_REDIS_DB"
	EnvVaultRateLimit       = "VAULT_RATE_LIMIT"
	EnvVaultMaxUploadBytes  = "VAULT_MAX_UPLOAD_BYTES"
	EnvVaultVerbose         = "VAULT_VERBOSE"
)

// Environment variable names for vault client configuration
const (
	EnvVaultServerURL = "VAULT_SERVER_URL"
	EnvVaultClientDir = "VAULT_CLIENT_DIR"
	EnvVaultPassword  = "VAULT_PASSWORD"
	EnvVaultSigner    = "VAULT_SIGNER"
	EnvVaultKMSKeyID  = "VAULT_KMS_KEY_ID"
	EnvVaultAWSRegion = "VAULT_AWS_REGION"
	EnvVaultTimeout   = "VAULT_REQUEST_TIMEOUT"
)

const (
	// DefaultPort is the port the vault server listens on
	DefaultPort = 4146
	// DefaultServerURL points the client at a local server
	DefaultServerURL = "http://localhost:4146"
	// DefaultMaxUploadBytes caps a single upload body
	DefaultMaxUploadBytes int64 = 64 << 20
	// MaxUploadBytesLimit is the largest accepted --max-upload-bytes. It keeps a read
	// response (blob plus proof) under the client's response limit.
	MaxUploadBytesLimit int64 = 255 << 20
	// DefaultRequestTimeout bounds a single HTTP request from the client
	DefaultRequestTimeout = 60 * time.Second
)

type PersistenceType string

func (p PersistenceType) String() string {
	return string(p)
}

const (
	PersistenceTypeMemory PersistenceType = "memory"
	PersistenceTypeBadger PersistenceType = "badger"
	PersistenceTypeRedis  PersistenceType = "redis"
)

// SupportedPersistenceTypes lists the accepted --persistence-type values
func SupportedPersistenceTypes() []string {
	return []string{
		PersistenceTypeMemory.String(),
		PersistenceTypeBadger.String(),
		PersistenceTypeRedis.String(),
	}
}

// VaultServerConfig represents the complete configuration for a vault server
type VaultServerConfig struct {
	Port int `json:"port"`

	PersistenceType PersistenceType `json:"persistence_type"`
	DataPath        string          `json:"data_path"`

	RedisAddress  string `json:"redis_address"`
	RedisPassword string `json:"-"`
	RedisDB       int    `json:"redis_db"`

	// RateLimit is requests per second across all clients, 0 disables limiting
	RateLimit      float64 `json:"rate_limit"`
	MaxUploadBytes int64   `json:"max_upload_bytes"`

	Verbose bool `json:"verbose"`
}

// Validate validates the vault server configuration
func (c *VaultServerConfig) Validate() error {
	var allErrors field.ErrorList

	if c.Port < 1 || c.Port > 65535 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("port"), c.Port, "port must be between 1-65535"))
	}

	switch c.PersistenceType {
	case PersistenceTypeMemory:
	case PersistenceTypeBadger:
		if c.DataPath == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("dataPath"), "dataPath is required for badger persistence"))
		}
	case PersistenceTypeRedis:
		if c.RedisAddress == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("redisAddress"), "redisAddress is required for redis persistence"))
		}
		if c.RedisDB < 0 || c.RedisDB > 15 {
			allErrors = append(allErrors, field.Invalid(field.NewPath("redisDb"), c.RedisDB, "redis database must be between 0-15"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(field.NewPath("persistenceType"), c.PersistenceType, SupportedPersistenceTypes()))
	}

	if c.RateLimit < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("rateLimit"), c.RateLimit, "rate limit cannot be negative"))
	}
	if c.MaxUploadBytes <= 0 || c.MaxUploadBytes > MaxUploadBytesLimit {
		allErrors = append(allErrors, field.Invalid(field.NewPath("maxUploadBytes"), c.MaxUploadBytes,
			fmt.Sprintf("max upload size must be between 1-%d", MaxUploadBytesLimit)))
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

// VaultClientConfig represents the configuration for the vault client
type VaultClientConfig struct {
	ServerURL string `json:"server_url"`
	// ClientDir holds the local key pair and the trusted top hash
	ClientDir string `json:"client_dir"`
	Password  string `json:"-"`

	Signer    keystore.SignerType `json:"signer"`
	KMSKeyID  string              `json:"kms_key_id"`
	AWSRegion string              `json:"aws_region"`

	RequestTimeout time.Duration `json:"request_timeout"`

	Verbose bool `json:"verbose"`
}

// Validate validates the vault client configuration. requirePassword is false for
// commands that never derive a file key.
func (c *VaultClientConfig) Validate(requirePassword bool) error {
	var allErrors field.ErrorList

	if c.ServerURL == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("serverUrl"), "serverUrl is required"))
	} else if u, err := url.Parse(c.ServerURL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		allErrors = append(allErrors, field.Invalid(field.NewPath("serverUrl"), c.ServerURL, "must be an http or https URL"))
	}

	if c.ClientDir == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("clientDir"), "clientDir is required"))
	}

	if c.RequestTimeout <= 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("requestTimeout"), c.RequestTimeout.String(), "request timeout must be positive"))
	}

	if requirePassword && c.Password == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("password"), "password is required"))
	}

	switch c.Signer {
	case keystore.SignerTypeLocal:
	case keystore.SignerTypeAWSKMS:
		if strings.TrimSpace(c.KMSKeyID) == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("kmsKeyId"), "kmsKeyId is required for the aws-kms signer"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(field.NewPath("signer"), c.Signer,
			[]string{string(keystore.SignerTypeLocal), string(keystore.SignerTypeAWSKMS)}))
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

// String renders the client configuration without secrets
func (c *VaultClientConfig) String() string {
	return fmt.Sprintf("server=%s dir=%s signer=%s", c.ServerURL, c.ClientDir, c.Signer)
}
