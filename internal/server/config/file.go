package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/bucketvault/internal/flagx"
	"github.com/dmitrijs2005/bucketvault/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape of the config file. Pointer fields let a
// file override only the values it mentions; everything else keeps the
// value set by defaults.
type FileConfig struct {
	EndpointAddrHTTP            *string         `json:"endpoint_addr_http" yaml:"endpoint_addr_http"`
	EndpointAddrGRPC            *string         `json:"endpoint_addr_grpc" yaml:"endpoint_addr_grpc"`
	DatabaseDSN                 *string         `json:"database_dsn" yaml:"database_dsn"`
	SecretKey                   *string         `json:"secret_key" yaml:"secret_key"`
	EncryptionKey               *string         `json:"encryption_key" yaml:"encryption_key"`
	AccessTokenValidityDuration *timex.Duration `json:"access_token_validity_duration" yaml:"access_token_validity_duration"`
	DefaultBucketLimit          *int            `json:"default_bucket_limit" yaml:"default_bucket_limit"`
	ShareLinkTTL                *timex.Duration `json:"share_link_ttl" yaml:"share_link_ttl"`
	MaxUploadBytes              *int64          `json:"max_upload_bytes" yaml:"max_upload_bytes"`
	S3BaseEndpoint              *string         `json:"s3_base_endpoint" yaml:"s3_base_endpoint"`
	S3UsePathStyle              *bool           `json:"s3_use_path_style" yaml:"s3_use_path_style"`
	LogLevel                    *string         `json:"log_level" yaml:"log_level"`
}

// parseFile overlays values from the file named by -c/-config (or
// $BUCKETVAULT_CONFIG). A missing or malformed file panics.
func parseFile(config *Config) {
	path := flagx.ConfigFile()
	if path == "" {
		return
	}

	if err := ApplyFile(path, config); err != nil {
		panic(err)
	}
}

// ApplyFile overlays the values present in the file at path onto config.
// Files ending in .yaml or .yml are decoded as YAML, anything else as JSON.
func ApplyFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	c := &FileConfig{}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	default:
		err = json.Unmarshal(data, c)
	}
	if err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}

	c.apply(config)
	return nil
}

func (c *FileConfig) apply(config *Config) {
	setIf(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setIf(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setIf(&config.DatabaseDSN, c.DatabaseDSN)
	setIf(&config.SecretKey, c.SecretKey)
	setIf(&config.EncryptionKey, c.EncryptionKey)
	setIf(&config.DefaultBucketLimit, c.DefaultBucketLimit)
	setIf(&config.MaxUploadBytes, c.MaxUploadBytes)
	setIf(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setIf(&config.S3UsePathStyle, c.S3UsePathStyle)
	setIf(&config.LogLevel, c.LogLevel)

	if c.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.ShareLinkTTL != nil {
		config.ShareLinkTTL = c.ShareLinkTTL.Duration
	}
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
