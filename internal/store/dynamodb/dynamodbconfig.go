// internal/store/dynamodb/dynamodbconfig.go
package dynamodb

import (
	"errors"
	"time"

	"github.com/avivl/editwarning/internal/store"
)

type DynamoDBConfig struct {
	store.BaseStoreConfig `yaml:",inline" mapstructure:",squash"`
	Region                string   `yaml:"region" mapstructure:"region"`
	Endpoints             []string `yaml:"endpoints" mapstructure:"endpoints"`
	Profile               string   `yaml:"profile,omitempty" mapstructure:"profile"`
	AccessKeyID           string   `yaml:"accessKeyId,omitempty" mapstructure:"accessKeyId"`
	SecretAccessKey       string   `yaml:"secretAccessKey,omitempty" mapstructure:"secretAccessKey"`
}

func (c *DynamoDBConfig) GetEndpoints() []string {
	return c.Endpoints
}

func (c *DynamoDBConfig) Validate() error {
	if c.Region == "" {
		return errors.New("region is required")
	}
	if c.TableName == "" {
		return errors.New("table is required")
	}
	if c.MaxRetries < 0 {
		return errors.New("maxRetries must be non-negative")
	}
	if c.RetryInterval < 0 {
		return errors.New("retryInterval must be non-negative")
	}
	// Check if credentials are provided consistently
	if (c.AccessKeyID != "" && c.SecretAccessKey == "") ||
		(c.AccessKeyID == "" && c.SecretAccessKey != "") {
		return errors.New("both access key and secret key must be provided together")
	}
	return nil
}

// NewDynamoDBConfig creates a new DynamoDB configuration with default values
func NewDynamoDBConfig() *DynamoDBConfig {
	return &DynamoDBConfig{
		BaseStoreConfig: store.BaseStoreConfig{
			TableName:     "editwarning-locks",
			MaxRetries:    5,
			RetryInterval: 50 * time.Millisecond,
		},
		Region: "us-west-2",
	}
}
