package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretsManagerAPI is the subset of the AWS Secrets Manager client used by
// the provider, extracted for testing.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSProvider resolves keys from AWS Secrets Manager. A key of the form
// 'name@field' extracts a single field from a JSON valued secret.
type AWSProvider struct {
	client SecretsManagerAPI
}

// NewAWSProvider creates a provider using the default AWS credential chain.
func NewAWSProvider(ctx context.Context) (*AWSProvider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &AWSProvider{client: secretsmanager.NewFromConfig(cfg)}, nil
}

// NewAWSProviderWithClient creates a provider with an explicit client.
func NewAWSProviderWithClient(client SecretsManagerAPI) *AWSProvider {
	return &AWSProvider{client: client}
}

// Name returns the provider name.
func (p *AWSProvider) Name() string { return "aws" }

// GetSecret fetches the secret value, extracting a JSON field when the key
// carries an '@field' suffix.
func (p *AWSProvider) GetSecret(ctx context.Context, key string) (string, error) {
	name, field, _ := strings.Cut(key, "@")

	out, err := p.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get secret '%s': %w", name, err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret '%s' has no string value", name)
	}

	if field == "" {
		return *out.SecretString, nil
	}

	var values map[string]string
	if err := json.Unmarshal([]byte(*out.SecretString), &values); err != nil {
		return "", fmt.Errorf("secret '%s' is not a JSON object: %w", name, err)
	}
	value, ok := values[field]
	if !ok {
		return "", fmt.Errorf("secret '%s' has no field '%s'", name, field)
	}
	return value, nil
}
