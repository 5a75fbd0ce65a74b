// Package credentials resolves store access keys from AWS Secrets Manager.
//
// The secret must hold a JSON object with access_key_id and
// secret_access_key. Secret values are never logged.
package credentials

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"
	"github.com/goccy/go-json"

	"github.com/input-output-hk/catalyst-forge-libs/assetsync/errors"
)

// AWS error code constants
const (
	ResourceNotFoundException = "ResourceNotFoundException"
	AccessDeniedException     = "AccessDeniedException"
)

var (
	// ErrSecretNotFound indicates the secret does not exist
	ErrSecretNotFound = stderrors.New("secret not found")

	// ErrSecretEmpty indicates the secret exists but has no value
	ErrSecretEmpty = stderrors.New("secret has no value")

	// ErrMalformedSecret indicates the secret is not a JSON key pair
	ErrMalformedSecret = stderrors.New("secret is not a valid access key pair")
)

// SecretsAPI is the subset of the Secrets Manager client used here.
type SecretsAPI interface {
	GetSecretValue(
		ctx context.Context,
		params *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.GetSecretValueOutput, error)
}

var _ SecretsAPI = (*secretsmanager.Client)(nil)

// Credentials is a static access key pair.
type Credentials struct {
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
}

// Resolver fetches credentials from Secrets Manager.
type Resolver struct {
	api    SecretsAPI
	logger *slog.Logger
}

// NewResolver loads the default AWS configuration and creates a resolver.
// region may be empty to use the environment's default region.
func NewResolver(ctx context.Context, region string, logger *slog.Logger) (*Resolver, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewResolverWithClient(secretsmanager.NewFromConfig(cfg), logger), nil
}

// NewResolverWithClient creates a resolver around an existing client.
func NewResolverWithClient(api SecretsAPI, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{api: api, logger: logger}
}

// Resolve fetches and parses the named secret.
func (r *Resolver) Resolve(ctx context.Context, secretName string) (Credentials, error) {
	if secretName == "" {
		return Credentials{}, errors.NewError("resolveCredentials", errors.ErrInvalidConfig).
			WithMessage("secret name cannot be empty")
	}

	r.logger.InfoContext(ctx, "retrieving store credentials", "secret_name", secretName)

	output, err := r.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: &secretName,
	})
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to retrieve secret", "secret_name", secretName, "error", err)
		return Credentials{}, r.handleError(err, secretName)
	}

	var raw []byte
	switch {
	case output.SecretString != nil:
		raw = []byte(*output.SecretString)
	case output.SecretBinary != nil:
		raw = output.SecretBinary
	default:
		return Credentials{}, errors.NewError("resolveCredentials", ErrSecretEmpty).WithKey(secretName)
	}

	var creds Credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return Credentials{}, errors.NewError("resolveCredentials", ErrMalformedSecret).WithKey(secretName)
	}
	creds.AccessKeyID = strings.TrimSpace(creds.AccessKeyID)
	creds.SecretAccessKey = strings.TrimSpace(creds.SecretAccessKey)
	if creds.AccessKeyID == "" || creds.SecretAccessKey == "" {
		return Credentials{}, errors.NewError("resolveCredentials", ErrMalformedSecret).
			WithKey(secretName).
			WithMessage("access_key_id and secret_access_key are required")
	}

	r.logger.InfoContext(ctx, "store credentials retrieved", "secret_name", secretName)
	return creds, nil
}

func (r *Resolver) handleError(err error, secretName string) error {
	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case ResourceNotFoundException:
			return errors.NewError("resolveCredentials", ErrSecretNotFound).WithKey(secretName)
		case AccessDeniedException:
			return errors.NewError("resolveCredentials", errors.ErrAccessDenied).WithKey(secretName)
		}
		return errors.NewError("resolveCredentials",
			fmt.Errorf("%s: %s", apiErr.ErrorCode(), apiErr.ErrorMessage())).WithKey(secretName)
	}
	return errors.NewError("resolveCredentials", err).WithKey(secretName)
}
