// Package cognito creates and removes accounts in the Cognito user pool.
package cognito

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/config"
	"go.uber.org/zap"
)

// API is the subset of the Cognito client the signup flow calls.
type API interface {
	AdminCreateUser(ctx context.Context, params *cip.AdminCreateUserInput, optFns ...func(*cip.Options)) (*cip.AdminCreateUserOutput, error)
	AdminSetUserPassword(ctx context.Context, params *cip.AdminSetUserPasswordInput, optFns ...func(*cip.Options)) (*cip.AdminSetUserPasswordOutput, error)
	AdminDeleteUser(ctx context.Context, params *cip.AdminDeleteUserInput, optFns ...func(*cip.Options)) (*cip.AdminDeleteUserOutput, error)
}

var (
	ErrUserPoolNotConfigured = errors.New("cognito_user_pool_not_configured")
	ErrAccountExists         = errors.New("account_already_exists")
	ErrMissingSubject        = errors.New("cognito_missing_subject")
)

type Account struct {
	Username   string
	ExternalID string
}

type Client struct {
	api        API
	userPoolID string
	log        *zap.Logger
}

func New(api API, userPoolID string, log *zap.Logger) *Client {
	return &Client{api: api, userPoolID: userPoolID, log: log.Named("cognito.client")}
}

// Provide builds the client from the shared AWS config. It is nil when signup is not configured.
func Provide(cfg config.Config, awsCfg *aws.Config, log *zap.Logger) *Client {
	if strings.TrimSpace(cfg.Signup.UserPoolID) == "" || awsCfg == nil {
		return nil
	}
	return New(cip.NewFromConfig(*awsCfg), cfg.Signup.UserPoolID, log)
}

// CreateAccount creates a confirmed user with a permanent password and returns its sub.
func (c *Client) CreateAccount(ctx context.Context, email, password string, attrs map[string]string) (*Account, error) {
	if c == nil || c.userPoolID == "" {
		return nil, ErrUserPoolNotConfigured
	}

	attributes := []types.AttributeType{
		{Name: aws.String("email"), Value: aws.String(email)},
		{Name: aws.String("email_verified"), Value: aws.String("true")},
	}
	for k, v := range attrs {
		attributes = append(attributes, types.AttributeType{Name: aws.String(k), Value: aws.String(v)})
	}

	out, err := c.api.AdminCreateUser(ctx, &cip.AdminCreateUserInput{
		UserPoolId:     aws.String(c.userPoolID),
		Username:       aws.String(email),
		UserAttributes: attributes,
		MessageAction:  types.MessageActionTypeSuppress,
	})
	if err != nil {
		var exists *types.UsernameExistsException
		if errors.As(err, &exists) {
			return nil, ErrAccountExists
		}
		return nil, fmt.Errorf("cognito create user: %w", err)
	}

	account := &Account{Username: email}
	if out.User != nil {
		if out.User.Username != nil {
			account.Username = *out.User.Username
		}
		for _, attr := range out.User.Attributes {
			if aws.ToString(attr.Name) == "sub" {
				account.ExternalID = aws.ToString(attr.Value)
			}
		}
	}
	if account.ExternalID == "" {
		account.ExternalID = account.Username
		c.log.Warn("cognito user has no sub attribute, using username", zap.String("username", account.Username))
	}

	if password != "" {
		if _, err := c.api.AdminSetUserPassword(ctx, &cip.AdminSetUserPasswordInput{
			UserPoolId: aws.String(c.userPoolID),
			Username:   aws.String(account.Username),
			Password:   aws.String(password),
			Permanent:  true,
		}); err != nil {
			if delErr := c.DeleteAccount(ctx, account.Username); delErr != nil {
				c.log.Error("cognito cleanup after password failure", zap.String("username", account.Username), zap.Error(delErr))
			}
			return nil, fmt.Errorf("cognito set password: %w", err)
		}
	}
	return account, nil
}

func (c *Client) DeleteAccount(ctx context.Context, username string) error {
	if c == nil || c.userPoolID == "" {
		return ErrUserPoolNotConfigured
	}
	_, err := c.api.AdminDeleteUser(ctx, &cip.AdminDeleteUserInput{
		UserPoolId: aws.String(c.userPoolID),
		Username:   aws.String(username),
	})
	if err != nil {
		var notFound *types.UserNotFoundException
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("cognito delete user: %w", err)
	}
	return nil
}
