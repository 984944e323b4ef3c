package cognito

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) AdminCreateUser(ctx context.Context, params *cip.AdminCreateUserInput, _ ...func(*cip.Options)) (*cip.AdminCreateUserOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cip.AdminCreateUserOutput), args.Error(1)
}

func (m *mockAPI) AdminSetUserPassword(ctx context.Context, params *cip.AdminSetUserPasswordInput, _ ...func(*cip.Options)) (*cip.AdminSetUserPasswordOutput, error) {
	args := m.Called(ctx, params)
	return &cip.AdminSetUserPasswordOutput{}, args.Error(0)
}

func (m *mockAPI) AdminDeleteUser(ctx context.Context, params *cip.AdminDeleteUserInput, _ ...func(*cip.Options)) (*cip.AdminDeleteUserOutput, error) {
	args := m.Called(ctx, params)
	return &cip.AdminDeleteUserOutput{}, args.Error(0)
}

func TestCreateAccount_ReturnsSub(t *testing.T) {
	api := &mockAPI{}
	api.On("AdminCreateUser", mock.Anything, mock.MatchedBy(func(in *cip.AdminCreateUserInput) bool {
		return aws.ToString(in.UserPoolId) == "pool-1" && aws.ToString(in.Username) == "an@foodfund.vn"
	})).Return(&cip.AdminCreateUserOutput{User: &types.UserType{
		Username:   aws.String("an@foodfund.vn"),
		Attributes: []types.AttributeType{{Name: aws.String("sub"), Value: aws.String("sub-123")}},
	}}, nil)
	api.On("AdminSetUserPassword", mock.Anything, mock.Anything).Return(nil)

	c := New(api, "pool-1", zap.NewNop())
	account, err := c.CreateAccount(context.Background(), "an@foodfund.vn", "Secret#123", map[string]string{"name": "An"})
	require.NoError(t, err)
	assert.Equal(t, "sub-123", account.ExternalID)
	api.AssertExpectations(t)
}

func TestCreateAccount_ExistingUser(t *testing.T) {
	api := &mockAPI{}
	api.On("AdminCreateUser", mock.Anything, mock.Anything).Return(nil, &types.UsernameExistsException{Message: aws.String("exists")})

	_, err := New(api, "pool-1", zap.NewNop()).CreateAccount(context.Background(), "an@foodfund.vn", "", nil)
	assert.ErrorIs(t, err, ErrAccountExists)
}

func TestCreateAccount_PasswordFailureRemovesUser(t *testing.T) {
	api := &mockAPI{}
	api.On("AdminCreateUser", mock.Anything, mock.Anything).Return(&cip.AdminCreateUserOutput{User: &types.UserType{
		Username: aws.String("an@foodfund.vn"),
	}}, nil)
	api.On("AdminSetUserPassword", mock.Anything, mock.Anything).Return(errors.New("weak password"))
	api.On("AdminDeleteUser", mock.Anything, mock.Anything).Return(nil)

	_, err := New(api, "pool-1", zap.NewNop()).CreateAccount(context.Background(), "an@foodfund.vn", "x", nil)
	require.Error(t, err)
	api.AssertCalled(t, "AdminDeleteUser", mock.Anything, mock.Anything)
}

func TestDeleteAccount_MissingUserIsNotAnError(t *testing.T) {
	api := &mockAPI{}
	api.On("AdminDeleteUser", mock.Anything, mock.Anything).Return(&types.UserNotFoundException{Message: aws.String("gone")})

	assert.NoError(t, New(api, "pool-1", zap.NewNop()).DeleteAccount(context.Background(), "an@foodfund.vn"))
}

func TestNilClientIsNotConfigured(t *testing.T) {
	var c *Client
	_, err := c.CreateAccount(context.Background(), "a@b.c", "", nil)
	assert.ErrorIs(t, err, ErrUserPoolNotConfigured)
}
