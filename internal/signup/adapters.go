package signup

import (
	"context"

	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/providers/cognito"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/providers/profile"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/signup/domain"
)

type cognitoIdentity struct {
	client *cognito.Client
}

func newIdentityProvider(client *cognito.Client) domain.IdentityProvider {
	return &cognitoIdentity{client: client}
}

func (c *cognitoIdentity) CreateAccount(ctx context.Context, email, password string, attrs map[string]string) (*domain.Account, error) {
	account, err := c.client.CreateAccount(ctx, email, password, attrs)
	if err != nil {
		return nil, err
	}
	return &domain.Account{Username: account.Username, ExternalID: account.ExternalID}, nil
}

func (c *cognitoIdentity) DeleteAccount(ctx context.Context, username string) error {
	return c.client.DeleteAccount(ctx, username)
}

type profileService struct {
	client *profile.Client
}

func newProfileStore(client *profile.Client) domain.ProfileStore {
	return &profileService{client: client}
}

func (p *profileService) CreateProfile(ctx context.Context, in domain.Profile) (string, error) {
	return p.client.CreateProfile(ctx, profile.CreateProfileRequest{
		ExternalID: in.ExternalID,
		Email:      in.Email,
		FullName:   in.FullName,
		Role:       in.Role,
	})
}
