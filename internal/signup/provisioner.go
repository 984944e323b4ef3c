package signup

import (
	"context"
	"errors"
	"strings"

	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/signup/domain"
	walletdomain "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/wallet/domain"
)

type noopProvisioner struct{}

func NewNoopProvisioner() domain.Provisioner {
	return &noopProvisioner{}
}

func (p *noopProvisioner) Provision(context.Context, string, string) error {
	return nil
}

// WalletProvisioner opens the FUNDRAISER wallet for fundraiser accounts.
type WalletProvisioner struct {
	wallets walletdomain.Service
}

func NewWalletProvisioner(wallets walletdomain.Service) domain.Provisioner {
	return &WalletProvisioner{wallets: wallets}
}

func (p *WalletProvisioner) Provision(ctx context.Context, profileID, role string) error {
	if role != domain.RoleFundraiser {
		return nil
	}
	owner := strings.TrimSpace(profileID)
	if owner == "" {
		return domain.ErrInvalidRequest
	}
	_, err := p.wallets.CreateWallet(ctx, owner, walletdomain.WalletKindFundraiser)
	if errors.Is(err, walletdomain.ErrWalletExists) {
		return nil
	}
	return err
}
