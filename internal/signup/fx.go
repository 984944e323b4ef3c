package signup

import (
	"go.uber.org/fx"
)

var Module = fx.Module("signup.service",
	fx.Provide(newIdentityProvider),
	fx.Provide(newProfileStore),
	fx.Provide(NewWalletProvisioner),
	fx.Provide(NewService),
)
