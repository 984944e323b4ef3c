package payos

import "go.uber.org/fx"

var Module = fx.Module("payos.gateway",
	fx.Provide(NewClient),
	fx.Provide(func(c *Client) Gateway { return c }),
)
