package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	RoleAdmin   = "admin"
	RoleFinance = "finance"
)

const (
	ObjectWallet             = "wallet"
	ObjectSystemWallet       = "system_wallet"
	ObjectPaymentTransaction = "payment_transaction"
	ObjectWebhookEvent       = "webhook_event"
	ObjectAuditLog           = "audit_log"
)

const (
	ActionWalletCreate   = "wallet.create"
	ActionWalletWithdraw = "wallet.withdraw"
	ActionWalletAdjust   = "wallet.adjust"

	ActionSystemWalletView = "system_wallet.view"

	ActionPaymentOverride = "payment.override"
	ActionPaymentRefund   = "payment.refund"

	ActionWebhookEventView = "webhook_event.view"
	ActionAuditLogView     = "audit_log.view"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

// Authorize binds actor to role and enforces the role's policies. Actors are operator
// names taken from configuration.
func (s *ServiceImpl) Authorize(ctx context.Context, actor string, role string, object string, action string) error {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ErrInvalidActor
	}
	role = strings.ToLower(strings.TrimSpace(role))
	if role != RoleAdmin && role != RoleFinance {
		return ErrInvalidRole
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	subject := "operator:" + actor
	roleName := fmt.Sprintf("role:%s", role)
	if err := s.ensureGrouping(subject, roleName); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Warn("authorization denied",
			zap.String("actor", actor),
			zap.String("role", role),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	s.log.Info("authorization granted",
		zap.String("actor", actor),
		zap.String("role", role),
		zap.String("action", action),
	)
	return nil
}

// ensureGrouping keeps exactly one role per operator so a role change in configuration
// replaces the stored grouping.
func (s *ServiceImpl) ensureGrouping(subject string, roleName string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 {
			continue
		}
		if rule[1] != roleName {
			params := make([]interface{}, 0, len(rule))
			for _, value := range rule {
				params = append(params, value)
			}
			_, _ = s.enforcer.RemoveGroupingPolicy(params...)
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName)
	return err
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		{"role:admin", ObjectWallet, ActionWalletCreate},
		{"role:admin", ObjectWallet, ActionWalletWithdraw},
		{"role:admin", ObjectWallet, ActionWalletAdjust},
		{"role:admin", ObjectSystemWallet, ActionSystemWalletView},
		{"role:admin", ObjectPaymentTransaction, ActionPaymentOverride},
		{"role:admin", ObjectPaymentTransaction, ActionPaymentRefund},
		{"role:admin", ObjectWebhookEvent, ActionWebhookEventView},
		{"role:admin", ObjectAuditLog, ActionAuditLogView},

		{"role:finance", ObjectWallet, ActionWalletWithdraw},
		{"role:finance", ObjectSystemWallet, ActionSystemWalletView},
		{"role:finance", ObjectPaymentTransaction, ActionPaymentOverride},
		{"role:finance", ObjectWebhookEvent, ActionWebhookEventView},
	}

	for _, policy := range policies {
		has, err := enforcer.HasPolicy(policy)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
