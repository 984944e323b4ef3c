package signup

import (
	"context"
	"net/mail"
	"strings"

	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/notify"
	obsmetrics "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/observability/metrics"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/saga"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/signup/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	signupSaga        = "user_signup"
	minPasswordLength = 8
)

type Params struct {
	fx.In

	Log         *zap.Logger
	Identity    domain.IdentityProvider
	Profiles    domain.ProfileStore
	Provisioner domain.Provisioner
	Dispatcher  *notify.Dispatcher  `optional:"true"`
	ObsMetrics  *obsmetrics.Metrics `optional:"true"`
}

type service struct {
	log         *zap.Logger
	identity    domain.IdentityProvider
	profiles    domain.ProfileStore
	provisioner domain.Provisioner
	dispatcher  *notify.Dispatcher
	obsMetrics  *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &service{
		log:         p.Log.Named("signup.service"),
		identity:    p.Identity,
		profiles:    p.Profiles,
		provisioner: p.Provisioner,
		dispatcher:  p.Dispatcher,
		obsMetrics:  p.ObsMetrics,
	}
}

type signupState struct {
	req       domain.Request
	account   *domain.Account
	profileID string
}

func (s *service) Signup(ctx context.Context, req domain.Request) (*domain.Result, error) {
	req, err := normalize(req)
	if err != nil {
		return nil, err
	}

	state := &signupState{req: req}
	flow := saga.New(signupSaga, s.log, s.onCompensationFailed,
		saga.Step[signupState]{
			Name:       "create_identity_account",
			Execute:    s.createAccount,
			Compensate: s.deleteAccount,
		},
		saga.Step[signupState]{
			Name:    "create_profile",
			Execute: s.createProfile,
		},
	)
	if err := flow.Execute(ctx, state); err != nil {
		return nil, err
	}

	if err := s.provisioner.Provision(ctx, state.profileID, req.Role); err != nil {
		s.log.Error("signup provisioning failed",
			zap.String("profile_id", state.profileID),
			zap.String("role", req.Role),
			zap.Error(err),
		)
	}

	s.log.Info("user signed up",
		zap.String("external_id", state.account.ExternalID),
		zap.String("profile_id", state.profileID),
		zap.String("role", req.Role),
	)
	return &domain.Result{
		Username:   state.account.Username,
		ExternalID: state.account.ExternalID,
		ProfileID:  state.profileID,
		Role:       req.Role,
	}, nil
}

func (s *service) createAccount(ctx context.Context, st *signupState) error {
	account, err := s.identity.CreateAccount(ctx, st.req.Email, st.req.Password, map[string]string{
		"name":        st.req.FullName,
		"custom:role": st.req.Role,
	})
	if err != nil {
		return err
	}
	st.account = account
	return nil
}

func (s *service) deleteAccount(ctx context.Context, st *signupState) error {
	return s.identity.DeleteAccount(ctx, st.account.Username)
}

func (s *service) createProfile(ctx context.Context, st *signupState) error {
	id, err := s.profiles.CreateProfile(ctx, domain.Profile{
		ExternalID: st.account.ExternalID,
		Email:      st.req.Email,
		FullName:   st.req.FullName,
		Role:       st.req.Role,
	})
	if err != nil {
		return err
	}
	st.profileID = id
	return nil
}

func (s *service) onCompensationFailed(ctx context.Context, sagaName, step string, err error) {
	if s.obsMetrics != nil {
		s.obsMetrics.RecordCompensationFailure(ctx, sagaName, step)
	}
	s.dispatcher.Dispatch(ctx, notify.Event{
		Type:  notify.EventManualIntervention,
		Title: "Manual intervention required",
		Fields: map[string]string{
			"saga":  sagaName,
			"step":  step,
			"error": err.Error(),
		},
	})
}

func normalize(req domain.Request) (domain.Request, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FullName = strings.TrimSpace(req.FullName)
	req.Role = strings.ToLower(strings.TrimSpace(req.Role))
	if req.Role == "" {
		req.Role = domain.RoleDonor
	}

	if req.Email == "" || len(req.Password) < minPasswordLength {
		return req, domain.ErrInvalidRequest
	}
	if addr, err := mail.ParseAddress(req.Email); err != nil || addr.Address != req.Email {
		return req, domain.ErrInvalidRequest
	}
	switch req.Role {
	case domain.RoleDonor, domain.RoleFundraiser:
	default:
		return req, domain.ErrInvalidRole
	}
	if req.FullName == "" {
		req.FullName = req.Email[:strings.IndexByte(req.Email, '@')]
	}
	return req, nil
}
