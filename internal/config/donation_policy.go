package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// DonationPolicy bounds what a single donation may pledge.
type DonationPolicy struct {
	MinAmount         int64  `mapstructure:"minAmount"`
	MaxAmount         int64  `mapstructure:"maxAmount"`
	DescriptionPrefix string `mapstructure:"descriptionPrefix"`
}

func DefaultDonationPolicy() DonationPolicy {
	return DonationPolicy{
		MinAmount:         1_000,
		MaxAmount:         500_000_000,
		DescriptionPrefix: "FoodFund",
	}
}

type DonationPolicyHolder struct {
	current atomic.Value // holds DonationPolicy
}

// NewStaticDonationPolicyHolder returns a holder that never reloads.
func NewStaticDonationPolicyHolder(policy DonationPolicy) *DonationPolicyHolder {
	holder := &DonationPolicyHolder{}
	holder.current.Store(policy)
	return holder
}

func NewDonationPolicyHolder() (*DonationPolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("donation")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/foodfund/config")
	v.AddConfigPath("/etc/foodfund")
	v.AddConfigPath(".")

	v.SetEnvPrefix("FOODFUND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultDonationPolicy()
	v.SetDefault("donation.minAmount", defaults.MinAmount)
	v.SetDefault("donation.maxAmount", defaults.MaxAmount)
	v.SetDefault("donation.descriptionPrefix", defaults.DescriptionPrefix)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileLoaded = false
	}

	var policy DonationPolicy
	if err := v.UnmarshalKey("donation", &policy); err != nil {
		return nil, err
	}
	if err := validateDonationPolicy(policy); err != nil {
		return nil, err
	}

	holder := NewStaticDonationPolicyHolder(policy)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated DonationPolicy
		if err := v.UnmarshalKey("donation", &updated); err != nil {
			log.Printf("[donation-policy] reload failed: %v", err)
			return
		}
		if err := validateDonationPolicy(updated); err != nil {
			log.Printf("[donation-policy] invalid policy ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[donation-policy] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *DonationPolicyHolder) Get() DonationPolicy {
	return h.current.Load().(DonationPolicy)
}

func validateDonationPolicy(policy DonationPolicy) error {
	if policy.MinAmount <= 0 {
		return errors.New("donation.minAmount must be positive")
	}
	if policy.MaxAmount < policy.MinAmount {
		return errors.New("donation.maxAmount must not be below donation.minAmount")
	}
	return nil
}
