package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EngineConfig carries the reservation policy knobs.
type EngineConfig struct {
	StorageDriver string `envconfig:"STORAGE_DRIVER" default:"mysql"`

	// PendingTTL expires pending reservations older than this; 0 disables.
	PendingTTL            time.Duration `envconfig:"PENDING_TTL" default:"0s"`
	AllowPaidCancellation bool          `envconfig:"ALLOW_PAID_CANCELLATION" default:"false"`
	CreateAttempts        int           `envconfig:"CREATE_ATTEMPTS" default:"3"`
	MaxStayNights         int           `envconfig:"MAX_STAY_NIGHTS" default:"365"`

	PaymentCurrency   string `envconfig:"PAYMENT_CURRENCY" default:"INR"`
	PaymentGateway    string `envconfig:"PAYMENT_GATEWAY" default:"local"`
	RazorpayKeyID     string `envconfig:"RAZORPAY_KEY_ID"`
	RazorpayKeySecret string `envconfig:"RAZORPAY_KEY_SECRET"`
}

// LoadEngineConfig reads EngineConfig from the environment and validates it.
func LoadEngineConfig() (EngineConfig, error) {
	var c EngineConfig
	if err := envconfig.Process("", &c); err != nil {
		return c, fmt.Errorf("engine config: %w", err)
	}
	switch c.StorageDriver {
	case "mysql", "memory":
	default:
		return c, fmt.Errorf("engine config: unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.PendingTTL < 0 {
		return c, fmt.Errorf("engine config: PENDING_TTL must not be negative")
	}
	if c.CreateAttempts < 1 {
		c.CreateAttempts = 1
	}
	if len(c.PaymentCurrency) != 3 {
		return c, fmt.Errorf("engine config: PAYMENT_CURRENCY must be an ISO 4217 code")
	}
	return c, nil
}
