package flywheel

import (
	"errors"
	"fmt"
)

// Config holds the motor controller settings and the setpoints used by the
// flywheel state machine
type Config struct {
	LeaderID   int `yaml:"leader_id" env:"LEADER_ID"`
	FollowerID int `yaml:"follower_id" env:"FOLLOWER_ID"`

	CurrentLimitAmps float64 `yaml:"current_limit_amps" env:"CURRENT_LIMIT_AMPS"`
	MaxVoltage       float64 `yaml:"max_voltage" env:"MAX_VOLTAGE"`

	KS float64 `yaml:"ks" env:"KS"`
	KV float64 `yaml:"kv" env:"KV"`
	KA float64 `yaml:"ka" env:"KA"`
	KP float64 `yaml:"kp" env:"KP"`

	CruiseVelocityRPM  float64 `yaml:"cruise_velocity_rpm" env:"CRUISE_VELOCITY_RPM"`
	MaxAccelerationRPM float64 `yaml:"max_acceleration_rpm_per_s" env:"MAX_ACCELERATION_RPM_PER_S"`

	IdleRPM      float64 `yaml:"idle_rpm" env:"IDLE_RPM"`
	ShootRPM     float64 `yaml:"shoot_rpm" env:"SHOOT_RPM"`
	ToleranceRPM float64 `yaml:"tolerance_rpm" env:"TOLERANCE_RPM"`
}

// DefaultConfig returns the tuned values for the double-motor flywheel
func DefaultConfig() Config {
	return Config{
		LeaderID:           21,
		FollowerID:         22,
		CurrentLimitAmps:   90,
		MaxVoltage:         12,
		KS:                 0.13955,
		KV:                 0.11141,
		KA:                 0.036289,
		KP:                 9.982e-05,
		CruiseVelocityRPM:  6000,
		MaxAccelerationRPM: 3000,
		IdleRPM:            1500,
		ShootRPM:           4500,
		ToleranceRPM:       50,
	}
}

// Validate checks the configuration for errors
func (c Config) Validate() error {
	var errs []error
	if c.LeaderID == c.FollowerID {
		errs = append(errs, fmt.Errorf("leader and follower share id %d", c.LeaderID))
	}
	if c.CurrentLimitAmps <= 0 {
		errs = append(errs, fmt.Errorf("current limit must be positive, got %v", c.CurrentLimitAmps))
	}
	if c.MaxVoltage <= 0 {
		errs = append(errs, fmt.Errorf("max voltage must be positive, got %v", c.MaxVoltage))
	}
	if c.ShootRPM > c.CruiseVelocityRPM {
		errs = append(errs, fmt.Errorf("shoot rpm %v exceeds cruise velocity %v", c.ShootRPM, c.CruiseVelocityRPM))
	}
	if c.IdleRPM < 0 || c.IdleRPM > c.ShootRPM {
		errs = append(errs, fmt.Errorf("idle rpm %v must be between 0 and shoot rpm %v", c.IdleRPM, c.ShootRPM))
	}
	if c.ToleranceRPM <= 0 {
		errs = append(errs, fmt.Errorf("tolerance must be positive, got %v", c.ToleranceRPM))
	}
	return errors.Join(errs...)
}
