package flywheel

import "sync"

// Inputs are the sensor readings refreshed once per tick
type Inputs struct {
	VelocityRPM  float64 `json:"velocity_rpm"`
	CurrentAmps  float64 `json:"current_amps"`
	TemperatureC float64 `json:"temperature_c"`
}

// IO is the hardware boundary of the flywheel. Implementations wrap a motor
// controller SDK; calls must not block.
type IO interface {
	Configure(cfg Config) error
	SetMotorVoltage(volts float64)
	SetVelocitySetpoint(rpm float64)
	UpdateInputs(in *Inputs)
}

// NopIO does nothing. It is used for log replay, where no hardware is attached.
type NopIO struct{}

func (NopIO) Configure(Config) error      { return nil }
func (NopIO) SetMotorVoltage(float64)     {}
func (NopIO) SetVelocitySetpoint(float64) {}
func (NopIO) UpdateInputs(*Inputs)        {}

// ControlMode is the last kind of output commanded to the motor
type ControlMode string

const (
	ModeNone     ControlMode = "none"
	ModeVoltage  ControlMode = "voltage"
	ModeVelocity ControlMode = "velocity"
)

// RecordingIO remembers what was commanded and echoes a velocity setpoint
// back as the measured velocity. It does not model the motor.
type RecordingIO struct {
	mu       sync.Mutex
	cfg      Config
	mode     ControlMode
	voltage  float64
	setpoint float64
}

// NewRecordingIO creates an IO with nothing commanded
func NewRecordingIO() *RecordingIO {
	return &RecordingIO{mode: ModeNone}
}

func (r *RecordingIO) Configure(cfg Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg = cfg
	return nil
}

func (r *RecordingIO) SetMotorVoltage(volts float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mode = ModeVoltage
	r.voltage = volts
	r.setpoint = 0
}

func (r *RecordingIO) SetVelocitySetpoint(rpm float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mode = ModeVelocity
	r.setpoint = rpm
	r.voltage = 0
}

func (r *RecordingIO) UpdateInputs(in *Inputs) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.mode == ModeVelocity {
		in.VelocityRPM = r.setpoint
	} else {
		in.VelocityRPM = 0
	}
}

// Last returns the last commanded mode and value
func (r *RecordingIO) Last() (ControlMode, float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.mode == ModeVelocity {
		return r.mode, r.setpoint
	}
	return r.mode, r.voltage
}

// Applied returns the configuration passed to Configure
func (r *RecordingIO) Applied() Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}
