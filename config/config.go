// Package config defines the robot's calibration record: wheel limits, drive
// geometry, PID gains and braking friction coefficients, loadable either from
// JSON attributes or from the fixed-layout record stored on the robot.
package config

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/viam-labs/omni3/movement"
)

// Config holds everything needed to instantiate the motion-control core.
type Config struct {
	// MaxWheelSpeed is the wheels' maximum angular speed in rad/s.
	MaxWheelSpeed float64 `json:"max_wheel_speed"`
	// WheelRadius is the wheels' radius in meters.
	WheelRadius float64 `json:"wheel_radius"`
	// RobotRadius is the distance from the robot center to a wheel, meters.
	RobotRadius float64 `json:"robot_radius"`
	// PID gains applied to every wheel.
	Kp float64 `json:"kp"`
	Ki float64 `json:"ki"`
	Kd float64 `json:"kd"`
	// Friction calibrates the braking-space arrival model.
	Friction movement.Friction `json:"friction"`
	// QueueCapacity bounds the movement queue; zero selects the default.
	QueueCapacity int `json:"queue_capacity,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.MaxWheelSpeed <= 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "max_wheel_speed")
	}
	if cfg.WheelRadius <= 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "wheel_radius")
	}
	if cfg.RobotRadius <= 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "robot_radius")
	}
	if cfg.Friction.Forward < 0 || cfg.Friction.Strafe < 0 || cfg.Friction.Angular < 0 {
		return utils.NewConfigValidationError(path,
			errors.New("friction coefficients may not be negative"))
	}
	if cfg.QueueCapacity < 0 {
		return utils.NewConfigValidationError(path,
			errors.New("queue_capacity may not be negative"))
	}
	return nil
}

// storedRecord is the fixed-layout image persisted on the robot: nine
// little-endian float64 fields.
type storedRecord struct {
	MaxWheelSpeed   float64
	WheelRadius     float64
	RobotRadius     float64
	Kp, Ki, Kd      float64
	FrictionForward float64
	FrictionStrafe  float64
	FrictionAngular float64
}

// StoredRecordSize is the byte length of the persisted calibration record.
const StoredRecordSize = 9 * 8

// ReadStored loads the calibration record from a fixed storage address.
func ReadStored(r io.ReaderAt, addr int64) (Config, error) {
	var rec storedRecord
	section := io.NewSectionReader(r, addr, StoredRecordSize)
	if err := binary.Read(section, binary.LittleEndian, &rec); err != nil {
		return Config{}, errors.Wrapf(err, "failed to read stored config at %#x", addr)
	}
	return Config{
		MaxWheelSpeed: rec.MaxWheelSpeed,
		WheelRadius:   rec.WheelRadius,
		RobotRadius:   rec.RobotRadius,
		Kp:            rec.Kp,
		Ki:            rec.Ki,
		Kd:            rec.Kd,
		Friction: movement.Friction{
			Forward: rec.FrictionForward,
			Strafe:  rec.FrictionStrafe,
			Angular: rec.FrictionAngular,
		},
	}, nil
}

// WriteStored writes the calibration record at a fixed storage address, for
// provisioning tools and tests.
func WriteStored(w io.WriterAt, addr int64, cfg Config) error {
	rec := storedRecord{
		MaxWheelSpeed:   cfg.MaxWheelSpeed,
		WheelRadius:     cfg.WheelRadius,
		RobotRadius:     cfg.RobotRadius,
		Kp:              cfg.Kp,
		Ki:              cfg.Ki,
		Kd:              cfg.Kd,
		FrictionForward: cfg.Friction.Forward,
		FrictionStrafe:  cfg.Friction.Strafe,
		FrictionAngular: cfg.Friction.Angular,
	}
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, &rec); err != nil {
		return errors.Wrap(err, "failed to encode stored config")
	}
	if _, err := w.WriteAt(buf.Bytes(), addr); err != nil {
		return errors.Wrapf(err, "failed to write stored config at %#x", addr)
	}
	return nil
}
