package config

import (
	"io"
	"testing"

	"go.viam.com/test"

	"github.com/viam-labs/omni3/movement"
)

func validConfig() Config {
	return Config{
		MaxWheelSpeed: 20,
		WheelRadius:   0.03,
		RobotRadius:   0.15,
		Kp:            1.4,
		Ki:            0.5,
		Kd:            0.8,
		Friction:      movement.Friction{Forward: 0.02, Strafe: 0.02, Angular: 0.01},
	}
}

func TestValidate(t *testing.T) {
	cfg := validConfig()
	test.That(t, cfg.Validate("test"), test.ShouldBeNil)

	cfg = validConfig()
	cfg.MaxWheelSpeed = 0
	test.That(t, cfg.Validate("test"), test.ShouldNotBeNil)

	cfg = validConfig()
	cfg.WheelRadius = 0
	test.That(t, cfg.Validate("test"), test.ShouldNotBeNil)

	cfg = validConfig()
	cfg.RobotRadius = -2
	test.That(t, cfg.Validate("test"), test.ShouldNotBeNil)

	cfg = validConfig()
	cfg.Friction.Strafe = -0.1
	test.That(t, cfg.Validate("test"), test.ShouldNotBeNil)

	cfg = validConfig()
	cfg.QueueCapacity = -1
	test.That(t, cfg.Validate("test"), test.ShouldNotBeNil)
}

// memStore is an in-memory stand-in for the robot's parameter storage.
type memStore []byte

func (m memStore) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(m)) {
		return 0, io.EOF
	}
	n := copy(p, m[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m memStore) WriteAt(p []byte, off int64) (int, error) {
	return copy(m[off:], p), nil
}

func TestStoredRecordRoundTrip(t *testing.T) {
	store := make(memStore, 256)
	cfg := validConfig()

	const addr = 64
	test.That(t, WriteStored(store, addr, cfg), test.ShouldBeNil)

	got, err := ReadStored(store, addr)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got, test.ShouldResemble, cfg)
}

func TestReadStoredShortStorage(t *testing.T) {
	store := make(memStore, 16)
	_, err := ReadStored(store, 0)
	test.That(t, err, test.ShouldNotBeNil)
}
