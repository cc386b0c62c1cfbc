// Package protocol implements the byte-oriented command surface used to
// enqueue movements remotely. A command is one header byte — a 5-bit opcode
// whose top two bits select the family, plus a 3-bit argument count —
// followed by the arguments as little-endian float64 values.
package protocol

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/viam-labs/omni3/movement"
)

// A Family is the top-level command grouping selected by the header byte's
// top two bits.
type Family uint8

const (
	// FamilyFunctions groups direct function calls (home and friends).
	FamilyFunctions Family = 0
	// FamilyTestersSetters groups parameter reads and writes.
	FamilyTestersSetters Family = 1
	// FamilyMovements groups the movement enqueue commands.
	FamilyMovements Family = 2
)

// Movement opcodes within FamilyMovements.
const (
	OpStop uint8 = iota
	OpConstantVelocity
	OpConstantNormalizedVelocity
	OpTargetPoseByTime
	OpTargetPoseBySpeed
	OpTargetPoseByNormalizedSpeed
	OpTargetVelocityForDuration
	OpTargetNormalizedVelocityForDuration
)

// MaxArgs is the most arguments a command can carry (3-bit count).
const MaxArgs = 7

// movementArgCounts maps each movement opcode to its required argument count.
var movementArgCounts = map[uint8]int{
	OpStop:                                0,
	OpConstantVelocity:                    3,
	OpConstantNormalizedVelocity:          3,
	OpTargetPoseByTime:                    4,
	OpTargetPoseBySpeed:                   5,
	OpTargetPoseByNormalizedSpeed:         5,
	OpTargetVelocityForDuration:           4,
	OpTargetNormalizedVelocityForDuration: 4,
}

var (
	// ErrShortFrame means the frame did not carry the bytes its header
	// announced.
	ErrShortFrame = errors.New("command frame shorter than declared")
	// ErrArgumentCount means the declared argument count does not match the
	// opcode's signature.
	ErrArgumentCount = errors.New("wrong argument count for opcode")
	// ErrUnknownOpcode means the opcode is not defined in its family.
	ErrUnknownOpcode = errors.New("unknown opcode")
	// ErrUnsupportedFamily means the family is not handled by this
	// dispatcher.
	ErrUnsupportedFamily = errors.New("unsupported command family")
)

// A Command is one decoded frame.
type Command struct {
	Family Family
	Opcode uint8
	Args   []float64
}

// Parse decodes a raw frame into a Command.
func Parse(frame []byte) (Command, error) {
	if len(frame) < 1 {
		return Command{}, errors.Wrap(ErrShortFrame, "missing header byte")
	}
	header := frame[0]
	argc := int(header & 0x07)
	if want := 1 + 8*argc; len(frame) < want {
		return Command{}, errors.Wrapf(ErrShortFrame, "need %d bytes, have %d", want, len(frame))
	}
	args := make([]float64, argc)
	for i := range args {
		bits := binary.LittleEndian.Uint64(frame[1+8*i:])
		args[i] = math.Float64frombits(bits)
	}
	return Command{
		Family: Family(header >> 6),
		Opcode: (header >> 3) & 0x07,
		Args:   args,
	}, nil
}

// A Dispatcher maps decoded movement commands onto a scheduler. Dispatch
// must be serialized with the control tick, like any other producer.
type Dispatcher struct {
	logger    golog.Logger
	scheduler *movement.Scheduler
}

// NewDispatcher wires a dispatcher to a scheduler.
func NewDispatcher(scheduler *movement.Scheduler, logger golog.Logger) *Dispatcher {
	return &Dispatcher{logger: logger, scheduler: scheduler}
}

// Handle parses a raw frame and dispatches it.
func (d *Dispatcher) Handle(frame []byte) error {
	cmd, err := Parse(frame)
	if err != nil {
		return err
	}
	return d.Dispatch(cmd)
}

// Dispatch executes a decoded command. Only the movements family is handled
// here; mismatched argument counts are rejected before touching the
// scheduler.
func (d *Dispatcher) Dispatch(cmd Command) error {
	if cmd.Family != FamilyMovements {
		return errors.Wrapf(ErrUnsupportedFamily, "family %d", cmd.Family)
	}
	want, ok := movementArgCounts[cmd.Opcode]
	if !ok {
		return errors.Wrapf(ErrUnknownOpcode, "opcode %d", cmd.Opcode)
	}
	if len(cmd.Args) != want {
		return errors.Wrapf(ErrArgumentCount, "opcode %d wants %d args, got %d",
			cmd.Opcode, want, len(cmd.Args))
	}

	a := cmd.Args
	d.logger.Debugw("dispatching movement command", "opcode", cmd.Opcode)
	switch cmd.Opcode {
	case OpStop:
		d.scheduler.AddStop()
		return nil
	case OpConstantVelocity:
		d.scheduler.AddConstantVelocity(a[0], a[1], a[2])
		return nil
	case OpConstantNormalizedVelocity:
		return d.scheduler.AddConstantNormalizedVelocity(a[0], a[1], a[2])
	case OpTargetPoseByTime:
		return d.scheduler.AddTargetPoseByTime(a[0], a[1], a[2], seconds(a[3]))
	case OpTargetPoseBySpeed:
		return d.scheduler.AddTargetPoseBySpeed(a[0], a[1], a[2], a[3], a[4])
	case OpTargetPoseByNormalizedSpeed:
		return d.scheduler.AddTargetPoseByNormalizedSpeed(a[0], a[1], a[2], a[3], a[4])
	case OpTargetVelocityForDuration:
		return d.scheduler.AddTargetVelocityForDuration(a[0], a[1], a[2], seconds(a[3]))
	case OpTargetNormalizedVelocityForDuration:
		return d.scheduler.AddTargetNormalizedVelocityForDuration(a[0], a[1], a[2], seconds(a[3]))
	}
	return errors.Wrapf(ErrUnknownOpcode, "opcode %d", cmd.Opcode)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
