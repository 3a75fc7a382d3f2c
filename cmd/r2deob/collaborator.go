package main

import (
	"fmt"

	"github.com/xermicus/r2deob/internal/kernel"
)

// TraceSource is the boundary a real emulator driver (e.g. an r2pipe
// session stepping a binary) implements to hand traces to the synth
// session. It is deliberately narrow: seek to a run, set its register
// inputs, step the emulated function, read the observed output. Only
// fakeEmulator implements it here; wiring a real disassembler/emulator
// backend is out of scope for the engine itself.
type TraceSource interface {
	// Seek resets the source to the start of run n.
	Seek(run int) error
	// SetRegister assigns an input register's value for the run
	// currently being prepared.
	SetRegister(name string, value kernel.Word) error
	// Step executes the function under the assigned inputs.
	Step() error
	// ReadOutput returns the observed output of the last Step.
	ReadOutput() (kernel.Word, error)
}

// fakeEmulator is a deterministic, in-memory TraceSource used by the
// --demo flag: it evaluates a fixed hidden expression over whatever
// registers it's given, standing in for a real emulator so the CLI has
// something to run end to end without r2pipe attached.
type fakeEmulator struct {
	registers []string
	inputs    map[string]kernel.Word
	hidden    func(map[string]kernel.Word) kernel.Word
	lastOut   kernel.Word
}

// newFakeEmulator returns a fakeEmulator computing a small fixed
// expression over the given registers: a+b for two registers, a*a for
// one, and a+(b-c) for three. Anything else is rejected by demoHidden.
func newFakeEmulator(registers []string) (*fakeEmulator, error) {
	hidden, err := demoHidden(registers)
	if err != nil {
		return nil, err
	}
	return &fakeEmulator{
		registers: registers,
		inputs:    make(map[string]kernel.Word, len(registers)),
		hidden:    hidden,
	}, nil
}

func demoHidden(registers []string) (func(map[string]kernel.Word) kernel.Word, error) {
	switch len(registers) {
	case 1:
		r := registers[0]
		return func(in map[string]kernel.Word) kernel.Word {
			return in[r] * in[r]
		}, nil
	case 2:
		a, b := registers[0], registers[1]
		return func(in map[string]kernel.Word) kernel.Word {
			return in[a] + in[b]
		}, nil
	case 3:
		a, b, c := registers[0], registers[1], registers[2]
		return func(in map[string]kernel.Word) kernel.Word {
			return in[a] + (in[b] - in[c])
		}, nil
	default:
		return nil, fmt.Errorf("--demo supports 1-3 registers, got %d", len(registers))
	}
}

func (f *fakeEmulator) Seek(run int) error {
	for _, r := range f.registers {
		f.inputs[r] = kernel.Word(run)
	}
	return nil
}

func (f *fakeEmulator) SetRegister(name string, value kernel.Word) error {
	if _, ok := f.inputs[name]; !ok {
		return fmt.Errorf("unknown register %q", name)
	}
	f.inputs[name] = value
	return nil
}

func (f *fakeEmulator) Step() error {
	f.lastOut = f.hidden(f.inputs)
	return nil
}

func (f *fakeEmulator) ReadOutput() (kernel.Word, error) {
	return f.lastOut, nil
}
