package compiler

import (
	"fmt"

	"github.com/chazu/cnpl/vm"
)

// ---------------------------------------------------------------------------
// Linker
// ---------------------------------------------------------------------------

// Link resolves calls and labels in the generated stream and returns the
// finished program. The compiler must not be used after Link.
func (c *Compiler) Link() (*vm.Program, error) {
	code, err := c.linkCalls(c.out.code)
	if err != nil {
		return nil, err
	}
	code, err = linkLabels(code)
	if err != nil {
		return nil, err
	}
	c.out.code = code
	return &vm.Program{
		Constants:    c.constants.Values(),
		Instructions: code,
	}, nil
}

// linkCalls checks every call against its callee's signature. Calls to
// user functions that pass fewer than the declared count are padded with
// LC 0 loads; calls to natives become CALLSYS. A RET directly followed by
// another RET is dropped.
func (c *Compiler) linkCalls(in []vm.Instruction) ([]vm.Instruction, error) {
	out := make([]vm.Instruction, 0, len(in))
	padded, natives := 0, 0

	for i, ins := range in {
		switch {
		case ins.Op == vm.OpCALL:
			f, ok := c.symbols.Function(ins.Name)
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrFunctionNotFound, ins.Name)
			}
			k := ins.Argc
			switch {
			case k < f.Minimum:
				return nil, fmt.Errorf("%w: %s needs at least %d, got %d", ErrTooFewArguments, f.Name, f.Minimum, k)
			case k > vm.MaxNativeArgs:
				return nil, fmt.Errorf("%w: %s called with %d (limit %d)", ErrArgumentLimit, f.Name, k, vm.MaxNativeArgs)
			case f.Native():
				ins.Op = vm.OpCALLSYS
				ins.Operand = vm.PackNativeCall(k, f.Dispatch)
				ins.Target = ""
				natives++
			case k > f.Declared:
				return nil, fmt.Errorf("%w: %s takes %d, got %d", ErrTooManyArguments, f.Name, f.Declared, k)
			case k < f.Declared:
				for n := k; n < f.Declared; n++ {
					out = append(out, vm.Instruction{Op: vm.OpLC, Operand: vm.ConstFalse})
				}
				padded += f.Declared - k
				ins.Argc = f.Declared
			}
			out = append(out, ins)

		case ins.Op == vm.OpRET && i+1 < len(in) && in[i+1].Op == vm.OpRET:
			// unreachable: the next RET returns first

		default:
			out = append(out, ins)
		}
	}

	log.Debugf("linked calls: %d padding loads, %d native calls", padded, natives)
	return out, nil
}

// linkLabels folds NOOP label markers into the instruction after them,
// numbers the remaining instructions and patches jump and call operands
// with the position of their target.
func linkLabels(in []vm.Instruction) ([]vm.Instruction, error) {
	// alias maps a deleted marker's label to the label that replaced it.
	alias := make(map[string]string)
	out := make([]vm.Instruction, 0, len(in))
	merged := 0

	for i := range in {
		ins := in[i]
		if ins.Op == vm.OpNOOP && ins.Label != "" && i+1 < len(in) {
			next := &in[i+1]
			if next.Label == "" {
				next.Label = ins.Label
			} else {
				alias[ins.Label] = next.Label
			}
			merged++
			continue
		}
		out = append(out, ins)
	}

	canonical := func(label string) string {
		for {
			to, ok := alias[label]
			if !ok {
				return label
			}
			label = to
		}
	}

	positions := make(map[string]int)
	for pos, ins := range out {
		if ins.Label == "" {
			continue
		}
		if _, dup := positions[ins.Label]; dup {
			if name, ok := functionName(ins.Label); ok {
				return nil, fmt.Errorf("%w: function %s declared twice", ErrDuplicateLabel, name)
			}
			return nil, fmt.Errorf("%w: %s", ErrDuplicateLabel, ins.Label)
		}
		positions[ins.Label] = pos
	}

	for i := range out {
		ins := &out[i]
		if !ins.Op.Info().Jump {
			continue
		}
		target := canonical(ins.Target)
		pos, ok := positions[target]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUndefinedLabel, ins.Target)
		}
		ins.Target = target
		ins.Operand = uint64(pos)
	}

	log.Debugf("linked labels: %d markers merged, %d instructions", merged, len(out))
	return out, nil
}
