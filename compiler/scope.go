package compiler

import (
	"fmt"
	"sort"
)

// NativeArity is the declared parameter count of imported functions.
const NativeArity = -1

// FunctionScope holds the variables of one function in slot order.
type FunctionScope struct {
	Name      string
	Variables []string
}

// Slot returns the slot of the first variable called name.
func (s *FunctionScope) Slot(name string) (int, bool) {
	for i, v := range s.Variables {
		if v == name {
			return i, true
		}
	}
	return 0, false
}

// LoopContext holds the labels of one enclosing loop.
type LoopContext struct {
	Begin string
	End   string
}

// FunctionInfo is the signature of a callable function.
type FunctionInfo struct {
	Name     string
	Declared int // parameter count, NativeArity for imports
	Minimum  int // fewest arguments a call may pass
	Dispatch int // index assigned at first declaration
}

// Native reports whether the function is provided by the host.
func (f *FunctionInfo) Native() bool { return f.Declared < 0 }

// Symbols tracks function scopes, loop nesting and function signatures for
// one compilation.
type Symbols struct {
	scopes    []*FunctionScope
	loops     []LoopContext
	functions map[string]*FunctionInfo
}

// NewSymbols returns an empty symbol manager.
func NewSymbols() *Symbols {
	return &Symbols{functions: make(map[string]*FunctionInfo)}
}

// EnterFunction opens a new variable scope.
func (s *Symbols) EnterFunction(name string) {
	s.scopes = append(s.scopes, &FunctionScope{Name: name})
}

// ExitFunction closes the innermost scope and returns it.
func (s *Symbols) ExitFunction() (*FunctionScope, error) {
	scope, err := s.Current()
	if err != nil {
		return nil, err
	}
	s.scopes = s.scopes[:len(s.scopes)-1]
	return scope, nil
}

// Current returns the innermost scope.
func (s *Symbols) Current() (*FunctionScope, error) {
	if len(s.scopes) == 0 {
		return nil, ErrNoScope
	}
	return s.scopes[len(s.scopes)-1], nil
}

// Declare appends name to the current scope and returns its slot. A name
// declared twice gets a second slot, but lookups keep finding the first.
func (s *Symbols) Declare(name string) (int, error) {
	scope, err := s.Current()
	if err != nil {
		return 0, fmt.Errorf("declare %q: %w", name, err)
	}
	scope.Variables = append(scope.Variables, name)
	return len(scope.Variables) - 1, nil
}

// Resolve returns the slot of name in the current scope. Enclosing scopes
// are not searched.
func (s *Symbols) Resolve(name string) (int, error) {
	scope, err := s.Current()
	if err != nil {
		return 0, fmt.Errorf("resolve %q: %w", name, err)
	}
	slot, ok := scope.Slot(name)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrVariableNotFound, name)
	}
	return slot, nil
}

// EnterLoop pushes a loop's labels.
func (s *Symbols) EnterLoop(begin, end string) {
	s.loops = append(s.loops, LoopContext{Begin: begin, End: end})
}

// ExitLoop pops the innermost loop.
func (s *Symbols) ExitLoop() {
	if len(s.loops) > 0 {
		s.loops = s.loops[:len(s.loops)-1]
	}
}

// LoopEnd returns the end label of the innermost loop.
func (s *Symbols) LoopEnd() (string, error) {
	if len(s.loops) == 0 {
		return "", ErrBreakOutsideLoop
	}
	return s.loops[len(s.loops)-1].End, nil
}

// DefineFunction records a signature. The first definition of a name fixes
// its dispatch index; later ones only update the counts.
func (s *Symbols) DefineFunction(name string, declared, minimum int) *FunctionInfo {
	if f, ok := s.functions[name]; ok {
		f.Declared = declared
		f.Minimum = minimum
		return f
	}
	f := &FunctionInfo{
		Name:     name,
		Declared: declared,
		Minimum:  minimum,
		Dispatch: len(s.functions),
	}
	s.functions[name] = f
	log.Debugf("function %s: declared %d, minimum %d, dispatch %d", name, declared, minimum, f.Dispatch)
	return f
}

// Function looks up a signature.
func (s *Symbols) Function(name string) (*FunctionInfo, bool) {
	f, ok := s.functions[name]
	return f, ok
}

// Functions returns every signature in dispatch order.
func (s *Symbols) Functions() []*FunctionInfo {
	fns := make([]*FunctionInfo, 0, len(s.functions))
	for _, f := range s.functions {
		fns = append(fns, f)
	}
	sort.Slice(fns, func(i, j int) bool { return fns[i].Dispatch < fns[j].Dispatch })
	return fns
}
