package vm

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

// WriteListing writes the text form of p: the constant pool between
// VALUE BEGIN/VALUE END, then the instructions between PROG BEGIN/PROG END.
func WriteListing(w io.Writer, p *Program) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "VALUE BEGIN")
	for i, v := range p.Constants {
		fmt.Fprintf(bw, "%d : %s\n", i, Render(v))
	}
	fmt.Fprintln(bw, "VALUE END")

	fmt.Fprintln(bw, "PROG BEGIN")
	for _, in := range p.Instructions {
		fmt.Fprintln(bw, in.String())
	}
	fmt.Fprintln(bw, "PROG END")
	return bw.Flush()
}

// Listing returns the text form of p.
func Listing(p *Program) []byte {
	var buf bytes.Buffer
	_ = WriteListing(&buf, p)
	return buf.Bytes()
}

// Disassemble writes a position-annotated dump of p. Jump targets, call
// targets and constant loads are annotated.
func Disassemble(w io.Writer, p *Program) error {
	bw := bufio.NewWriter(w)
	if !p.Created.IsZero() {
		fmt.Fprintf(bw, "; created %s\n", p.Created.Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Fprintf(bw, "; %d constants, %d instructions\n", len(p.Constants), len(p.Instructions))
	for i, v := range p.Constants {
		fmt.Fprintf(bw, "const %-4d %-7s %s\n", i, v.Kind(), Render(v))
	}
	for pc, in := range p.Instructions {
		fmt.Fprintf(bw, "%04d  %s%s\n", pc, in.String(), annotate(p, in))
	}
	return bw.Flush()
}

func annotate(p *Program, in Instruction) string {
	switch {
	case in.Op == OpLC && in.Operand < uint64(len(p.Constants)):
		return fmt.Sprintf("\t; %s", Render(p.Constants[in.Operand]))
	case in.Op.Info().Jump && in.Operand >= uint64(len(p.Instructions)):
		return "\t; out of range"
	case in.Op.Info().Jump && in.Target != "":
		return fmt.Sprintf("\t; %s", in.Target)
	}
	return ""
}
