// Copyright (c) 2026, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package tree

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// Fprint writes a shell-like rendering of node to w. It is meant for humans,
// such as in verbose traces and error messages; it is not guaranteed to parse
// back to the same tree.
//
// Words are quoted only when they need to be. Here-document bodies are
// printed after the command, terminated by an EOF line.
func Fprint(w io.Writer, node Node) error {
	p := printer{bufWriter: bufio.NewWriter(w)}
	p.node(node, precLowest)
	for _, body := range p.pendingHdocs {
		p.WriteByte('\n')
		p.WriteString(body)
		if !strings.HasSuffix(body, "\n") {
			p.WriteByte('\n')
		}
		p.WriteString("EOF")
	}
	return p.Flush()
}

type bufWriter interface {
	WriteByte(byte) error
	WriteString(string) (int, error)
	Flush() error
}

type printer struct {
	bufWriter
	pendingHdocs []string
}

// Binding strength of the operators, from loosest to tightest.
const (
	precLowest = iota // ; &
	precAndOr         // && ||
	precPipe          // |
	precCommand       // simple commands and subshells
)

func precedence(node Node) int {
	switch node.(type) {
	case *Seq, *Bg:
		return precLowest
	case *And, *Or:
		return precAndOr
	case *Pipe:
		return precPipe
	}
	return precCommand
}

// node prints node, wrapping it in a group if it binds looser than min.
func (p *printer) node(node Node, min int) {
	if node == nil {
		return
	}
	if precedence(node) < min {
		p.WriteString("{ ")
		p.node(node, precLowest)
		if _, ok := node.(*Bg); !ok {
			p.WriteByte(';')
		}
		p.WriteString(" }")
		return
	}
	switch node := node.(type) {
	case *Simple:
		p.bindings(node.Bindings)
		for i, arg := range node.Args {
			if i > 0 {
				p.WriteByte(' ')
			}
			p.word(arg)
		}
		p.redirects(node.In, node.Out)
	case *Subshell:
		p.bindings(node.Bindings)
		p.WriteByte('(')
		p.node(node.Child, precLowest)
		p.WriteByte(')')
		p.redirects(node.In, node.Out)
	case *Pipe:
		p.binary(node.Left, node.Right, " | ", precPipe)
	case *And:
		p.binary(node.Left, node.Right, " && ", precAndOr)
	case *Or:
		p.binary(node.Left, node.Right, " || ", precAndOr)
	case *Seq:
		p.node(node.Left, precAndOr)
		if node.Right == nil {
			p.WriteByte(';')
			return
		}
		p.WriteString("; ")
		p.node(node.Right, precLowest)
	case *Bg:
		p.node(node.Left, precAndOr)
		if node.Right == nil {
			p.WriteString(" &")
			return
		}
		p.WriteString(" & ")
		p.node(node.Right, precLowest)
	}
}

// binary prints a left-associative operator: the right operand must bind
// tighter than the operator itself.
func (p *printer) binary(left, right Node, op string, prec int) {
	p.node(left, prec)
	p.WriteString(op)
	p.node(right, prec+1)
}

func (p *printer) bindings(bindings []Binding) {
	for _, b := range bindings {
		p.WriteString(b.Name)
		p.WriteByte('=')
		p.word(b.Value)
		p.WriteByte(' ')
	}
}

func (p *printer) redirects(in, out Redirect) {
	switch in.Kind {
	case FromFile:
		p.WriteString(" <")
		p.word(in.Target)
	case HereDoc:
		p.WriteString(" <<EOF")
		p.pendingHdocs = append(p.pendingHdocs, in.Target)
	}
	if out.Kind.Output() {
		p.WriteByte(' ')
		p.WriteString(out.Kind.String())
		p.word(out.Target)
	}
}

func (p *printer) word(s string) {
	if s == "" {
		p.WriteString("''")
		return
	}
	q, err := syntax.Quote(s, syntax.LangPOSIX)
	if err != nil {
		// POSIX shells cannot quote some bytes, such as NUL.
		q = strconv.Quote(s)
	}
	p.WriteString(q)
}
