// Copyright (c) 2026, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

// Package tree defines the command trees evaluated by package interp.
//
// A tree is the already parsed and expanded form of a command line. It is
// built by a parser, such as the one in package parse, and it is never
// modified once built; the interpreter only reads it.
package tree

import (
	"fmt"
	"strings"
)

// Node is a command tree node. It is implemented by exactly seven types:
// [*Simple], [*Pipe], [*And], [*Or], [*Seq], [*Bg] and [*Subshell].
type Node interface {
	// Kind reports which of the seven node types this is.
	Kind() Kind
	String() string
}

// Kind identifies the type of a [Node].
type Kind uint8

const (
	KindSimple Kind = iota + 1
	KindPipe
	KindAnd
	KindOr
	KindSeq
	KindBg
	KindSubshell
)

var kindNames = [...]string{
	KindSimple:   "Simple",
	KindPipe:     "Pipe",
	KindAnd:      "And",
	KindOr:       "Or",
	KindSeq:      "Seq",
	KindBg:       "Bg",
	KindSubshell: "Subshell",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ParseKind returns the Kind with the given name, as returned by
// [Kind.String].
func ParseKind(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n != "" && n == name {
			return Kind(k), true
		}
	}
	return 0, false
}

// Binding is a local variable assignment preceding a command, like the
// "FOO=bar" in "FOO=bar cmd".
type Binding struct {
	Name  string
	Value string
}

func (b Binding) String() string { return b.Name + "=" + b.Value }

// RedirKind is the kind of a [Redirect].
type RedirKind uint8

const (
	RedirNone    RedirKind = iota
	FromFile               // <
	HereDoc                // <<
	ToFileTrunc            // >
	ToFileAppend           // >>
)

func (k RedirKind) String() string {
	switch k {
	case RedirNone:
		return ""
	case FromFile:
		return "<"
	case HereDoc:
		return "<<"
	case ToFileTrunc:
		return ">"
	case ToFileAppend:
		return ">>"
	}
	return fmt.Sprintf("RedirKind(%d)", uint8(k))
}

var redirKindNames = [...]string{
	RedirNone:    "None",
	FromFile:     "FromFile",
	HereDoc:      "HereDoc",
	ToFileTrunc:  "ToFileTrunc",
	ToFileAppend: "ToFileAppend",
}

func (k RedirKind) MarshalText() ([]byte, error) {
	if int(k) >= len(redirKindNames) {
		return nil, fmt.Errorf("invalid redirection kind %d", uint8(k))
	}
	return []byte(redirKindNames[k]), nil
}

func (k *RedirKind) UnmarshalText(text []byte) error {
	for i, name := range redirKindNames {
		if name == string(text) {
			*k = RedirKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown redirection kind %q", text)
}

// Input reports whether the kind binds standard input.
func (k RedirKind) Input() bool { return k == FromFile || k == HereDoc }

// Output reports whether the kind binds standard output.
func (k RedirKind) Output() bool { return k == ToFileTrunc || k == ToFileAppend }

// Redirect binds standard input or standard output of a command frame.
//
// For [HereDoc], Target is the literal body of the document rather than a
// path. For every other kind except [RedirNone], Target is a file path,
// relative to the shell's current directory unless absolute.
type Redirect struct {
	Kind   RedirKind
	Target string
}

// IsSet reports whether r redirects anything.
func (r Redirect) IsSet() bool { return r.Kind != RedirNone }

// Simple is a program or built-in invocation with its arguments,
// local bindings and redirections.
type Simple struct {
	Args     []string
	Bindings []Binding
	In, Out  Redirect
}

// Pipe is "Left | Right".
type Pipe struct {
	Left, Right Node
}

// And is "Left && Right".
type And struct {
	Left, Right Node
}

// Or is "Left || Right".
type Or struct {
	Left, Right Node
}

// Seq is "Left; Right". Right may be nil, meaning there is no trailing
// command.
type Seq struct {
	Left, Right Node
}

// Bg is "Left & Right". Right may be nil, meaning there is no trailing
// command.
type Bg struct {
	Left, Right Node
}

// Subshell is "( Child )", with the same local bindings and redirections
// that a [Simple] may carry.
type Subshell struct {
	Child    Node
	Bindings []Binding
	In, Out  Redirect
}

func (*Simple) Kind() Kind   { return KindSimple }
func (*Pipe) Kind() Kind     { return KindPipe }
func (*And) Kind() Kind      { return KindAnd }
func (*Or) Kind() Kind       { return KindOr }
func (*Seq) Kind() Kind      { return KindSeq }
func (*Bg) Kind() Kind       { return KindBg }
func (*Subshell) Kind() Kind { return KindSubshell }

func (n *Simple) String() string   { return sprint(n) }
func (n *Pipe) String() string     { return sprint(n) }
func (n *And) String() string      { return sprint(n) }
func (n *Or) String() string       { return sprint(n) }
func (n *Seq) String() string      { return sprint(n) }
func (n *Bg) String() string       { return sprint(n) }
func (n *Subshell) String() string { return sprint(n) }

func sprint(node Node) string {
	var sb strings.Builder
	Fprint(&sb, node)
	return sb.String()
}

// Name returns the program or built-in name of a simple command.
func (n *Simple) Name() string {
	if len(n.Args) == 0 {
		return ""
	}
	return n.Args[0]
}

// A ValidationError reports a tree which breaks one of the invariants
// checked by [Validate].
type ValidationError struct {
	Node Node
	Msg  string
}

func (e *ValidationError) Error() string {
	if e.Node == nil {
		return "invalid tree: " + e.Msg
	}
	return fmt.Sprintf("invalid %s node: %s", e.Node.Kind(), e.Msg)
}

// Validate checks the structural invariants of a tree: simple commands have
// at least one argument, binding names are well formed, input and output
// redirections sit in their own slots, and binary nodes have the children
// they require.
//
// A nil tree is valid, and evaluates to a zero status.
func Validate(node Node) error {
	var err error
	Walk(node, func(node Node) bool {
		if err != nil || node == nil {
			return false
		}
		err = validateNode(node)
		return err == nil
	})
	return err
}

func validateNode(node Node) error {
	invalid := func(format string, a ...any) error {
		return &ValidationError{Node: node, Msg: fmt.Sprintf(format, a...)}
	}
	checkFrame := func(bindings []Binding, in, out Redirect) error {
		for _, b := range bindings {
			if b.Name == "" || strings.Contains(b.Name, "=") {
				return invalid("bad binding name %q", b.Name)
			}
		}
		if in.IsSet() && !in.Kind.Input() {
			return invalid("%s used as an input redirection", in.Kind)
		}
		if out.IsSet() && !out.Kind.Output() {
			return invalid("%s used as an output redirection", out.Kind)
		}
		if in.Kind == FromFile && in.Target == "" {
			return invalid("empty input path")
		}
		if out.IsSet() && out.Target == "" {
			return invalid("empty output path")
		}
		return nil
	}
	switch node := node.(type) {
	case *Simple:
		if len(node.Args) == 0 {
			return invalid("no arguments")
		}
		return checkFrame(node.Bindings, node.In, node.Out)
	case *Subshell:
		if node.Child == nil {
			return invalid("no child")
		}
		return checkFrame(node.Bindings, node.In, node.Out)
	case *Pipe:
		if node.Left == nil || node.Right == nil {
			return invalid("missing stage")
		}
	case *And:
		if node.Left == nil || node.Right == nil {
			return invalid("missing operand")
		}
	case *Or:
		if node.Left == nil || node.Right == nil {
			return invalid("missing operand")
		}
	case *Seq:
		if node.Left == nil {
			return invalid("missing left command")
		}
	case *Bg:
		if node.Left == nil {
			return invalid("missing left command")
		}
	default:
		return &ValidationError{Msg: fmt.Sprintf("unknown node type %T", node)}
	}
	return nil
}
