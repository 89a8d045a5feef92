// Copyright (c) 2026, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

// Package parse builds command trees from shell source.
//
// Source is parsed with [mvdan.cc/sh/v3/syntax], and words are expanded with
// [mvdan.cc/sh/v3/expand] against an environment, usually that of the
// session which is about to evaluate the tree. Since expansion happens before
// evaluation, a statement sees the environment as it was when it started: in
// "cd /tmp && echo $PWD", the second command prints the old directory.
//
// Only the shell language that command trees can express is accepted:
// simple commands with bindings and redirections, pipelines, "&&", "||",
// ";", "&", subshells and blocks. Here-strings are accepted as here-documents.
// Anything else, such as control flow, command substitutions or most other
// Bash extensions, results in an [*UnsupportedError].
package parse

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/syntax"

	"github.com/procsh/procsh/tree"
)

// NewParser returns a parser for the Bash language, so that here-strings
// parse. Constructs which only Bash has are rejected when converting.
func NewParser() *syntax.Parser {
	return syntax.NewParser(syntax.Variant(syntax.LangBash))
}

// UnsupportedError is returned for valid shell source which cannot be
// expressed as a command tree.
type UnsupportedError struct {
	Pos  syntax.Pos
	What string // e.g. "if clauses"
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s: %s are not supported", e.Pos, e.What)
}

// ExpandError is returned when a word cannot be expanded, such as when it
// contains invalid arithmetic.
type ExpandError struct {
	Pos syntax.Pos
	Err error
}

func (e *ExpandError) Error() string { return fmt.Sprintf("%s: %v", e.Pos, e.Err) }
func (e *ExpandError) Unwrap() error { return e.Err }

// Source parses src and converts all of its statements into a single tree.
// The name is used in parse error messages.
func Source(env expand.Environ, r io.Reader, name string) (tree.Node, error) {
	f, err := NewParser().Parse(r, name)
	if err != nil {
		return nil, err
	}
	return Stmts(env, f.Stmts...)
}

// Stmts converts a list of statements into a single tree, expanding words
// against env. Statements are chained from the right: a statement ending in
// "&" becomes a [tree.Bg] node, and any other a [tree.Seq] node. A single
// foreground statement is returned as is, and no statements result in nil.
func Stmts(env expand.Environ, stmts ...*syntax.Stmt) (tree.Node, error) {
	c := &converter{cfg: &expand.Config{Env: env, ReadDir2: os.ReadDir}}
	return c.stmtList(stmts)
}

type converter struct {
	cfg *expand.Config
}

func (c *converter) stmtList(stmts []*syntax.Stmt) (tree.Node, error) {
	var rest tree.Node
	for i := len(stmts) - 1; i >= 0; i-- {
		stmt := stmts[i]
		if err := checkWords(stmt); err != nil {
			return nil, err
		}
		node, err := c.stmt(stmt)
		if err != nil {
			return nil, err
		}
		switch {
		case stmt.Background:
			rest = &tree.Bg{Left: node, Right: rest}
		case rest != nil:
			rest = &tree.Seq{Left: node, Right: rest}
		default:
			rest = node
		}
	}
	return rest, nil
}

// stmt converts a statement, without its trailing "&".
func (c *converter) stmt(stmt *syntax.Stmt) (tree.Node, error) {
	switch {
	case stmt.Negated:
		return nil, &UnsupportedError{Pos: stmt.Pos(), What: "negated statements"}
	case stmt.Coprocess:
		return nil, &UnsupportedError{Pos: stmt.Pos(), What: "coprocesses"}
	}
	in, out, err := c.redirects(stmt.Redirs)
	if err != nil {
		return nil, err
	}
	switch cmd := stmt.Cmd.(type) {
	case *syntax.CallExpr:
		return c.call(stmt, cmd, in, out)
	case *syntax.Subshell:
		child, err := c.stmtList(cmd.Stmts)
		if err != nil {
			return nil, err
		}
		return &tree.Subshell{Child: child, In: in, Out: out}, nil
	case *syntax.Block:
		child, err := c.stmtList(cmd.Stmts)
		if err != nil {
			return nil, err
		}
		if !in.IsSet() && !out.IsSet() {
			return child, nil
		}
		// Redirections need a frame of their own.
		return &tree.Subshell{Child: child, In: in, Out: out}, nil
	case *syntax.BinaryCmd:
		if in.IsSet() || out.IsSet() {
			return nil, &UnsupportedError{Pos: stmt.Pos(), What: "redirections of command lists"}
		}
		return c.binary(cmd)
	case nil:
		return nil, &UnsupportedError{Pos: stmt.Pos(), What: "redirections without a command"}
	default:
		return nil, &UnsupportedError{Pos: stmt.Pos(), What: commandName(cmd)}
	}
}

func (c *converter) binary(cmd *syntax.BinaryCmd) (tree.Node, error) {
	left, err := c.stmt(cmd.X)
	if err != nil {
		return nil, err
	}
	right, err := c.stmt(cmd.Y)
	if err != nil {
		return nil, err
	}
	switch cmd.Op {
	case syntax.AndStmt:
		return &tree.And{Left: left, Right: right}, nil
	case syntax.OrStmt:
		return &tree.Or{Left: left, Right: right}, nil
	case syntax.Pipe:
		return &tree.Pipe{Left: left, Right: right}, nil
	}
	return nil, &UnsupportedError{Pos: cmd.OpPos, What: fmt.Sprintf("%q operators", cmd.Op.String())}
}

func (c *converter) call(stmt *syntax.Stmt, cmd *syntax.CallExpr, in, out tree.Redirect) (tree.Node, error) {
	if len(cmd.Args) == 0 {
		return nil, &UnsupportedError{Pos: stmt.Pos(), What: "assignments without a command"}
	}
	node := &tree.Simple{In: in, Out: out}
	for _, as := range cmd.Assigns {
		switch {
		case as.Append, as.Naked, as.Index != nil, as.Array != nil:
			return nil, &UnsupportedError{Pos: as.Pos(), What: "array and append assignments"}
		}
		value, err := expand.Literal(c.cfg, as.Value)
		if err != nil {
			return nil, c.expandErr(as.Pos(), err)
		}
		node.Bindings = append(node.Bindings, tree.Binding{Name: as.Name.Value, Value: value})
	}
	fields, err := expand.Fields(c.cfg, cmd.Args...)
	if err != nil {
		return nil, c.expandErr(cmd.Args[0].Pos(), err)
	}
	if len(fields) == 0 {
		return nil, &ExpandError{Pos: cmd.Args[0].Pos(), Err: errors.New("command expands to nothing")}
	}
	node.Args = fields
	return node, nil
}

// redirects returns the input and output redirections of a statement.
// Each may be given at most once, and only for the standard descriptors.
func (c *converter) redirects(redirs []*syntax.Redirect) (in, out tree.Redirect, err error) {
	for _, r := range redirs {
		var rd tree.Redirect
		switch r.Op {
		case syntax.RdrIn:
			rd.Kind = tree.FromFile
			rd.Target, err = expand.Literal(c.cfg, r.Word)
		case syntax.RdrOut, syntax.ClbOut:
			rd.Kind = tree.ToFileTrunc
			rd.Target, err = expand.Literal(c.cfg, r.Word)
		case syntax.AppOut:
			rd.Kind = tree.ToFileAppend
			rd.Target, err = expand.Literal(c.cfg, r.Word)
		case syntax.Hdoc:
			rd.Kind = tree.HereDoc
			rd.Target, err = expand.Document(c.cfg, r.Hdoc)
		case syntax.DashHdoc:
			rd.Kind = tree.HereDoc
			rd.Target, err = c.dashDocument(r.Hdoc)
		case syntax.WordHdoc:
			rd.Kind = tree.HereDoc
			rd.Target, err = expand.Literal(c.cfg, r.Word)
			rd.Target += "\n"
		default:
			return in, out, &UnsupportedError{Pos: r.Pos(), What: fmt.Sprintf("%q redirections", r.Op.String())}
		}
		if err != nil {
			return in, out, c.expandErr(r.Pos(), err)
		}
		if r.N != nil && r.N.Value != defaultFD(rd.Kind) {
			return in, out, &UnsupportedError{Pos: r.Pos(), What: "redirections of descriptors other than 0 and 1"}
		}
		dst := &out
		if rd.Kind.Input() {
			dst = &in
		}
		if dst.IsSet() {
			return in, out, &UnsupportedError{Pos: r.Pos(), What: "repeated redirections"}
		}
		*dst = rd
	}
	return in, out, nil
}

// dashDocument expands a "<<-" here-document, dropping the leading tabs of
// each line. Tabs which come from expansions are kept.
func (c *converter) dashDocument(doc *syntax.Word) (string, error) {
	if doc == nil {
		return "", nil
	}
	var sb strings.Builder
	var cur []syntax.WordPart
	flushLine := func() error {
		line, err := expand.Document(c.cfg, &syntax.Word{Parts: cur})
		sb.WriteString(line)
		cur = nil
		return err
	}
	for _, wp := range doc.Parts {
		lit, ok := wp.(*syntax.Lit)
		if !ok {
			cur = append(cur, wp)
			continue
		}
		for i, part := range strings.Split(lit.Value, "\n") {
			if i > 0 {
				if err := flushLine(); err != nil {
					return "", err
				}
				sb.WriteByte('\n')
			}
			if len(cur) == 0 {
				part = strings.TrimLeft(part, "\t")
			}
			cur = append(cur, &syntax.Lit{Value: part})
		}
	}
	if err := flushLine(); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// checkWords rejects the word parts which only Bash has, and which word
// expansion cannot handle on its own.
func checkWords(stmt *syntax.Stmt) error {
	var err error
	syntax.Walk(stmt, func(node syntax.Node) bool {
		if err != nil {
			return false
		}
		switch node := node.(type) {
		case *syntax.ProcSubst:
			err = &UnsupportedError{Pos: node.Pos(), What: "process substitutions"}
		case *syntax.ExtGlob:
			err = &UnsupportedError{Pos: node.Pos(), What: "extended globs"}
		}
		return err == nil
	})
	return err
}

func defaultFD(kind tree.RedirKind) string {
	if kind.Input() {
		return "0"
	}
	return "1"
}

func (c *converter) expandErr(pos syntax.Pos, err error) error {
	var uce expand.UnexpectedCommandError
	if errors.As(err, &uce) {
		return &UnsupportedError{Pos: uce.Node.Pos(), What: "command substitutions"}
	}
	return &ExpandError{Pos: pos, Err: err}
}

func commandName(cmd syntax.Command) string {
	switch cmd.(type) {
	case *syntax.IfClause:
		return "if clauses"
	case *syntax.WhileClause:
		return "while loops"
	case *syntax.ForClause:
		return "for loops"
	case *syntax.CaseClause:
		return "case clauses"
	case *syntax.FuncDecl:
		return "function declarations"
	case *syntax.ArithmCmd:
		return "arithmetic commands"
	case *syntax.TestClause:
		return "test clauses"
	case *syntax.DeclClause:
		return "declarations"
	case *syntax.LetClause:
		return "let clauses"
	case *syntax.TimeClause:
		return "time clauses"
	}
	name := fmt.Sprintf("%T", cmd)
	name = strings.TrimPrefix(name, "*syntax.")
	return name + " commands"
}
