// Copyright (c) 2026, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"fmt"
	"strings"

	"github.com/elliotchance/orderedmap/v3"
	"mvdan.cc/sh/v3/expand"
)

// environ is a session's environment. Every variable is an exported string,
// and iteration follows insertion order; overwriting a variable keeps its
// position.
//
// It implements [expand.Environ], so that words can be expanded against it.
type environ struct {
	values *orderedmap.OrderedMap[string, string]
}

var _ expand.Environ = (*environ)(nil)

func newEnviron() *environ {
	return &environ{values: orderedmap.NewOrderedMap[string, string]()}
}

// envFromList builds an environment from "name=value" pairs.
// Later pairs overwrite earlier ones with the same name.
func envFromList(list []string) (*environ, error) {
	env := newEnviron()
	for _, kv := range list {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("env not in the form key=value: %q", kv)
		}
		env.Set(name, value)
	}
	return env, nil
}

func (e *environ) Get(name string) expand.Variable {
	value, ok := e.values.Get(name)
	if !ok {
		return expand.Variable{}
	}
	return expand.Variable{
		Set:      true,
		Exported: true,
		Kind:     expand.String,
		Str:      value,
	}
}

func (e *environ) Each(fn func(name string, vr expand.Variable) bool) {
	for name := range e.values.AllFromFront() {
		if !fn(name, e.Get(name)) {
			return
		}
	}
}

func (e *environ) lookup(name string) string {
	value, _ := e.values.Get(name)
	return value
}

func (e *environ) Set(name, value string) { e.values.Set(name, value) }

func (e *environ) Delete(name string) { e.values.Delete(name) }

func (e *environ) Len() int { return e.values.Len() }

// clone returns a copy which can be modified without affecting e.
func (e *environ) clone() *environ {
	e2 := newEnviron()
	for name, value := range e.values.AllFromFront() {
		e2.values.Set(name, value)
	}
	return e2
}

// list returns the environment as "name=value" pairs.
func (e *environ) list() []string {
	list := make([]string, 0, e.values.Len())
	for name, value := range e.values.AllFromFront() {
		list = append(list, name+"="+value)
	}
	return list
}

// execEnv returns the exported variables of any environment as
// "name=value" pairs, as expected by [os/exec.Cmd].
func execEnv(env expand.Environ) []string {
	if env, ok := env.(*environ); ok {
		return env.list()
	}
	var list []string
	for name, vr := range env.Each {
		if vr.Exported && vr.IsSet() {
			list = append(list, name+"="+vr.String())
		}
	}
	return list
}
