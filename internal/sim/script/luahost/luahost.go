// Package luahost runs entity behaviors in an embedded Lua state.
//
// A script class is a global table with a `new(class, handle, player)`
// constructor returning the per-entity object; player is the session's
// Player userdata, or nil for entities that have none. Events are looked up
// as methods on that object and called with the object as first argument.
// Missing methods are a no-op.
package luahost

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"lawrence.mp/internal/sim/script"
)

// Host owns a Lua state. It is not safe for concurrent use; the world loop
// goroutine is the only caller.
type Host struct {
	L *lua.LState
}

func newState() *lua.LState {
	L := lua.NewState()
	registerTypes(L)
	return L
}

func Load(path string) (*Host, error) {
	L := newState()
	if err := L.DoFile(path); err != nil {
		L.Close()
		return nil, fmt.Errorf("load script %s: %w", path, err)
	}
	return &Host{L: L}, nil
}

func LoadString(src string) (*Host, error) {
	L := newState()
	if err := L.DoString(src); err != nil {
		L.Close()
		return nil, fmt.Errorf("load script: %w", err)
	}
	return &Host{L: L}, nil
}

func (h *Host) Close() {
	if h != nil && h.L != nil {
		h.L.Close()
	}
}

func (h *Host) NewBehavior(class string, handle uint32, self any) (script.Behavior, error) {
	cls, ok := h.L.GetGlobal(class).(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("unable to create %s entity: `%s` is nil or not a table", class, class)
	}
	ctor, ok := h.L.GetField(cls, "new").(*lua.LFunction)
	if !ok {
		return nil, fmt.Errorf("unable to create %s entity: `%s.new` is not a function", class, class)
	}
	var player lua.LValue = lua.LNil
	if p, ok := self.(Player); ok {
		player = wrap(h.L, playerTypeName, p)
	}
	if err := h.L.CallByParam(lua.P{Fn: ctor, NRet: 1, Protect: true}, cls, lua.LNumber(handle), player); err != nil {
		return nil, fmt.Errorf("%s.new: %w", class, err)
	}
	ret := h.L.Get(-1)
	h.L.Pop(1)
	obj, ok := ret.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("%s.new returned %s, want table", class, ret.Type())
	}
	return &behavior{L: h.L, obj: obj}, nil
}

type behavior struct {
	L   *lua.LState
	obj *lua.LTable
}

func (b *behavior) Invoke(ev script.Event, args ...any) (any, error) {
	fn, ok := b.L.GetField(b.obj, string(ev)).(*lua.LFunction)
	if !ok {
		return nil, nil
	}
	largs := make([]lua.LValue, 0, len(args)+1)
	largs = append(largs, b.obj)
	for _, a := range args {
		largs = append(largs, toLua(a))
	}
	if err := b.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, largs...); err != nil {
		return nil, err
	}
	ret := b.L.Get(-1)
	b.L.Pop(1)
	return fromLua(ret), nil
}

func toLua(v any) lua.LValue {
	switch x := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(x)
	case string:
		return lua.LString(x)
	case int:
		return lua.LNumber(x)
	case int32:
		return lua.LNumber(x)
	case int64:
		return lua.LNumber(x)
	case uint16:
		return lua.LNumber(x)
	case uint32:
		return lua.LNumber(x)
	case uint64:
		return lua.LNumber(x)
	case float32:
		return lua.LNumber(x)
	case float64:
		return lua.LNumber(x)
	case fmt.Stringer:
		return lua.LString(x.String())
	default:
		return lua.LString(fmt.Sprint(x))
	}
}

func fromLua(v lua.LValue) any {
	switch x := v.(type) {
	case lua.LNumber:
		return float64(x)
	case lua.LString:
		return string(x)
	case lua.LBool:
		return bool(x)
	default:
		if v == lua.LNil {
			return nil
		}
		return v.String()
	}
}
