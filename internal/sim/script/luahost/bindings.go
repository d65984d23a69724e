package luahost

import (
	"github.com/go-gl/mathgl/mgl32"
	lua "github.com/yuin/gopher-lua"

	"lawrence.mp/internal/sim/entity"
	"lawrence.mp/internal/sim/labels"
)

// Player is what a script can do with the session it was created for.
type Player interface {
	ID() string
	Username() string
	Avatar() *entity.Entity
	LoadLevel(name string) error
	GiveItem(item uint16)
	SetRespawn(x, y, z, rotZ float32)
	SetPosition(pos mgl32.Vec3)
	SetState(s uint16)
	AddLabel(l *labels.Label) bool
	RemoveLabel(l *labels.Label) bool
	RemoveAllLabels()
	SpawnMoby(name string, parent entity.Handle) (*entity.Entity, error)
	DeleteMoby(h entity.Handle) error
}

const (
	playerTypeName = "lawrence.Player"
	mobyTypeName   = "lawrence.Moby"
	labelTypeName  = "lawrence.Label"
)

type mobyRef struct {
	owner Player
	e     *entity.Entity
}

func registerTypes(L *lua.LState) {
	register(L, playerTypeName, playerMethods)
	register(L, mobyTypeName, mobyMethods)
	register(L, labelTypeName, labelMethods)
}

func register(L *lua.LState, name string, methods map[string]lua.LGFunction) {
	mt := L.NewTypeMetatable(name)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), methods))
}

func wrap(L *lua.LState, typeName string, v any) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = v
	L.SetMetatable(ud, L.GetTypeMetatable(typeName))
	return ud
}

func checkPlayer(L *lua.LState) Player {
	if p, ok := L.CheckUserData(1).Value.(Player); ok {
		return p
	}
	L.ArgError(1, "Player expected")
	return nil
}

func checkMoby(L *lua.LState, n int) *mobyRef {
	if m, ok := L.CheckUserData(n).Value.(*mobyRef); ok {
		return m
	}
	L.ArgError(n, "Moby expected")
	return nil
}

func checkLabel(L *lua.LState, n int) *labels.Label {
	if l, ok := L.CheckUserData(n).Value.(*labels.Label); ok {
		return l
	}
	L.ArgError(n, "Label expected")
	return nil
}

func checkFloat(L *lua.LState, n int) float32 { return float32(L.CheckNumber(n)) }

var playerMethods = map[string]lua.LGFunction{
	"ID": func(L *lua.LState) int {
		L.Push(lua.LString(checkPlayer(L).ID()))
		return 1
	},
	"Username": func(L *lua.LState) int {
		L.Push(lua.LString(checkPlayer(L).Username()))
		return 1
	},
	"Handle": func(L *lua.LState) int {
		L.Push(lua.LNumber(checkPlayer(L).Avatar().Handle()))
		return 1
	},
	"Moby": func(L *lua.LState) int {
		p := checkPlayer(L)
		L.Push(wrap(L, mobyTypeName, &mobyRef{owner: p, e: p.Avatar()}))
		return 1
	},
	"LoadLevel": func(L *lua.LState) int {
		if err := checkPlayer(L).LoadLevel(L.CheckString(2)); err != nil {
			L.RaiseError("%v", err)
		}
		return 0
	},
	"GiveItem": func(L *lua.LState) int {
		checkPlayer(L).GiveItem(uint16(L.CheckInt(2)))
		return 0
	},
	"SetRespawn": func(L *lua.LState) int {
		checkPlayer(L).SetRespawn(checkFloat(L, 2), checkFloat(L, 3), checkFloat(L, 4), checkFloat(L, 5))
		return 0
	},
	"SetPosition": func(L *lua.LState) int {
		checkPlayer(L).SetPosition(mgl32.Vec3{checkFloat(L, 2), checkFloat(L, 3), checkFloat(L, 4)})
		return 0
	},
	"SetState": func(L *lua.LState) int {
		checkPlayer(L).SetState(uint16(L.CheckInt(2)))
		return 0
	},
	// AddLabel(text, x, y, color) creates a HUD label and shows it.
	"AddLabel": func(L *lua.LState) int {
		p := checkPlayer(L)
		l := labels.New(L.CheckString(2), uint16(L.CheckInt(3)), uint16(L.CheckInt(4)), uint32(L.CheckInt64(5)))
		p.AddLabel(l)
		L.Push(wrap(L, labelTypeName, l))
		return 1
	},
	"RemoveLabel": func(L *lua.LState) int {
		L.Push(lua.LBool(checkPlayer(L).RemoveLabel(checkLabel(L, 2))))
		return 1
	},
	"RemoveAllLabels": func(L *lua.LState) int {
		checkPlayer(L).RemoveAllLabels()
		return 0
	},
	// SpawnMoby(name [, parent]) spawns under parent, or under the level.
	"SpawnMoby": func(L *lua.LState) int {
		p := checkPlayer(L)
		var parent entity.Handle
		if L.GetTop() >= 3 && L.Get(3) != lua.LNil {
			parent = checkMoby(L, 3).e.Handle()
		}
		e, err := p.SpawnMoby(L.CheckString(2), parent)
		if err != nil {
			L.RaiseError("%v", err)
		}
		L.Push(wrap(L, mobyTypeName, &mobyRef{owner: p, e: e}))
		return 1
	},
}

var mobyMethods = map[string]lua.LGFunction{
	"Handle": func(L *lua.LState) int {
		L.Push(lua.LNumber(checkMoby(L, 1).e.Handle()))
		return 1
	},
	"Name": func(L *lua.LState) int {
		L.Push(lua.LString(checkMoby(L, 1).e.Name()))
		return 1
	},
	"Position": func(L *lua.LState) int {
		pos := checkMoby(L, 1).e.Position()
		L.Push(lua.LNumber(pos.X()))
		L.Push(lua.LNumber(pos.Y()))
		L.Push(lua.LNumber(pos.Z()))
		return 3
	},
	"SetPosition": func(L *lua.LState) int {
		checkMoby(L, 1).e.SetPosition(mgl32.Vec3{checkFloat(L, 2), checkFloat(L, 3), checkFloat(L, 4)})
		return 0
	},
	// SetRotation takes degrees.
	"SetRotation": func(L *lua.LState) int {
		checkMoby(L, 1).e.SetRotation(mgl32.Vec3{checkFloat(L, 2), checkFloat(L, 3), checkFloat(L, 4)})
		return 0
	},
	"SetScale": func(L *lua.LState) int {
		checkMoby(L, 1).e.SetScale(checkFloat(L, 2))
		return 0
	},
	"SetAlpha": func(L *lua.LState) int {
		checkMoby(L, 1).e.SetAlpha(checkFloat(L, 2))
		return 0
	},
	"SetState": func(L *lua.LState) int {
		checkMoby(L, 1).e.SetState(uint16(L.CheckInt(2)))
		return 0
	},
	"SetAnimationID": func(L *lua.LState) int {
		L.Push(lua.LBool(checkMoby(L, 1).e.SetAnimationID(L.CheckInt(2))))
		return 1
	},
	"SetAnimationDuration": func(L *lua.LState) int {
		checkMoby(L, 1).e.SetAnimationDuration(L.CheckInt(2))
		return 0
	},
	"SetActive": func(L *lua.LState) int {
		checkMoby(L, 1).e.SetActive(L.CheckBool(2))
		return 0
	},
	"SetOpaque": func(L *lua.LState) int {
		checkMoby(L, 1).e.SetOpaque(L.CheckBool(2))
		return 0
	},
	"SetInstanced": func(L *lua.LState) int {
		checkMoby(L, 1).e.SetInstanced(L.CheckBool(2))
		return 0
	},
	"Delete": func(L *lua.LState) int {
		m := checkMoby(L, 1)
		if err := m.owner.DeleteMoby(m.e.Handle()); err != nil {
			L.RaiseError("%v", err)
		}
		return 0
	},
}

var labelMethods = map[string]lua.LGFunction{
	"Text": func(L *lua.LState) int {
		L.Push(lua.LString(checkLabel(L, 1).Text()))
		return 1
	},
	"SetText": func(L *lua.LState) int {
		checkLabel(L, 1).SetText(L.CheckString(2))
		return 0
	},
	"SetPosition": func(L *lua.LState) int {
		checkLabel(L, 1).SetPosition(uint16(L.CheckInt(2)), uint16(L.CheckInt(3)))
		return 0
	},
	"SetColor": func(L *lua.LState) int {
		checkLabel(L, 1).SetColor(uint32(L.CheckInt64(2)))
		return 0
	},
}
