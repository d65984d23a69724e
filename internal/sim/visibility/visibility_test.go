package visibility

import (
	"testing"

	"lawrence.mp/internal/sim/entity"
)

type tree struct {
	a       *entity.Arena
	level   entity.Handle
	group   entity.Handle
	avatar  entity.Handle
	pet     entity.Handle
	inside  entity.Handle
	sibling entity.Handle
	far     entity.Handle
}

// level
// ├── group (opaque)
// │   ├── avatar
// │   │   └── pet
// │   └── inside
// └── sibling
//     └── far
func buildTree(t *testing.T) tree {
	t.Helper()
	a := entity.NewArena(nil)
	spawn := func(parent entity.Handle, name string) entity.Handle {
		e, err := a.Spawn(parent, entity.KindMoby, name)
		if err != nil {
			t.Fatalf("spawn %s: %v", name, err)
		}
		return e.Handle()
	}
	lvl, err := a.Spawn(0, entity.KindLevel, "level")
	if err != nil {
		t.Fatalf("spawn level: %v", err)
	}
	tr := tree{a: a, level: lvl.Handle()}
	tr.group = spawn(tr.level, "group")
	a.Get(tr.group).SetOpaque(true)
	tr.avatar = spawn(tr.group, "avatar")
	tr.pet = spawn(tr.avatar, "pet")
	tr.inside = spawn(tr.group, "inside")
	tr.sibling = spawn(tr.level, "sibling")
	tr.far = spawn(tr.sibling, "far")
	return tr
}

func asSet(hs []entity.Handle) map[entity.Handle]bool {
	m := map[entity.Handle]bool{}
	for _, h := range hs {
		m[h] = true
	}
	return m
}

func TestGroup_StopsAtOpaqueAncestor(t *testing.T) {
	tr := buildTree(t)

	if got := Resolve(tr.a, tr.avatar, tr.level); got != tr.group {
		t.Fatalf("resolve = %s, want group %s", got, tr.group)
	}
	got := Group(tr.a, tr.avatar, tr.level)
	want := []entity.Handle{tr.group, tr.avatar, tr.pet, tr.inside}
	if len(got) != len(want) {
		t.Fatalf("group = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("group[%d] = %s, want %s (full %v)", i, got[i], want[i], got)
		}
	}
	set := asSet(got)
	if set[tr.sibling] || set[tr.far] {
		t.Fatalf("group leaked entities outside the opaque subtree: %v", got)
	}
}

func TestGroup_FallsBackToLevel(t *testing.T) {
	tr := buildTree(t)
	tr.a.Get(tr.group).SetOpaque(false)

	if got := Resolve(tr.a, tr.avatar, tr.level); got != tr.level {
		t.Fatalf("resolve = %s, want level", got)
	}
	set := asSet(Group(tr.a, tr.avatar, tr.level))
	for _, h := range []entity.Handle{tr.group, tr.avatar, tr.pet, tr.inside, tr.sibling, tr.far} {
		if !set[h] {
			t.Fatalf("level group missing %s", h)
		}
	}
	if set[tr.level] {
		t.Fatalf("level root must not be part of the group")
	}
}

func TestGroup_OpaqueAvatarSeesOwnSubtree(t *testing.T) {
	tr := buildTree(t)
	tr.a.Get(tr.avatar).SetOpaque(true)

	got := Group(tr.a, tr.avatar, tr.level)
	if len(got) != 2 || got[0] != tr.avatar || got[1] != tr.pet {
		t.Fatalf("group = %v, want [avatar pet]", got)
	}
}

func TestGroup_DescendantOpacityDoesNotPrune(t *testing.T) {
	tr := buildTree(t)
	tr.a.Get(tr.inside).SetOpaque(true)
	tr.a.Get(tr.sibling).SetOpaque(true)
	tr.a.Get(tr.group).SetOpaque(false)

	set := asSet(Group(tr.a, tr.avatar, tr.level))
	if !set[tr.far] || !set[tr.inside] {
		t.Fatalf("downward walk must ignore descendant opacity")
	}
}

func TestGroup_DetachedAvatarUsesLevel(t *testing.T) {
	tr := buildTree(t)
	lone, err := tr.a.Spawn(0, entity.KindPlayer, "lone")
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if got := Resolve(tr.a, lone.Handle(), tr.level); got != tr.level {
		t.Fatalf("detached avatar resolve = %s, want level", got)
	}
}
