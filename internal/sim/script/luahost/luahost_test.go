package luahost

import (
	"os"
	"path/filepath"
	"testing"

	"lawrence.mp/internal/sim/script"
)

const playerScript = `
Player = {}
Player.__index = Player

function Player.new(cls, handle)
  return setmetatable({ handle = handle, held = 0 }, cls)
end

function Player:OnControllerInputHeld(input)
  self.held = input
  return input * 2
end

function Player:OnGameStateChanged(state)
  return "state:" .. tostring(state)
end

function Player:OnRespawned()
  error("respawn failed")
end

Broken = { new = 5 }
`

func TestNewBehavior_InvokesMethods(t *testing.T) {
	h, err := LoadString(playerScript)
	if err != nil {
		t.Fatalf("LoadString: %v", err)
	}
	defer h.Close()

	b, err := h.NewBehavior("Player", 12, nil)
	if err != nil {
		t.Fatalf("NewBehavior: %v", err)
	}

	res, err := b.Invoke(script.EventInputHeld, 4)
	if err != nil {
		t.Fatalf("Invoke held: %v", err)
	}
	if res != float64(8) {
		t.Fatalf("held result = %#v, want 8", res)
	}

	res, err = b.Invoke(script.EventGameStateChanged, uint16(3))
	if err != nil || res != "state:3" {
		t.Fatalf("state changed = (%#v,%v)", res, err)
	}
}

func TestInvoke_MissingMethodIsNoop(t *testing.T) {
	h, err := LoadString(playerScript)
	if err != nil {
		t.Fatalf("LoadString: %v", err)
	}
	defer h.Close()
	b, err := h.NewBehavior("Player", 1, nil)
	if err != nil {
		t.Fatalf("NewBehavior: %v", err)
	}
	res, err := b.Invoke(script.EventAttack, uint32(2))
	if err != nil || res != nil {
		t.Fatalf("missing method = (%#v,%v), want (nil,nil)", res, err)
	}
}

func TestInvoke_ScriptErrorSurfaces(t *testing.T) {
	h, err := LoadString(playerScript)
	if err != nil {
		t.Fatalf("LoadString: %v", err)
	}
	defer h.Close()
	b, err := h.NewBehavior("Player", 1, nil)
	if err != nil {
		t.Fatalf("NewBehavior: %v", err)
	}
	if _, err := b.Invoke(script.EventRespawned); err == nil {
		t.Fatalf("expected error from failing handler")
	}

	d := script.NewDispatcher(nil)
	if _, ok := d.Dispatch(b, script.EventRespawned, "moby#1"); ok {
		t.Fatalf("dispatcher should contain the failure")
	}
}

func TestNewBehavior_BadClass(t *testing.T) {
	h, err := LoadString(playerScript)
	if err != nil {
		t.Fatalf("LoadString: %v", err)
	}
	defer h.Close()
	if _, err := h.NewBehavior("Missing", 1, nil); err == nil {
		t.Fatalf("expected error for undefined class")
	}
	if _, err := h.NewBehavior("Broken", 1, nil); err == nil {
		t.Fatalf("expected error for non-function constructor")
	}
}

func TestLoad_File(t *testing.T) {
	p := filepath.Join(t.TempDir(), "player.lua")
	if err := os.WriteFile(p, []byte(playerScript), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	h, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	h.Close()

	if _, err := Load(filepath.Join(t.TempDir(), "nope.lua")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
