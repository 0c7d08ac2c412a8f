// Package formula evaluates spell-effect magnitude formulas in Lua,
// mirroring the teacher's division of labor: Go owns state transitions, Lua
// owns the numeric tuning knobs a designer needs to iterate on without a
// rebuild. Grounded on internal/scripting/engine.go's CalcSkillDamage /
// CalcMeleeAttack table-marshal-call-unmarshal pattern.
package formula

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Context carries the inputs a formula may read. Not every field is
// meaningful for every formula; a script ignores what it doesn't need.
type Context struct {
	CasterLevel int32
	CasterPower int64 // an already-aggregated offensive/healing stat
	TargetLevel int32
	TargetArmor int64
	BaseAmount  int64 // the spell_effect's static amount before scaling
}

// Result is what a formula script returns.
type Result struct {
	Amount int64
	IsCrit bool
}

// Engine wraps a single gopher-lua VM holding every loaded formula script.
// Single-goroutine access only, matching the teacher's Engine — callers
// invoke it from the owning zone actor's tick goroutine.
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a formula engine and loads every .lua file directly
// under scriptsDir (no subdirectory convention — formulas are flat, unlike
// the teacher's core/combat/item/... script tree, since this engine has a
// single concern).
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{SkipOpenLibs: false})
	e := &Engine{vm: vm, log: log}

	entries, err := os.ReadDir(scriptsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return e, nil
		}
		vm.Close()
		return nil, fmt.Errorf("read formula dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(scriptsDir, entry.Name())
		if err := vm.DoFile(path); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded formula script", zap.String("file", path))
	}
	return e, nil
}

// Close releases the underlying Lua VM.
func (e *Engine) Close() { e.vm.Close() }

// Evaluate calls the named Lua global as a formula function. Missing
// functions and Lua-side errors fall back to Context.BaseAmount unscaled —
// the pipeline MUST still apply an effect even if its formula script is
// absent or broken, matching the teacher's fail-open CombatResult defaults.
func (e *Engine) Evaluate(formulaName string, ctx Context) Result {
	fn := e.vm.GetGlobal(formulaName)
	if fn == lua.LNil {
		e.log.Error("formula function not found", zap.String("formula", formulaName))
		return Result{Amount: ctx.BaseAmount}
	}

	t := e.vm.NewTable()
	t.RawSetString("caster_level", lua.LNumber(ctx.CasterLevel))
	t.RawSetString("caster_power", lua.LNumber(ctx.CasterPower))
	t.RawSetString("target_level", lua.LNumber(ctx.TargetLevel))
	t.RawSetString("target_armor", lua.LNumber(ctx.TargetArmor))
	t.RawSetString("base_amount", lua.LNumber(ctx.BaseAmount))

	if err := e.vm.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, t); err != nil {
		e.log.Error("formula evaluation error", zap.String("formula", formulaName), zap.Error(err))
		return Result{Amount: ctx.BaseAmount}
	}

	ret := e.vm.Get(-1)
	e.vm.Pop(1)

	rt, ok := ret.(*lua.LTable)
	if !ok {
		e.log.Error("formula returned non-table", zap.String("formula", formulaName))
		return Result{Amount: ctx.BaseAmount}
	}

	return Result{
		Amount: int64(lua.LVAsNumber(rt.RawGetString("amount"))),
		IsCrit: rt.RawGetString("is_crit") == lua.LTrue,
	}
}
