package router

import (
	"github.com/wildcore/server/internal/entity"
	wsnet "github.com/wildcore/server/internal/net"
	"github.com/wildcore/server/internal/net/packet"
	"go.uber.org/zap"
)

// registerCombat wires ClientCastSpell/ClientCancelCast/ClientSetTarget
// (spec.md §6).
func (r *Router) registerCombat() {
	r.reg.Register(packet.OpClientCastSpell, []packet.SessionState{packet.StateInWorld}, r.handleCastSpell)
	r.reg.Register(packet.OpClientCancelCast, []packet.SessionState{packet.StateInWorld}, r.handleCancelCast)
	r.reg.Register(packet.OpClientSetTarget, []packet.SessionState{packet.StateInWorld}, r.handleSetTarget)
}

// handleCastSpell resolves a cast through the owning zone actor (spec.md
// §4.4 "Spell effect pipeline"); the actor itself fires Sink.BuffApply/
// BuffRemove/CombatOutcome for the broadcast, so this handler only needs
// to forward the request and surface gameplay-invariant failures per
// spec.md §7 ("damage from unknown attacker ... drop silently").
func (r *Router) handleCastSpell(sess any, rd *packet.Reader) error {
	conn := sess.(*wsnet.Connection)
	targetGUID := rd.ReadQ()
	spellID := rd.ReadQ()

	ws, ok := r.deps.Directory.BySession(conn.AccountID)
	if !ok || ws.EntityGUID == 0 {
		r.log.Warn("cast by unbound session")
		return nil
	}
	instance, ok := r.deps.Zones.Lookup(ws.Zone)
	if !ok {
		return nil
	}
	if _, err := instance.ApplySpellEffect(ws.EntityGUID, entity.GUID(targetGUID), spellID); err != nil {
		r.log.Debug("cast rejected", zap.Error(err))
	}
	return nil
}

func (r *Router) handleCancelCast(sess any, rd *packet.Reader) error {
	// Cast timers are cancellable only by the actor that owns them
	// (spec.md §4.5 "Cancellation & timeouts"); this core's cast
	// resolution is synchronous rather than timer-based (spec.md does not
	// require a cast-bar duration), so there is nothing to cancel — the
	// opcode is accepted and ignored for protocol completeness.
	return nil
}

func (r *Router) handleSetTarget(sess any, rd *packet.Reader) error {
	_ = rd.ReadQ() // target GUID; target tracking is client-authoritative display state
	return nil
}
