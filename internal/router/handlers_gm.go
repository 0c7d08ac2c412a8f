package router

import (
	"github.com/wildcore/server/internal/entity"
	wsnet "github.com/wildcore/server/internal/net"
	"github.com/wildcore/server/internal/net/packet"
	"go.uber.org/zap"
)

// minGMAccessLevel gates the debug command family (SPEC_FULL.md §4),
// mirroring internal/handler/gmcommand.go's access-level check in the
// teacher.
const minGMAccessLevel = 100

// registerGMCommands wires the supplemented GM/debug family.
func (r *Router) registerGMCommands() {
	r.reg.Register(packet.OpClientGMCommand, []packet.SessionState{packet.StateInWorld}, r.handleGMCommand)
}

func (r *Router) sendGMResult(conn *wsnet.Connection, ok bool) {
	w := packet.NewWriterWithOpcode(packet.OpServerGMResult)
	if ok {
		w.WriteC(1)
	} else {
		w.WriteC(0)
	}
	send(conn, w)
}

func (r *Router) handleGMCommand(sess any, rd *packet.Reader) error {
	conn := sess.(*wsnet.Connection)
	if conn.CharAccessLevel < minGMAccessLevel {
		r.log.Warn("gm command from insufficient access level", zap.Int64("account", conn.AccountID))
		r.sendGMResult(conn, false)
		return nil
	}

	cmd := packet.GMCommand(rd.ReadC())
	ws, ok := r.deps.Directory.BySession(conn.AccountID)
	if !ok {
		r.sendGMResult(conn, false)
		return nil
	}
	instance, ok := r.deps.Zones.Lookup(ws.Zone)
	if !ok {
		r.sendGMResult(conn, false)
		return nil
	}

	switch cmd {
	case packet.GMTeleport:
		pos := entity.Vec3{X: float64(rd.ReadF32()), Y: float64(rd.ReadF32()), Z: float64(rd.ReadF32())}
		instance.UpdatePosition(ws.EntityGUID, pos, entity.Rotation{})
	case packet.GMSpawnCreature:
		templateID := rd.ReadQ()
		r.log.Info("gm spawn creature requested", zap.Int64("template", templateID))
		// Creature construction needs a CreatureTemplate from the static
		// data store (internal/staticdata), not yet wired into Deps; a
		// real spawn is left to that package's integration.
	case packet.GMHeal:
		// Routed through the zone actor's own mailbox (Instance.Heal),
		// never a direct field write on the *entity.Entity Lookup returns —
		// that pointer is still owned by the actor's own goroutine.
		instance.Heal(ws.EntityGUID)
	}
	r.sendGMResult(conn, true)
	return nil
}
