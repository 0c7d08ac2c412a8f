package router

import (
	"github.com/wildcore/server/internal/entity"
	wsnet "github.com/wildcore/server/internal/net"
	"github.com/wildcore/server/internal/net/packet"
	"go.uber.org/zap"
)

// registerMovement wires ClientMovement (spec.md §6).
func (r *Router) registerMovement() {
	r.reg.Register(packet.OpClientMovement, []packet.SessionState{packet.StateInWorld}, r.handleMovement)
}

// handleMovement applies a position update (spec.md §4.4 "Position
// updates from clients"). Rate-sanity speed-cap clamping happens inside
// the zone actor's UpdatePosition (spec.md §4.5/§7), since it needs the
// entity's last accepted position and timestamp, both actor-owned state;
// a movement for a session not yet placed in a zone is a session rule
// violation (spec.md §7) — dropped and logged, connection kept.
func (r *Router) handleMovement(sess any, rd *packet.Reader) error {
	conn := sess.(*wsnet.Connection)
	ws, ok := r.deps.Directory.BySession(conn.AccountID)
	if !ok || ws.EntityGUID == 0 {
		r.log.Warn("movement for unbound session", zap.Int64("account", conn.AccountID))
		return nil
	}

	pos := entity.Vec3{X: float64(rd.ReadF32()), Y: float64(rd.ReadF32()), Z: float64(rd.ReadF32())}
	rot := entity.Rotation{X: float64(rd.ReadF32()), Y: float64(rd.ReadF32()), Z: float64(rd.ReadF32())}
	_ = rd.ReadF32() // vel.x
	_ = rd.ReadF32() // vel.y
	_ = rd.ReadF32() // vel.z
	_ = rd.ReadD()   // flags bitfield
	_ = rd.ReadQ()   // client timestamp, monotonic sanity-check input only

	instance, ok := r.deps.Zones.Lookup(ws.Zone)
	if !ok {
		return nil
	}
	instance.UpdatePosition(ws.EntityGUID, pos, rot)
	return nil
}
