package router

import (
	"encoding/binary"
	"fmt"

	"github.com/wildcore/server/internal/directory"
	wsnet "github.com/wildcore/server/internal/net"
	"github.com/wildcore/server/internal/net/packet"
	"go.uber.org/zap"
)

// Router is the PacketRouter (spec.md §2): it owns the opcode registry,
// implements net.Dispatcher for every Connection, and implements
// zone.Sink so every zone actor's broadcast calls land back here for
// translation into wire packets. Grounded on internal/net/packet/
// registry.go's Dispatch plumbing plus internal/handler/*.go's handler
// functions, narrowed to this core's opcode families.
type Router struct {
	deps  *Deps
	reg   *packet.Registry
	conns *connRegistry
	log   *zap.Logger
}

func New(deps *Deps, log *zap.Logger) *Router {
	r := &Router{
		deps:  deps,
		reg:   packet.NewRegistry(log),
		conns: newConnRegistry(),
		log:   log,
	}
	r.registerAuth()
	r.registerCharSelect() // also registers the ClientEnteredWorld world-entry opcode
	r.registerMovement()
	r.registerCombat()
	r.registerChat()
	r.registerDialog()
	r.registerGMCommands()
	return r
}

// Dispatch implements wsnet.Dispatcher. It handles the encrypted-envelope
// opcode itself (spec.md §6 "Encrypted envelope opcode") and otherwise
// delegates straight to the registry.
func (r *Router) Dispatch(conn *wsnet.Connection, state packet.SessionState, payload []byte) error {
	if len(payload) >= 2 && binary.LittleEndian.Uint16(payload[:2]) == packet.OpEncryptedEnvelope {
		return r.dispatchEnvelope(conn, state, payload)
	}
	return r.reg.Dispatch(conn, state, payload)
}

// HandleDisconnect implements wsnet.DisconnectHandler: a socket closing
// unbinds its WorldSession from the directory and despawns any entity it
// had placed in a zone (spec.md §4.1 "Socket close triggers a logout
// message to WorldDirectory which despawns any bound entity"). A
// connection that never got past character select has no WorldSession to
// unbind and returns immediately.
func (r *Router) HandleDisconnect(conn *wsnet.Connection) {
	ws, ok := r.deps.Directory.UnbindWorldSession(conn.AccountID)
	if !ok {
		return
	}
	if ws.Phase != directory.PhaseInWorld {
		return
	}
	instance, ok := r.deps.Zones.Lookup(ws.Zone)
	if !ok {
		return
	}
	instance.RemoveEntity(ws.EntityGUID)
}

// dispatchEnvelope unwraps a 0x0077 frame: the body is itself cipher-
// wrapped under the connection's current key and carries its own inner
// opcode, redispatched through the same registry (spec.md §6). An
// envelope arriving before any key is installed is a protocol violation
// that closes the connection.
func (r *Router) dispatchEnvelope(conn *wsnet.Connection, state packet.SessionState, payload []byte) error {
	inner := packet.NewReader(payload).ReadBytes(len(payload) - 2)
	decrypted, err := conn.DecryptEnvelope(inner)
	if err != nil {
		return fmt.Errorf("router: encrypted envelope before key installed: %w", err)
	}
	return r.reg.Dispatch(conn, state, decrypted)
}

func send(conn *wsnet.Connection, w *packet.Writer) {
	conn.Send(w.Bytes())
}
