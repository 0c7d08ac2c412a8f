package router

import (
	"fmt"
	"math/big"
	"time"

	wsnet "github.com/wildcore/server/internal/net"
	"github.com/wildcore/server/internal/net/packet"
	"github.com/wildcore/server/internal/net/srp6"
	"github.com/wildcore/server/internal/wserr"
	"go.uber.org/zap"
)

// AuthFailReason is ServerAuthFail's taxonomised code (spec.md §7
// "Authentication failures ... send ServerAuthFail with a taxonomised
// reason").
type AuthFailReason byte

const (
	AuthFailUnknownAccount AuthFailReason = iota
	AuthFailBadProof
	AuthFailSessionExpired
	AuthFailDuplicateLogin
)

// code maps the wire reason to its wserr.Code for structured logging, so a
// log line can be grepped/filtered by the same taxonomy the wire protocol
// uses without parsing the packet itself.
func (reason AuthFailReason) code() wserr.Code {
	switch reason {
	case AuthFailBadProof:
		return wserr.CodeBadProof
	case AuthFailSessionExpired:
		return wserr.CodeSessionExpired
	case AuthFailDuplicateLogin:
		return wserr.CodeDuplicateLogin
	default:
		return wserr.CodeUnknownAccount
	}
}

func writeBlob(w *packet.Writer, b []byte) {
	w.WriteH(uint16(len(b)))
	w.WriteBytes(b)
}

func (r *Router) sendAuthFail(conn *wsnet.Connection, reason AuthFailReason) {
	r.log.Debug("auth_fail", zap.Stringer("reason", reason.code()), zap.String("remote", conn.RemoteAddr()))
	w := packet.NewWriterWithOpcode(packet.OpServerAuthFail)
	w.WriteC(byte(reason))
	conn.SendAndClose(w.Bytes())
}

// registerAuth wires the auth/session opcode family (spec.md §6).
func (r *Router) registerAuth() {
	r.reg.Register(packet.OpClientHelloAuth, []packet.SessionState{packet.StateUnauth}, r.handleClientHelloAuth)
	r.reg.Register(packet.OpClientProof, []packet.SessionState{packet.StateAuthSRP}, r.handleClientProof)
	r.reg.Register(packet.OpClientHelloWorld, []packet.SessionState{packet.StateWorldSRP}, r.handleClientHelloWorld)
}

func (r *Router) handleClientHelloAuth(sess any, rd *packet.Reader) error {
	conn := sess.(*wsnet.Connection)
	email := rd.ReadWS()
	build := rd.ReadD()

	// spec.md's non-goals pin the wire format to a single client build
	// (16042); a mismatched build isn't a credential failure so it has no
	// taxonomised ServerAuthFail reason, it's a protocol violation that
	// closes the connection outright.
	if r.deps.ClientBuild != 0 && build != r.deps.ClientBuild {
		return fmt.Errorf("router: client build %d does not match %d", build, r.deps.ClientBuild)
	}

	ctx, cancel := storeCtx()
	defer cancel()
	accountID, salt, verifier, found, err := r.deps.Accounts.AccountByEmail(ctx, email)
	if err != nil {
		r.log.Warn("account lookup failed", zap.Error(err))
		r.sendAuthFail(conn, AuthFailUnknownAccount)
		return nil
	}
	if !found {
		r.sendAuthFail(conn, AuthFailUnknownAccount)
		return nil
	}

	challenge, err := srp6.NewServerChallenge(salt, verifier)
	if err != nil {
		return fmt.Errorf("router: build server challenge: %w", err)
	}
	conn.PendingChallenge = challenge
	conn.PendingAccountID = accountID
	conn.InstallCipher(wsnet.DeriveAuthKey(build))
	conn.SetState(packet.StateAuthSRP)

	w := packet.NewWriterWithOpcode(packet.OpServerChallenge)
	writeBlob(w, challenge.Salt)
	writeBlob(w, challenge.B.Bytes())
	send(conn, w)
	return nil
}

func (r *Router) handleClientProof(sess any, rd *packet.Reader) error {
	conn := sess.(*wsnet.Connection)
	challenge, ok := conn.PendingChallenge.(*srp6.ServerChallenge)
	if !ok || challenge == nil {
		r.sendAuthFail(conn, AuthFailBadProof)
		return nil
	}

	aLen := int(rd.ReadH())
	a := rd.ReadBytes(aLen)
	m1Len := int(rd.ReadH())
	m1 := rd.ReadBytes(m1Len)

	result, err := challenge.VerifyClientProof(srp6.ClientProof{
		A:  new(big.Int).SetBytes(a),
		M1: m1,
	})
	if err != nil {
		r.log.Debug("srp6 proof rejected", zap.Error(err))
		r.sendAuthFail(conn, AuthFailBadProof)
		return nil
	}

	r.deps.Directory.CreateAuthSession(conn.PendingAccountID, result.SessionKey, time.Now())
	conn.PendingChallenge = nil
	conn.SetState(packet.StateWorldSRP)

	w := packet.NewWriterWithOpcode(packet.OpServerProof)
	writeBlob(w, result.M2)
	send(conn, w)
	return nil
}

func (r *Router) handleClientHelloWorld(sess any, rd *packet.Reader) error {
	conn := sess.(*wsnet.Connection)
	accountID := rd.ReadQ()
	var sessionKey [16]byte
	copy(sessionKey[:], rd.ReadBytes(16))

	auth, err := r.deps.Directory.RedeemAuthSession(accountID, sessionKey, time.Now())
	if err != nil {
		r.log.Debug("world hello redeem failed", zap.Error(err))
		r.sendAuthFail(conn, AuthFailSessionExpired)
		return nil
	}

	conn.AccountID = auth.AccountID
	conn.InstallCipher(wsnet.DeriveWorldKey(auth.SessionKey))
	conn.SetState(packet.StateInWorld)

	w := packet.NewWriterWithOpcode(packet.OpServerWelcome)
	send(conn, w)
	return nil
}
