// Package srp6 implements the WildStar-flavored SRP6 variant spec.md §4.1
// pins exactly: 1024-bit modulus, generator 2, SHA-256 hashing,
// little-endian big-integer encoding, and a post-hash "reverse as 4-byte
// chunks" step on the server's evidence message. There is no third-party
// SRP6 implementation in the example pack or its dependency graph, and the
// wire-level quirks here (little-endian encoding, the M2 chunk reversal)
// are specific enough that a generic SRP library would not produce
// compatible output anyway — grounded instead on math/big + crypto/sha256,
// the same primitives the teacher itself reaches for whenever it needs
// modular arithmetic or hashing (see internal/persist/account_repo.go's use
// of crypto/... for password hashing).
package srp6

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"math/big"
	"strings"
)

// N is the RFC 5054 1024-bit safe prime, chosen per the DESIGN.md Open
// Question decision (spec.md §9 leaves the exact constant unspecified,
// naming only "the 1024-bit variant").
var N, _ = new(big.Int).SetString(
	"EEAF0AB9ADB38DD69C33F80AFA8FC5E86072618775FF3C0B9EA2314C9C256576D674DF7"+
		"496EA81D3383B4813D692C6E0E0D5D8E250B98BE48E495C1D6089DAD15DC7D7B46154"+
		"D6B6CE8EF4AD69B15D4982559B297BCF1885C529F566660E57EC68EDBC3C05726CC02"+
		"FD4CBF4976EAA9AFD5138FE8376435B9FC61D2FC0EB06E3", 16)

// g is the generator (spec.md §4.1 "generator g=2").
var g = big.NewInt(2)

// k is the SRP6 multiplier. WildStar's variant uses the plain SRP6
// k=3 constant rather than SRP6a's k = H(N, g); spec.md is silent on this
// detail, and the original client negotiates with k=3 (see original
// implementation's SRP6 pairing in the import/auth layer it was distilled
// from).
var k = big.NewInt(3)

func sha256Sum(parts ...[]byte) []byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// toLittleEndian returns n's absolute value as a little-endian byte slice,
// the encoding spec.md §4.1 mandates for every SRP big-integer on the wire.
func toLittleEndian(n *big.Int) []byte {
	be := n.Bytes()
	le := make([]byte, len(be))
	for i, b := range be {
		le[len(be)-1-i] = b
	}
	return le
}

func fromLittleEndian(le []byte) *big.Int {
	be := make([]byte, len(le))
	for i, b := range le {
		be[len(le)-1-i] = b
	}
	return new(big.Int).SetBytes(be)
}

// reverse4ByteChunks reverses data's byte representation in 4-byte words —
// the WildStar-specific mangling spec.md §4.1 requires on M2 before it is
// sent to the client. data's length must be a multiple of 4.
func reverse4ByteChunks(data []byte) []byte {
	out := make([]byte, len(data))
	for i := 0; i+4 <= len(data); i += 4 {
		out[i], out[i+1], out[i+2], out[i+3] = data[i+3], data[i+2], data[i+1], data[i]
	}
	return out
}

// Verifier holds what the character store persists per account (spec.md
// §6 "account_by_email(email) -> (account_id, salt, verifier)?"): the
// computed password verifier and the salt it was derived with.
type Verifier struct {
	Salt     []byte
	Verifier *big.Int
}

// ComputeVerifier derives (salt, v) from an email/password pair for
// account creation (spec.md §4.1 "Verifier generation: P =
// SHA256(lower(email) ':' password); x = H(salt, P); v = g^x mod N").
func ComputeVerifier(email, password string) (*Verifier, error) {
	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("srp6: generate salt: %w", err)
	}
	p := sha256Sum([]byte(strings.ToLower(email) + ":" + password))
	x := fromLittleEndian(sha256Sum(salt, p))
	v := new(big.Int).Exp(g, x, N)
	return &Verifier{Salt: salt, Verifier: v}, nil
}

// ServerChallenge is the state a ServerChallenge response is built from and
// that the server retains until ClientProof arrives.
type ServerChallenge struct {
	Salt     []byte
	B        *big.Int
	b        *big.Int
	verifier *big.Int
}

// NewServerChallenge computes B = k*v + g^b mod N for a fresh random
// exponent b, given the account's stored salt and verifier (spec.md §4.1
// handshake step "ServerChallenge(salt, B)").
func NewServerChallenge(salt []byte, verifier *big.Int) (*ServerChallenge, error) {
	b, err := rand.Int(rand.Reader, N)
	if err != nil {
		return nil, fmt.Errorf("srp6: generate b: %w", err)
	}
	gb := new(big.Int).Exp(g, b, N)
	kv := new(big.Int).Mul(k, verifier)
	B := new(big.Int).Mod(new(big.Int).Add(kv, gb), N)
	return &ServerChallenge{Salt: salt, B: B, b: b, verifier: verifier}, nil
}

// ClientProof is the (A, M1) pair the client sends after receiving the
// challenge (spec.md §4.1 "ClientProof(A, M1)").
type ClientProof struct {
	A  *big.Int
	M1 []byte
}

// VerifyResult carries the server's session key and evidence message on a
// successful proof verification.
type VerifyResult struct {
	SessionKey [16]byte
	M2         []byte // already chunk-reversed, ready to put on the wire
}

// VerifyClientProof computes the shared secret S = (A * v^u)^b mod N,
// recomputes M1 server-side, and — on match — derives the session key and
// M2 evidence (spec.md §4.1 "ServerProof(M2) | reject"). The returned
// error is non-nil (and VerifyResult is the zero value) on any mismatch or
// degenerate A.
func (c *ServerChallenge) VerifyClientProof(proof ClientProof) (VerifyResult, error) {
	if new(big.Int).Mod(proof.A, N).Sign() == 0 {
		return VerifyResult{}, fmt.Errorf("srp6: A mod N == 0")
	}

	u := fromLittleEndian(sha256Sum(toLittleEndian(proof.A), toLittleEndian(c.B)))
	if u.Sign() == 0 {
		return VerifyResult{}, fmt.Errorf("srp6: u == 0")
	}

	vu := new(big.Int).Exp(c.verifier, u, N)
	base := new(big.Int).Mod(new(big.Int).Mul(proof.A, vu), N)
	S := new(big.Int).Exp(base, c.b, N)

	sessionKeyFull := sha256Sum(toLittleEndian(S))
	expectedM1 := sha256Sum(toLittleEndian(proof.A), toLittleEndian(c.B), sessionKeyFull)
	if !byteEqual(expectedM1, proof.M1) {
		return VerifyResult{}, fmt.Errorf("srp6: M1 mismatch")
	}

	m2 := sha256Sum(toLittleEndian(proof.A), expectedM1, sessionKeyFull)
	m2 = reverse4ByteChunks(m2)

	var key [16]byte
	copy(key[:], sessionKeyFull[:16])

	return VerifyResult{SessionKey: key, M2: m2}, nil
}

func byteEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ClientSession is the client-side half of the handshake, included for
// test-side verification (a real client is out of scope per spec.md §1
// non-goals, but round-trip tests need one).
type ClientSession struct {
	email, password string
	salt            []byte
	a               *big.Int
	A               *big.Int
}

// NewClientSession picks a random client exponent a and computes A = g^a
// mod N.
func NewClientSession(email, password string, salt []byte) (*ClientSession, error) {
	a, err := rand.Int(rand.Reader, N)
	if err != nil {
		return nil, fmt.Errorf("srp6: generate a: %w", err)
	}
	A := new(big.Int).Exp(g, a, N)
	return &ClientSession{email: email, password: password, salt: salt, a: a, A: A}, nil
}

// ComputeProof derives M1 from the server's B, mirroring the server-side
// derivation in VerifyClientProof.
func (c *ClientSession) ComputeProof(B *big.Int) ClientProof {
	p := sha256Sum([]byte(strings.ToLower(c.email) + ":" + c.password))
	x := fromLittleEndian(sha256Sum(c.salt, p))

	u := fromLittleEndian(sha256Sum(toLittleEndian(c.A), toLittleEndian(B)))

	gx := new(big.Int).Exp(g, x, N)
	kgx := new(big.Int).Mul(k, gx)
	base := new(big.Int).Mod(new(big.Int).Sub(B, kgx), N)
	if base.Sign() < 0 {
		base.Add(base, N)
	}
	exp := new(big.Int).Add(c.a, new(big.Int).Mul(u, x))
	S := new(big.Int).Exp(base, exp, N)

	sessionKeyFull := sha256Sum(toLittleEndian(S))
	m1 := sha256Sum(toLittleEndian(c.A), toLittleEndian(B), sessionKeyFull)
	return ClientProof{A: c.A, M1: m1}
}

// VerifyServerProof checks M2 (after undoing the chunk reversal) against
// the client's own derivation, and returns the shared session key on
// success.
func (c *ClientSession) VerifyServerProof(B *big.Int, m1 []byte, m2 []byte) ([16]byte, error) {
	p := sha256Sum([]byte(strings.ToLower(c.email) + ":" + c.password))
	x := fromLittleEndian(sha256Sum(c.salt, p))
	u := fromLittleEndian(sha256Sum(toLittleEndian(c.A), toLittleEndian(B)))
	gx := new(big.Int).Exp(g, x, N)
	kgx := new(big.Int).Mul(k, gx)
	base := new(big.Int).Mod(new(big.Int).Sub(B, kgx), N)
	if base.Sign() < 0 {
		base.Add(base, N)
	}
	exp := new(big.Int).Add(c.a, new(big.Int).Mul(u, x))
	S := new(big.Int).Exp(base, exp, N)
	sessionKeyFull := sha256Sum(toLittleEndian(S))

	expected := reverse4ByteChunks(sha256Sum(toLittleEndian(c.A), m1, sessionKeyFull))
	if !byteEqual(expected, m2) {
		return [16]byte{}, fmt.Errorf("srp6: M2 mismatch")
	}
	var key [16]byte
	copy(key[:], sessionKeyFull[:16])
	return key, nil
}
