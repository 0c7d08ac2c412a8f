package srp6_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildcore/server/internal/net/srp6"
)

func TestHandshake_RoundTripDerivesMatchingSessionKey(t *testing.T) {
	v, err := srp6.ComputeVerifier("a@b.c", "hunter2")
	require.NoError(t, err)

	client, err := srp6.NewClientSession("a@b.c", "hunter2", v.Salt)
	require.NoError(t, err)

	challenge, err := srp6.NewServerChallenge(v.Salt, v.Verifier)
	require.NoError(t, err)

	proof := client.ComputeProof(challenge.B)
	result, err := challenge.VerifyClientProof(proof)
	require.NoError(t, err)

	clientKey, err := client.VerifyServerProof(challenge.B, proof.M1, result.M2)
	require.NoError(t, err)
	assert.Equal(t, result.SessionKey, clientKey)
}

func TestVerifyClientProof_WrongPasswordFails(t *testing.T) {
	v, err := srp6.ComputeVerifier("a@b.c", "hunter2")
	require.NoError(t, err)

	client, err := srp6.NewClientSession("a@b.c", "wrong-password", v.Salt)
	require.NoError(t, err)

	challenge, err := srp6.NewServerChallenge(v.Salt, v.Verifier)
	require.NoError(t, err)

	proof := client.ComputeProof(challenge.B)
	_, err = challenge.VerifyClientProof(proof)
	assert.Error(t, err)
}

func TestVerifyClientProof_RejectsDegenerateA(t *testing.T) {
	v, err := srp6.ComputeVerifier("a@b.c", "hunter2")
	require.NoError(t, err)

	challenge, err := srp6.NewServerChallenge(v.Salt, v.Verifier)
	require.NoError(t, err)

	_, err = challenge.VerifyClientProof(srp6.ClientProof{A: big.NewInt(0), M1: nil})
	assert.Error(t, err)
}
