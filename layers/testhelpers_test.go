package layers

import (
	"testing"

	"github.com/chorus-fhe/ppcnn/fhe"
	"github.com/stretchr/testify/require"
)

// testFixture bundles everything a layers test needs to encrypt inputs and
// decrypt outputs against the reference engine.
type testFixture struct {
	t      *testing.T
	params fhe.Parameters
	engine fhe.Engine
	sk     fhe.SecretKey
	pk     fhe.PublicKey
	rlk    fhe.RelinearizationKey
}

func newFixture(t *testing.T, level int) *testFixture {
	params := fhe.NewCKKSParameters(4, level)
	eng := fhe.NewEngine(params)
	gen := fhe.NewKeyGenerator()
	sk, pk, err := gen.GenKeyPair()
	require.NoError(t, err)
	rlk, err := gen.GenRelinearizationKey(sk)
	require.NoError(t, err)
	return &testFixture{t: t, params: params, engine: eng, sk: sk, pk: pk, rlk: rlk}
}

func (f *testFixture) ctx() Ctx { return Ctx{Engine: f.engine, Relin: f.rlk} }

func (f *testFixture) encrypt(value float64) fhe.Ciphertext {
	pt, err := f.engine.EncodeScalar(value, f.params.Scale)
	require.NoError(f.t, err)
	ct, err := f.engine.Encrypt(pt, f.pk)
	require.NoError(f.t, err)
	return ct
}

func (f *testFixture) decrypt(ct fhe.Ciphertext) float64 {
	pt, err := f.engine.Decrypt(ct, f.sk)
	require.NoError(f.t, err)
	values, err := f.engine.Decode(pt)
	require.NoError(f.t, err)
	return values[0]
}

// encodeAt encodes value and mod-switches it down `switches` levels, the
// same pattern the compiler uses to land a plaintext at the level an
// operator will execute at.
func (f *testFixture) encodeAt(value float64, switches int) fhe.Plaintext {
	pt, err := f.engine.EncodeScalar(value, f.params.Scale)
	require.NoError(f.t, err)
	for i := 0; i < switches; i++ {
		pt, err = f.engine.ModSwitchPlaintextToNext(pt)
		require.NoError(f.t, err)
	}
	return pt
}
