package client

import (
	"testing"

	"github.com/chorus-fhe/ppcnn/fhe"
	"github.com/stretchr/testify/require"
)

func TestNewKeyContainer(t *testing.T) {
	params := fhe.NewCKKSParameters(4, 4)
	kc, err := NewKeyContainer(fhe.NewKeyGenerator(), params)
	require.NoError(t, err)
	require.Equal(t, params, kc.Params())
	require.Equal(t, kc.PublicKey().KeyID(), kc.KeyID())
	require.NotNil(t, kc.SecretKey())
	require.NotNil(t, kc.RelinearizationKey())
}

func TestKeyContainerRegistrationTracking(t *testing.T) {
	kc, err := NewKeyContainer(fhe.NewKeyGenerator(), fhe.NewCKKSParameters(4, 4))
	require.NoError(t, err)

	require.False(t, kc.IsRegistered(1))
	kc.MarkRegistered(1)
	require.True(t, kc.IsRegistered(1))
	require.False(t, kc.IsRegistered(2))
}
