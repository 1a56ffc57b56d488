package authclient_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alfeusrudyanta/simple-social-media/internal/authclient"
	"github.com/alfeusrudyanta/simple-social-media/internal/login"
)

func TestStaticClient(t *testing.T) {
	t.Parallel()

	client := authclient.NewStaticClient(map[string]string{"Demo@Example.com": "password123"})

	result, err := client.Login(context.Background(), login.Credentials{Email: "demo@example.com", Password: "password123"})
	require.NoError(t, err)
	require.True(t, result.Succeeded())

	again, err := client.Login(context.Background(), login.Credentials{Email: " DEMO@example.com ", Password: "password123"})
	require.NoError(t, err)
	require.NotEqual(t, result.Token, again.Token, "each sign-in issues a fresh token")

	result, err = client.Login(context.Background(), login.Credentials{Email: "demo@example.com", Password: "password124"})
	require.NoError(t, err)
	require.False(t, result.Succeeded())

	result, err = client.Login(context.Background(), login.Credentials{Email: "nobody@example.com", Password: "password123"})
	require.NoError(t, err)
	require.False(t, result.Succeeded())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.Login(ctx, login.Credentials{Email: "demo@example.com", Password: "password123"})
	require.ErrorIs(t, err, context.Canceled)
}
