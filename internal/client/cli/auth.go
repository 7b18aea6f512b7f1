package cli

import (
	"context"
	"errors"
	"os"

	"github.com/dmitrijs2005/buildlog/internal/client/client"
	"github.com/dmitrijs2005/buildlog/internal/shared"
)

// getToken is an indirection over GetToken for tests.
var getToken = GetToken

// Login reads an access token without echo and adopts it as the session.
// The backend is pinged afterwards so an unreachable server is reported
// early, but that does not undo the sign-in.
func (a *App) Login(ctx context.Context, _ []string) error {
	tok, err := getToken(os.Stdout)
	if err != nil {
		return err
	}
	defer shared.WipeByteArray(tok)

	if err := a.session.SignIn(string(tok)); err != nil {
		return err
	}
	userID, _ := a.session.UserID()
	a.log.Info(ctx, "signed in", "user", userID, "expires", a.session.ExpiresAt())

	if err := a.client.Ping(ctx); err != nil {
		if errors.Is(err, client.ErrUnavailable) {
			a.printf("Signed in as %s, but the backend is unreachable\n", userID)
			return nil
		}
		return err
	}
	a.printf("Signed in as %s\n", userID)
	return nil
}

func (a *App) Logout(ctx context.Context, _ []string) error {
	a.session.SignOut()
	a.log.Info(ctx, "signed out")
	a.printf("Signed out\n")
	return nil
}
