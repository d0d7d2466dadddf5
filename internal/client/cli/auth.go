package cli

import (
	"context"
	"os"

	"github.com/mvogonkachristophe0112/privora12-sub002/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts for an email, display name and password and creates a new
// account. A successful registration also logs the session in, so shares that
// were waiting on this email become usable right away.
func (a *App) Register(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}

	displayName, err := getSimpleText(a.reader, "Enter display name", os.Stdout)
	if err != nil {
		return err
	}

	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	session, err := a.api.Register(ctx, email, displayName, string(password))
	if err != nil {
		return err
	}

	a.session = session
	printlnFn("Welcome,", session.User.Email)
	return nil
}

// Login prompts for credentials and authenticates against the server.
// The password is securely wiped before returning.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}

	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	session, err := a.api.Login(ctx, email, string(password))
	if err != nil {
		return err
	}

	a.session = session
	printlnFn("Logged in as", session.User.Email)
	return nil
}
