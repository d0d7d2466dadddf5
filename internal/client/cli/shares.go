package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mvogonkachristophe0112/privora12-sub002/internal/client/api"
)

// Share interactively creates a grant for a file. The target is one of a
// known user id, an email (which may belong to nobody yet) or a group id.
func (a *App) Share(ctx context.Context, fileID string) error {
	req := api.ShareRequest{FileID: fileID}

	target, err := getSimpleText(a.reader, "Share with (email, user:<id> or group:<id>)", os.Stdout)
	if err != nil {
		return err
	}
	switch {
	case strings.HasPrefix(target, "user:"):
		req.RecipientID = strings.TrimPrefix(target, "user:")
	case strings.HasPrefix(target, "group:"):
		req.GroupID = strings.TrimPrefix(target, "group:")
	default:
		req.RecipientEmail = target
	}

	perms, err := getSimpleText(a.reader, "Permissions (comma-separated: view,download,edit)", os.Stdout)
	if err != nil {
		return err
	}
	for _, p := range strings.Split(perms, ",") {
		if p = strings.TrimSpace(p); p != "" {
			req.Permissions = append(req.Permissions, strings.ToUpper(p))
		}
	}

	expiry, err := getSimpleText(a.reader, "Expires after, e.g. 24h or 30m (empty for never)", os.Stdout)
	if err != nil {
		return err
	}
	if expiry != "" {
		d, err := time.ParseDuration(expiry)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", expiry, err)
		}
		at := time.Now().Add(d)
		req.ExpiresAt = &at
	}

	limit, err := getSimpleText(a.reader, "Max downloads (empty for unlimited)", os.Stdout)
	if err != nil {
		return err
	}
	if limit != "" {
		n, err := strconv.ParseInt(limit, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid count %q: %w", limit, err)
		}
		req.MaxAccessCount = &n
	}

	if getConfirm(a.reader, "Protect with a password?", os.Stdout) {
		pw, err := getPassword(os.Stdout)
		if err != nil {
			return err
		}
		req.Password = string(pw)
	}

	share, err := a.api.CreateShare(ctx, req)
	if err != nil {
		return err
	}
	printlnFn("Created share", share.ID)
	return nil
}

// Shares lists the grants on one of the user's files.
func (a *App) Shares(ctx context.Context, fileID string) error {
	shares, err := a.api.ListSharesForFile(ctx, fileID)
	if err != nil {
		return err
	}
	a.printShares(shares)
	return nil
}

// Received lists grants other users have extended to the current user.
func (a *App) Received(ctx context.Context) error {
	shares, err := a.api.ListReceivedShares(ctx)
	if err != nil {
		return err
	}
	if len(shares) == 0 {
		printlnFn("Nothing has been shared with you.")
		return nil
	}
	a.printShares(shares)
	return nil
}

func (a *App) printShares(shares []api.Share) {
	for _, s := range shares {
		target := s.RecipientEmail
		if s.RecipientID != "" {
			target = "user:" + s.RecipientID
		}
		if s.GroupID != "" {
			target = "group:" + s.GroupID
		}

		extras := make([]string, 0, 4)
		if s.ExpiresAt != nil {
			extras = append(extras, "expires "+s.ExpiresAt.Format("2006-01-02 15:04"))
		}
		if s.MaxAccessCount != nil {
			extras = append(extras, fmt.Sprintf("used %d/%d", s.AccessCount, *s.MaxAccessCount))
		}
		if s.Protected {
			extras = append(extras, "password")
		}
		if s.Revoked {
			extras = append(extras, "REVOKED")
		}

		line := fmt.Sprintf("%s  file=%s  %s  [%s]",
			s.ID, s.FileID, target, strings.Join(s.Permissions, ","))
		if len(extras) > 0 {
			line += "  (" + strings.Join(extras, ", ") + ")"
		}
		printlnFn(line)
	}
}

func (a *App) Accept(ctx context.Context, shareID string) error {
	if err := a.api.AcceptShare(ctx, shareID); err != nil {
		return err
	}
	printlnFn("Accepted", shareID)
	return nil
}

func (a *App) Reject(ctx context.Context, shareID string) error {
	if err := a.api.RejectShare(ctx, shareID); err != nil {
		return err
	}
	printlnFn("Rejected", shareID)
	return nil
}

func (a *App) Revoke(ctx context.Context, shareID string) error {
	if err := a.api.RevokeShare(ctx, shareID); err != nil {
		return err
	}
	printlnFn("Revoked", shareID)
	return nil
}

// CreateGroup creates a named group owned by the current user; grants can
// then target it by id.
func (a *App) CreateGroup(ctx context.Context, name string) error {
	group, err := a.api.CreateGroup(ctx, name)
	if err != nil {
		return err
	}
	printlnFn("Created group", group.ID)
	return nil
}

func (a *App) AddGroupMember(ctx context.Context, groupID, userID string) error {
	if err := a.api.AddGroupMember(ctx, groupID, userID); err != nil {
		return err
	}
	printlnFn("Added", userID, "to group", groupID)
	return nil
}

// RevokeAll revokes every live grant on a file in one shot.
func (a *App) RevokeAll(ctx context.Context, fileID string) error {
	n, err := a.api.BulkRevokeShares(ctx, fileID)
	if err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("Revoked %d share(s) on %s", n, fileID))
	return nil
}
