package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mvogonkachristophe0112/privora12-sub002/internal/client/api"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/common"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/cryptox"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/netx"
)

// uploadBlob is a test seam for the presigned PUT upload.
var uploadBlob = netx.UploadToPresignedURL

var getConfirm = GetConfirm

// ListFiles prints the files the current user owns.
func (a *App) ListFiles(ctx context.Context) error {
	files, err := a.api.ListFiles(ctx)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		printlnFn("No files yet. Use 'upload <path>' to add one.")
		return nil
	}
	for _, f := range files {
		printlnFn(fmt.Sprintf("%s  %-30s %10d bytes  %s%s",
			f.ID, f.DisplayName, f.Size, f.UploadStatus, encryptedMark(f.Encrypted)))
	}
	return nil
}

// Upload registers a local file with the server, ships the content to the
// presigned URL and marks the upload complete. The user may opt into
// client-side encryption, in which case the passphrase never leaves this
// process and the server only ever sees ciphertext.
func (a *App) Upload(ctx context.Context, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	encrypt := getConfirm(a.reader, "Encrypt before upload?", os.Stdout)
	payload, err := a.preparePayload(content, encrypt)
	if err != nil {
		return err
	}

	name := filepath.Base(path)
	file, task, err := a.api.RegisterUpload(ctx, api.UploadRequest{
		DisplayName:  name,
		OriginalName: name,
		Size:         int64(len(payload)),
		Encrypted:    encrypt,
	})
	if err != nil {
		return err
	}

	if err := uploadBlob(ctx, task.URL, payload); err != nil {
		return err
	}
	if err := a.api.CompleteUpload(ctx, file.ID); err != nil {
		return err
	}

	printlnFn("Uploaded", name, "as", file.ID)
	return nil
}

// NewVersion uploads new content for an existing file as its next version.
// Whether the payload is encrypted follows the file's original setting, so a
// file's history is either all ciphertext or all plaintext.
func (a *App) NewVersion(ctx context.Context, fileID, path string) error {
	file, err := a.api.GetFile(ctx, fileID)
	if err != nil {
		return err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	payload, err := a.preparePayload(content, file.Encrypted)
	if err != nil {
		return err
	}

	note, err := getSimpleText(a.reader, "Change note (optional)", os.Stdout)
	if err != nil {
		return err
	}

	version, task, err := a.api.CreateVersion(ctx, fileID, int64(len(payload)), note)
	if err != nil {
		return err
	}

	if err := uploadBlob(ctx, task.URL, payload); err != nil {
		return err
	}
	if err := a.api.CompleteUpload(ctx, fileID); err != nil {
		return err
	}

	printlnFn(fmt.Sprintf("Created version %d of %s", version.Version, fileID))
	return nil
}

// Versions prints the version history of a file, newest last.
func (a *App) Versions(ctx context.Context, fileID string) error {
	versions, err := a.api.ListVersions(ctx, fileID)
	if err != nil {
		return err
	}
	for _, v := range versions {
		note := v.ChangeNote
		if note == "" {
			note = "-"
		}
		printlnFn(fmt.Sprintf("v%-4d %10d bytes  %s  %s",
			v.Version, v.Size, v.CreatedAt.Format("2006-01-02 15:04"), note))
	}
	return nil
}

// preparePayload optionally encrypts content with a passphrase prompted from
// the user.
func (a *App) preparePayload(content []byte, encrypt bool) ([]byte, error) {
	if !encrypt {
		return content, nil
	}
	passphrase, err := getPassword(os.Stdout)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(passphrase)
	return cryptox.Encrypt(content, passphrase)
}

func encryptedMark(encrypted bool) string {
	if encrypted {
		return "  [encrypted]"
	}
	return ""
}
