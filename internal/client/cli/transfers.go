package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mvogonkachristophe0112/privora12-sub002/internal/transfer"
)

// Fetch authorizes a download with the server and hands the presigned source
// to the transfer engine. The command returns as soon as the transfer is
// queued; 'transfers' shows its progress.
func (a *App) Fetch(ctx context.Context, fileID string) error {
	var password string
	if getConfirm(a.reader, "Is this share password-protected?", os.Stdout) {
		pw, err := getPassword(os.Stdout)
		if err != nil {
			return err
		}
		password = string(pw)
	}

	src, err := a.api.Download(ctx, fileID, password)
	if err != nil {
		return err
	}

	file, err := a.api.GetFile(ctx, fileID)
	if err != nil {
		return err
	}

	var passphrase []byte
	if src.Encrypted {
		printlnFn("Content is encrypted; the passphrase is needed to decrypt it after download.")
		passphrase, err = getPassword(os.Stdout)
		if err != nil {
			return err
		}
	}

	id, err := a.scheduler.Submit(transfer.Request{
		URL:        src.URL,
		Dest:       filepath.Join(a.downloadDir, file.DisplayName),
		Size:       src.Size,
		Encrypted:  src.Encrypted,
		Passphrase: passphrase,
		Name:       file.DisplayName,
	})
	if err != nil {
		return err
	}

	printlnFn("Queued transfer", id, "->", filepath.Join(a.downloadDir, file.DisplayName))
	return nil
}

// Transfers prints all transfers of this session in submission order.
func (a *App) Transfers(context.Context) error {
	list := a.scheduler.List()
	if len(list) == 0 {
		printlnFn("No transfers this session.")
		return nil
	}
	for _, p := range list {
		printlnFn(formatProgress(p))
	}
	return nil
}

func (a *App) PauseTransfer(id string) error   { return a.scheduler.Pause(id) }
func (a *App) ResumeTransfer(id string) error  { return a.scheduler.Resume(id) }
func (a *App) CancelTransfer(id string) error  { return a.scheduler.Cancel(id) }
func (a *App) RetryTransfer(id string) error   { return a.scheduler.Retry(id) }
func (a *App) DismissTransfer(id string) error { return a.scheduler.Ack(id) }

// onProgress prints state transitions. Byte-level progress is deliberately
// quiet; the 'transfers' command shows live numbers on demand.
func (a *App) onProgress(p transfer.Progress) {
	switch p.Status {
	case transfer.StatusCompleted, transfer.StatusFailed, transfer.StatusPaused, transfer.StatusCancelled:
		printlnFn(formatProgress(p))
	}
}

func formatProgress(p transfer.Progress) string {
	line := fmt.Sprintf("%s  %-20s %-12s %d", p.ID, p.Name, p.Status, p.BytesDone)
	if p.TotalBytes > 0 {
		line += fmt.Sprintf("/%d bytes (%d%%)", p.TotalBytes, p.BytesDone*100/p.TotalBytes)
	} else {
		line += " bytes"
	}
	if p.Status == transfer.StatusDownloading && p.Speed > 0 {
		line += fmt.Sprintf("  %.0f B/s", p.Speed)
		if p.ETA > 0 {
			line += fmt.Sprintf("  ETA %s", p.ETA.Round(time.Second))
		}
	}
	if p.Err != nil {
		line += "  error: " + p.Err.Error()
	}
	return line
}
