// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package watch

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"syscall"
	"testing"
	"time"
)

// A dependency tree that outgrows the inotify limits ends the watch session;
// anything else is logged and watching continues.
func TestWatcherRunResourceExhaustion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		fatal error
	}{
		{name: "watch limit", fatal: syscall.ENOSPC},
		{name: "process descriptors", fatal: syscall.EMFILE},
		{name: "system descriptors", fatal: fmt.Errorf("inotify_add_watch: %w", syscall.ENFILE)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var logs bytes.Buffer
			w, err := New(Config{
				Stdout: io.Discard,
				Logger: slog.New(slog.NewTextHandler(&logs, nil)),
			})
			if err != nil {
				t.Fatal(err)
			}

			errCh := make(chan error, 1)
			go func() { errCh <- w.Run(t.Context()) }()

			w.fsw.Errors <- syscall.EACCES
			w.fsw.Errors <- tt.fatal

			select {
			case err := <-errCh:
				if !errors.Is(err, tt.fatal) {
					t.Errorf("Run() error = %v, want %v", err, tt.fatal)
				}
			case <-time.After(5 * time.Second):
				t.Fatal("Run() kept going after a fatal error")
			}

			if !strings.Contains(logs.String(), "fsnotify error") {
				t.Errorf("permission error was not logged:\n%s", logs.String())
			}
		})
	}
}

func TestIsFatalFsnotifyError(t *testing.T) {
	t.Parallel()

	for _, err := range []error{syscall.EPERM, syscall.EACCES, syscall.ENOENT, errors.New("queue overflow")} {
		if isFatalFsnotifyError(err) {
			t.Errorf("isFatalFsnotifyError(%v) = true, want false", err)
		}
	}
}
