// Package cli is the collabnotes command line client.
//
// [Main] parses the global flags and a subcommand, builds a
// [collabnotes.App], restores the persisted session and runs the subcommand.
// The session is kept between invocations in the state backend (a YAML file
// under the user config directory by default), so
//
//	collabnotes login -email ada@example.com -password secret
//	collabnotes list -tag work
//
// lists Ada's notes tagged work. When the API rejects the stored credential
// the session is dropped and the error tells the user to log in again; that
// is the only place the client "navigates".
//
// # Environment Variables
//
//	COLLABNOTES_API_URL        - API base URL (default: http://localhost:8000)
//	COLLABNOTES_PUBLIC_ORIGIN  - origin public links are built on (default: http://localhost:3000)
//	COLLABNOTES_STATE          - state file or database path
//	COLLABNOTES_STATE_BACKEND  - file, sqlite or memory (default: file)
//	COLLABNOTES_STATE_CODEC    - json or cbor (default: json)
//	COLLABNOTES_LOG_LEVEL      - zerolog level (default: warn)
//	COLLABNOTES_LOG_FILE       - rotated log file instead of stderr
//	COLLABNOTES_RATE_LIMIT     - requests per second, 0 for unlimited
//	COLLABNOTES_STYLE          - glamour style for Markdown (default: auto)
//	COLLABNOTES_CONFIG         - YAML configuration file
package cli

import (
	"context"
	"fmt"
	"io"

	collabnotes "github.com/collabnotes/collabnotes.go"
	"github.com/collabnotes/collabnotes.go/pkg/client"
	"github.com/collabnotes/collabnotes.go/pkg/logger"
)

// Main runs the command line args and writes its output to out. It can be
// called from tests without building the binary.
func Main(ctx context.Context, args []string, out io.Writer) error {
	cmd, config, err := Parse(args)
	if err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}

	logData, err := logger.New().
		FromPath(config.Log.File).
		WithLevel(config.Log.Level).
		Console(config.Log.File == "").
		Make()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logData.Close()

	opts := config.Options()
	opts.Logger = &logData.Logger
	app, err := collabnotes.New(opts)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	defer app.Close()

	// A persisted session the API rejects is purged by Restore; the command
	// then runs anonymous and fails for a missing credential.
	expired := false
	if _, ok := cmd.(sessionless); !ok {
		_, persisted := app.Session.PersistedUser()
		expired = !app.Restore(ctx) && persisted
	}

	r := &runner{app: app, config: config, out: out}
	if err := r.run(ctx, cmd); err != nil {
		return explain(cmd, err, expired)
	}
	return nil
}

// explain turns credential failures into the hint to log in again.
func explain(cmd Command, err error, expired bool) error {
	kind := client.KindOf(err)
	if kind == client.KindUnauthorized || (kind == client.KindMissingCredential && expired) {
		return fmt.Errorf("%s: session expired, run collabnotes login: %w", cmd.Name(), err)
	}
	if kind == client.KindMissingCredential {
		return fmt.Errorf("%s: not logged in, run collabnotes login: %w", cmd.Name(), err)
	}
	return fmt.Errorf("%s failed: %w", cmd.Name(), err)
}
