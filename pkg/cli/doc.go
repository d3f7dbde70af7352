/*
Package cli provides command-line interface utilities for Meridian.

The cli package includes the error types and signal handling helpers used by
the meridian command.

Error Types:

Commands wrap failures in ConfigError or CommandError so the root command
can render them uniformly:

	if err := config.LoadConfig(path); err != nil {
		return cli.NewConfigError("", err.Error())
	}

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx := cli.SetupSignalHandler()
	// Use ctx for operations that should be cancelled on shutdown

A second signal skips the graceful drain and exits the process immediately.
*/
package cli
