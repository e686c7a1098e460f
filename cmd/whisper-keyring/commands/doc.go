// Package commands defines the whisper-keyring CLI.
//
// Commands
//
//   - init            Create a new identity and print its recovery phrase
//   - recover         Restore an identity from its recovery phrase
//   - status          Show the provisioning state
//   - export-backup   Write a password-protected backup of the phrase
//   - restore-backup  Restore an identity from a backup file
//   - session         Store, print or clear the session token
//   - wipe            Delete the local identity and every stored secret
//   - serve           Run the loopback agent until interrupted
//
// The root command loads the configuration and opens the keyring stack
// before any subcommand runs, so handlers share one wired app context.
package commands
