// Package logging provides leveled, colored logging for dirvault.
//
// Verbosity is controlled by two global CLI flags:
//
//   - -v, --verbose: shows info messages
//   - --debug: shows info and debug messages
//
// Warnings and errors are always shown. The zero Logger is a valid quiet
// logger, which is what library code receives in tests.
//
//	log := logging.Logger{Verbose: verbose, Debug: debug}
//	log.Infof("sealed %d files", n)
package logging
