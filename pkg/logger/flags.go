package logger

import (
	"log/slog"

	"github.com/spf13/pflag"
)

// FromFlags builds a logger from the root command's persistent --debug,
// --json and --pretty flags. Missing flags read as false. Extra options are
// applied last.
func FromFlags(flags *pflag.FlagSet, opts ...Option) *slog.Logger {
	debug, _ := flags.GetBool("debug")
	json, _ := flags.GetBool("json")
	pretty, _ := flags.GetBool("pretty")

	all := append([]Option{WithDebug(debug), WithJSON(json), WithPretty(pretty)}, opts...)
	return New(all...)
}
