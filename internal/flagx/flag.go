// Package flagx helps several components parse flags from the same
// os.Args without tripping over each other's definitions.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// FilterArgs keeps only the arguments belonging to the flags in keep,
// so a flag.FlagSet that defines just those flags can parse the result
// without choking on anything else on the command line.
//
// Both "-f value" and "-f=value" spellings are recognized. For the
// separated spelling the following argument is treated as the value
// unless it looks like another flag.
func FilterArgs(args []string, keep []string) []string {
	wanted := make(map[string]bool, len(keep))
	for _, name := range keep {
		wanted[name] = true
	}

	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if name, _, found := strings.Cut(arg, "="); found && strings.HasPrefix(arg, "-") {
			if wanted[name] {
				out = append(out, arg)
			}
			continue
		}

		if !wanted[arg] {
			continue
		}
		out = append(out, arg)
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			out = append(out, args[i+1])
			i++
		}
	}
	return out
}

// JsonConfigFlags extracts the config file path given via -c or -config,
// returning "" when neither is present. Other arguments are left for their
// owning components to parse.
func JsonConfigFlags() string {
	args := FilterArgs(os.Args[1:], []string{"-c", "-config"})

	fs := flag.NewFlagSet("json", flag.ContinueOnError)
	var path string
	fs.StringVar(&path, "config", "", "path to config file")
	fs.StringVar(&path, "c", "", "path to config file (short)")
	_ = fs.Parse(args)

	return path
}
