package main

import (
	"os"
	"strings"

	"github.com/juju/errors"
	flag "github.com/spf13/pflag"
)

// envName maps a flag name to its environment variable: prefix + upper
// case name with dashes as underscores.
func envName(prefix, name string) string {
	return prefix + strings.Replace(strings.ToUpper(name), "-", "_", -1)
}

// setFromEnv fills every flag not given on the command line from its
// environment variable. Call it after fs.Parse.
func setFromEnv(fs *flag.FlagSet, prefix string, lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	unset := make(map[string]*flag.Flag)
	fs.VisitAll(func(f *flag.Flag) {
		unset[f.Name] = f
	})
	fs.Visit(func(f *flag.Flag) {
		delete(unset, f.Name)
	})

	for name, f := range unset {
		v, ok := lookup(envName(prefix, name))
		if !ok || v == "" {
			continue
		}
		if err := f.Value.Set(v); err != nil {
			return errors.Annotatef(err, "%s", envName(prefix, name))
		}
		f.Changed = true
	}
	return nil
}
