package cli

import "github.com/spf13/pflag"

// bind ties a flag to a config key so the flag overrides file and env.
func (a *app) bind(f *pflag.Flag, key string) {
	if err := a.v.BindPFlag(key, f); err != nil {
		panic("cli: bind " + key + ": " + err.Error())
	}
}
