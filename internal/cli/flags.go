package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/launchbynttdata/launch-source-stamper/internal/config"
)

type flagBase struct {
	fs      *pflag.FlagSet
	setting string
	name    string
	envKey  string
}

func newFlagBase(fs *pflag.FlagSet, name, envKey string) flagBase {
	return flagBase{fs: fs, setting: name, name: name, envKey: envKey}
}

func (b flagBase) changed() bool {
	if b.fs == nil || b.name == "" {
		return false
	}
	return b.fs.Changed(b.name)
}

func describeUsage(usage, envKey string) string {
	trimmed := strings.TrimSpace(usage)
	if envKey == "" {
		return trimmed
	}
	if trimmed == "" {
		return fmt.Sprintf("env: %s", envKey)
	}
	return fmt.Sprintf("%s (env: %s)", trimmed, envKey)
}

type stringFlag struct {
	base       flagBase
	defaultVal string
	value      string
}

func bindStringFlag(fs *pflag.FlagSet, name, short, envKey, defaultVal, usage string) *stringFlag {
	f := &stringFlag{
		base:       newFlagBase(fs, name, envKey),
		defaultVal: defaultVal,
		value:      defaultVal,
	}
	if fs == nil {
		return f
	}
	if short != "" {
		fs.StringVarP(&f.value, name, short, defaultVal, describeUsage(usage, envKey))
	} else {
		fs.StringVar(&f.value, name, defaultVal, describeUsage(usage, envKey))
	}
	return f
}

// Value resolves the flag. fileVal, when non-empty, replaces the built-in default.
func (f *stringFlag) Value(resolver config.Resolver, fileVal string) string {
	cliVal := strings.TrimSpace(f.value)
	return resolver.String(f.base.setting, f.base.envKey, cliVal, f.base.changed(), config.Or(fileVal, f.defaultVal))
}

type boolFlag struct {
	base       flagBase
	defaultVal bool
	value      bool
}

func bindBoolFlag(fs *pflag.FlagSet, name, short, envKey string, defaultVal bool, usage string) *boolFlag {
	f := &boolFlag{
		base:       newFlagBase(fs, name, envKey),
		defaultVal: defaultVal,
		value:      defaultVal,
	}
	if fs == nil {
		return f
	}
	if short != "" {
		fs.BoolVarP(&f.value, name, short, defaultVal, describeUsage(usage, envKey))
	} else {
		fs.BoolVar(&f.value, name, defaultVal, describeUsage(usage, envKey))
	}
	return f
}

func (f *boolFlag) Value(resolver config.Resolver, fileVal bool) (bool, error) {
	return resolver.Bool(f.base.setting, f.base.envKey, f.value, f.base.changed(), f.defaultVal || fileVal)
}

type intFlag struct {
	base       flagBase
	defaultVal int
	value      int
}

func bindIntFlag(fs *pflag.FlagSet, name, short, envKey string, defaultVal int, usage string) *intFlag {
	f := &intFlag{
		base:       newFlagBase(fs, name, envKey),
		defaultVal: defaultVal,
		value:      defaultVal,
	}
	if fs == nil {
		return f
	}
	if short != "" {
		fs.IntVarP(&f.value, name, short, defaultVal, describeUsage(usage, envKey))
	} else {
		fs.IntVar(&f.value, name, defaultVal, describeUsage(usage, envKey))
	}
	return f
}

// Value resolves the flag. A non-zero fileVal replaces the built-in default.
func (f *intFlag) Value(resolver config.Resolver, fileVal int) (int, error) {
	def := f.defaultVal
	if fileVal != 0 {
		def = fileVal
	}
	return resolver.Int(f.base.setting, f.base.envKey, f.value, f.base.changed(), def)
}

type stringSliceFlag struct {
	base       flagBase
	defaultVal []string
	value      []string
}

func bindStringSliceFlag(fs *pflag.FlagSet, name, short, envKey string, defaultVal []string, usage string) *stringSliceFlag {
	f := &stringSliceFlag{
		base:       newFlagBase(fs, name, envKey),
		defaultVal: append([]string(nil), defaultVal...),
		value:      append([]string(nil), defaultVal...),
	}
	if fs == nil {
		return f
	}
	if short != "" {
		fs.StringSliceVarP(&f.value, name, short, defaultVal, describeUsage(usage, envKey))
	} else {
		fs.StringSliceVar(&f.value, name, defaultVal, describeUsage(usage, envKey))
	}
	return f
}

// Value resolves the flag. A non-empty fileVal replaces the built-in default.
func (f *stringSliceFlag) Value(resolver config.Resolver, fileVal []string) []string {
	def := f.defaultVal
	if len(fileVal) > 0 {
		def = fileVal
	}
	return resolver.StringSlice(f.base.setting, f.base.envKey, f.value, f.base.changed(), def)
}
