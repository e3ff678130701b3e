package config

import (
	"context"
	"errors"
	"io/fs"
	"sync"

	"github.com/go-ini/ini"
	"github.com/mitchellh/go-homedir"
)

// DefaultPath is the configuration file used when none is given explicitly.
const DefaultPath = "~/.xchm/config.ini"

// Loader can be used for loading xchm configuration as well as overridden with default settings.
type Loader struct {
	// Profile is the AWS profile to use, taking precedence over the profile from the [s3] section.
	Profile string
	// Root is the bookshelf root to use, taking precedence over the root from the [bookshelf] section.
	Root string

	cfg           *ini.File
	s3clientCache sync.Map
}

// Load reads the configuration file at path, or DefaultPath if path is empty.
//
// A missing file is not an error; the Loader keeps returning defaults. The expanded path of the file is returned.
func (l *Loader) Load(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if path == "" {
		path = DefaultPath
	}

	path, err := homedir.Expand(path)
	if err != nil {
		return "", err
	}

	cfg, err := ini.Load(path)
	if err != nil {
		l.cfg = ini.Empty()
		if errors.Is(err, fs.ErrNotExist) {
			return path, nil
		}

		return path, err
	}

	l.cfg = cfg
	return path, nil
}

func (l *Loader) section(name string) *ini.Section {
	if l.cfg == nil {
		l.cfg = ini.Empty()
	}

	return l.cfg.Section(name)
}

// DefaultLoader is the default Loader instance for package-level methods.
var DefaultLoader = &Loader{cfg: ini.Empty()}

// Load calls Loader.Load on the DefaultLoader instance.
func Load(ctx context.Context, path string) (string, error) {
	return DefaultLoader.Load(ctx, path)
}
