package wormcore

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// applyConfig fills every flag not set on the command line from the config file or WORMCORE_* environment.
func applyConfig(fs *pflag.FlagSet) error {
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if err != nil || f.Changed || !viper.IsSet(f.Name) {
			return
		}
		if setErr := fs.Set(f.Name, viper.GetString(f.Name)); setErr != nil {
			err = fmt.Errorf("invalid value for %s from config: %w", f.Name, setErr)
		}
	})
	return err
}
