package config

import (
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"

	"taskinfer/pkg/nuxt"
	"taskinfer/pkg/plugin"
	"taskinfer/pkg/vite"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		// registration only fails on an empty tag or nil func
		_ = validate.RegisterValidation("target_name", validTargetName)
	})
	return validate
}

// validTargetName rejects names the target graph cannot address: a leading
// caret means "same target in dependencies" and a colon separates project
// from target.
func validTargetName(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	if name == "" || strings.HasPrefix(name, "^") || strings.Contains(name, ":") {
		return false
	}
	return !strings.ContainsFunc(name, unicode.IsSpace)
}

// Validate checks cfg against its struct constraints and rejects target names
// shared by two roles of one family, defaults included
func Validate(cfg *Config) error {
	if err := structValidator().Struct(cfg); err != nil {
		return err
	}

	families := []struct {
		name  string
		opts  plugin.Options
		roles []plugin.Role
	}{
		{"vite", cfg.Plugins.Vite, vite.Roles},
		{"nuxt", cfg.Plugins.Nuxt, nuxt.Roles},
	}
	for _, f := range families {
		if err := plugin.NormalizeOptions(f.opts, f.roles...).CheckUnique(); err != nil {
			return fmt.Errorf("plugins.%s: %w", f.name, err)
		}
	}
	return nil
}
