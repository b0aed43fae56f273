package plugin

import "fmt"

// Options maps each target role to the name the target is registered under.
// Empty fields take the role's default name.
type Options struct {
	BuildTargetName       string `json:"buildTargetName,omitempty" koanf:"buildTargetName" validate:"omitempty,target_name"`
	ServeTargetName       string `json:"serveTargetName,omitempty" koanf:"serveTargetName" validate:"omitempty,target_name"`
	PreviewTargetName     string `json:"previewTargetName,omitempty" koanf:"previewTargetName" validate:"omitempty,target_name"`
	TestTargetName        string `json:"testTargetName,omitempty" koanf:"testTargetName" validate:"omitempty,target_name"`
	ServeStaticTargetName string `json:"serveStaticTargetName,omitempty" koanf:"serveStaticTargetName" validate:"omitempty,target_name"`
}

const (
	DefaultBuildTargetName       = "build"
	DefaultServeTargetName       = "serve"
	DefaultPreviewTargetName     = "preview"
	DefaultTestTargetName        = "test"
	DefaultServeStaticTargetName = "serve-static"
)

// Role is a logical target kind a family can produce
type Role string

const (
	RoleBuild       Role = "build"
	RoleServe       Role = "serve"
	RolePreview     Role = "preview"
	RoleTest        Role = "test"
	RoleServeStatic Role = "serveStatic"
)

// NormalizeOptions fills the default name of every role in roles that opts
// leaves empty. Roles outside roles are cleared so they cannot affect the
// fingerprint of a family that does not produce them.
func NormalizeOptions(opts Options, roles ...Role) Options {
	var normalized Options
	for _, role := range roles {
		switch role {
		case RoleBuild:
			normalized.BuildTargetName = withDefault(opts.BuildTargetName, DefaultBuildTargetName)
		case RoleServe:
			normalized.ServeTargetName = withDefault(opts.ServeTargetName, DefaultServeTargetName)
		case RolePreview:
			normalized.PreviewTargetName = withDefault(opts.PreviewTargetName, DefaultPreviewTargetName)
		case RoleTest:
			normalized.TestTargetName = withDefault(opts.TestTargetName, DefaultTestTargetName)
		case RoleServeStatic:
			normalized.ServeStaticTargetName = withDefault(opts.ServeStaticTargetName, DefaultServeStaticTargetName)
		}
	}
	return normalized
}

func withDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// CheckUnique rejects options that give two roles the same target name; the
// later role would silently replace the earlier one's target. Empty names are
// ignored, so call it on normalized options.
func (o Options) CheckUnique() error {
	named := []struct {
		role Role
		name string
	}{
		{RoleBuild, o.BuildTargetName},
		{RoleServe, o.ServeTargetName},
		{RolePreview, o.PreviewTargetName},
		{RoleTest, o.TestTargetName},
		{RoleServeStatic, o.ServeStaticTargetName},
	}

	seen := make(map[string]Role, len(named))
	for _, n := range named {
		if n.name == "" {
			continue
		}
		if prev, ok := seen[n.name]; ok {
			return fmt.Errorf("target name %q is used by both the %s and %s roles", n.name, prev, n.role)
		}
		seen[n.name] = n.role
	}
	return nil
}
