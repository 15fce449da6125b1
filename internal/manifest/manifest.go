package manifest

import (
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"

	runixerrors "github.com/joshdevyn/Runix-sub000/pkg/errors"
)

// Manifest is the immutable descriptor used to launch a driver. It is loaded
// once at discovery time and never mutated.
type Manifest struct {
	ID      string   `yaml:"id" validate:"required,driver_id"`
	Name    string   `yaml:"name" validate:"required,min=1,max=100"`
	Version string   `yaml:"version" validate:"required,semver"`
	Command string   `yaml:"command" validate:"required,min=1"`
	Args    []string `yaml:"args,omitempty"`
	// Port pins the driver to a fixed port; zero means an ephemeral port is
	// allocated at start time.
	Port int `yaml:"port,omitempty" validate:"omitempty,min=0,max=65535"`
}

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate

	semverPattern   = regexp.MustCompile(`^\d+\.\d+(?:\.\d+)?(?:-[0-9A-Za-z-.]+)?(?:\+[0-9A-Za-z-.]+)?$`)
	driverIDPattern = regexp.MustCompile(`^[a-z0-9_-]+$`)
)

func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()

		_ = v.RegisterValidation("semver", func(fl validator.FieldLevel) bool {
			return semverPattern.MatchString(fl.Field().String())
		})

		_ = v.RegisterValidation("driver_id", func(fl validator.FieldLevel) bool {
			return driverIDPattern.MatchString(fl.Field().String())
		})

		validateInst = v
	})

	return validateInst
}

// Validate performs schema validation on a single manifest.
func Validate(m *Manifest) error {
	if m == nil {
		return runixerrors.NewValidationError("manifest", "manifest is nil", nil)
	}

	if err := validatorInstance().Struct(m); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			first := errs[0]
			return runixerrors.NewValidationError(first.Namespace(), "failed "+first.Tag()+" validation", err)
		}
		return runixerrors.NewValidationError("manifest", err.Error(), err)
	}

	return nil
}
