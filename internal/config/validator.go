// internal/config/validator.go
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"

	"github.com/avivl/editwarning/internal/store"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("cron", func(fl validator.FieldLevel) bool {
		_, err := cron.ParseStandard(fl.Field().String())
		return err == nil
	})
	return v
}

// validateConfig validates all configuration sections
func validateConfig[T store.StoreConfig](cfg *GlobalConfig[T]) error {
	if cfg == nil {
		return errors.New("configuration cannot be nil")
	}

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("field '%s' failed on the '%s' tag", fe.Namespace(), fe.Tag()))
		}
		return errors.New(strings.Join(msgs, "; "))
	}

	storeValue := reflect.ValueOf(cfg.Store)
	if !storeValue.IsValid() || (storeValue.Kind() == reflect.Ptr && storeValue.IsNil()) {
		return errors.New("store configuration cannot be nil")
	}
	if err := cfg.Store.Validate(); err != nil {
		return fmt.Errorf("store configuration error: %w", err)
	}

	if cfg.Observability.ServiceName == "" {
		return errors.New("service name is required")
	}
	if cfg.Observability.ServiceVersion == "" {
		return errors.New("service version is required")
	}
	if cfg.Observability.Environment == "" {
		return errors.New("environment is required")
	}
	if !cfg.Observability.Disabled && cfg.Observability.OTelEndpoint == "" {
		return errors.New("OpenTelemetry endpoint is required")
	}

	return nil
}
