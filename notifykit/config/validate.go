package config

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/tinywideclouds/go-notification-kit/pkg/notify"
)

var structValidator = newStructValidator()

// newStructValidator names fields by their yaml tag so validation errors
// read like the config file, not like Go struct fields.
func newStructValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// ValidateProviderConfig checks a provider credential bag for
// completeness, collecting every missing required field rather than
// stopping at the first. A config carrying an already-initialized backend
// handle bypasses field validation entirely.
func ValidateProviderConfig(pc notify.ProviderConfig) error {
	switch pc.Kind {
	case notify.ProviderFCM:
		if pc.FCM == nil {
			return &notify.ConfigError{Provider: pc.Kind, Fields: []string{"fcm"}}
		}
		if pc.FCM.ExistingClient != nil {
			return nil
		}
		return collectFieldErrors(pc.Kind, structValidator.Struct(pc.FCM))

	case notify.ProviderOneSignal:
		if pc.OneSignal == nil {
			return &notify.ConfigError{Provider: pc.Kind, Fields: []string{"onesignal"}}
		}
		if pc.OneSignal.ExistingClient != nil {
			return nil
		}
		return collectFieldErrors(pc.Kind, structValidator.Struct(pc.OneSignal))

	default:
		return &notify.ConfigError{Provider: pc.Kind, Fields: []string{"kind"}}
	}
}

func collectFieldErrors(kind notify.ProviderKind, err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return &notify.ConfigError{Provider: kind, Fields: fields}
}
