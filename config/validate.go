package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// newValidator reports fields by their YAML names so errors read like config paths.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks field constraints and the combinations of cloud driver and credentials source.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return describe(verrs[0])
		}
		return err
	}

	s := c.Storage
	switch s.Driver {
	case "s3":
		if s.CredentialsSource != "env" && s.CredentialsSource != "static" {
			return fmt.Errorf("storage.credentials_source %q is not supported by the s3 driver (want env or static)", s.CredentialsSource)
		}
		if s.Endpoint == "" {
			return errors.New("storage.endpoint is required for the s3 driver")
		}
	case "gcs":
		if s.CredentialsSource != "file" && s.CredentialsSource != "adc" {
			return fmt.Errorf("storage.credentials_source %q is not supported by the gcs driver (want file or adc)", s.CredentialsSource)
		}
		if s.CredentialsSource == "file" && s.CredentialsFile == "" {
			return errors.New("storage.credentials_file is required when credentials_source is file")
		}
	}

	if c.Fetch.Provider == "polygon" && c.Fetch.PolygonAPIKey == "" {
		return errors.New("fetch.polygon_api_key is required for the polygon provider")
	}

	return nil
}

func describe(fe validator.FieldError) error {
	// Namespace is "Config.storage.driver"; drop the type name.
	_, field, _ := strings.Cut(fe.Namespace(), ".")

	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", field)
	case "oneof":
		return fmt.Errorf("%s must be one of [%s], got %q", field, fe.Param(), fe.Value())
	case "min":
		return fmt.Errorf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Errorf("%s must be at most %s", field, fe.Param())
	default:
		return fmt.Errorf("%s failed %s validation", field, fe.Tag())
	}
}
