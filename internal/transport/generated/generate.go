// Package generated holds the chi server bindings and models for api/openapi.yaml.
package generated

//go:generate go run github.com/oapi-codegen/oapi-codegen/v2/cmd/oapi-codegen@v2.4.1 --config=cfg.yaml ../../../api/openapi.yaml
