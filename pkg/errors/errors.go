// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeCardSchemaValidateInvalid Code = "card.schema.validate.invalid"
	CodeCardFormMissingField      Code = "card.form.missing_field.invalid"
	CodeCardFormConstraint        Code = "card.form.constraint.invalid"
	CodeCardConditionInvalid      Code = "card.condition.parse.invalid"
	CodeCardFileParseInvalid      Code = "card.file.parse.invalid_format"

	CodeRegistryCardConflict Code = "registry.card.conflict"
	CodeRegistryCardNotFound Code = "registry.card.not_found"

	CodeDispatchToolNotFound       Code = "dispatch.tool.not_found"
	CodeDispatchCapabilityNotFound Code = "dispatch.capability.not_found"
	CodeDispatchCardNotFound       Code = "dispatch.card.not_found"
	CodeDispatchActionNotFound     Code = "dispatch.action.not_found"
	CodeDispatchCardNotSavable     Code = "dispatch.card.save.invalid"
	CodeDispatchExecutionFailure   Code = "dispatch.tool.execution.failure"
	CodeDispatchRequestInvalid     Code = "dispatch.request.invalid"

	CodeDiscoveryCapabilityUnbound Code = "discovery.capability.unbound"
	CodeDiscoveryPluginFailure     Code = "discovery.plugin.failure"
	CodeDiscoveryWatchFailure      Code = "discovery.watch.failure"

	CodeRedactRuleInvalid Code = "redact.rule.invalid"

	CodeStoreDatabaseFailure    Code = "store.database.failure"
	CodeStoreBackendUnsupported Code = "store.backend.unsupported"
	CodeStoreEntityNotFound     Code = "store.entity.get.not_found"
	CodeStoreInvalidInput       Code = "store.invalid_input"

	CodeSecretNotFound       Code = "secret.get.not_found"
	CodeSecretBackendFailure Code = "secret.backend.failure"
	CodeSecretInvalidInput   Code = "secret.invalid_input"
	CodeSecretResolveFailure Code = "secret.resolve.failure"
	CodeSecretUnsupported    Code = "secret.backend.unsupported"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigParseInvalidFormat   Code = "config.parse.invalid_format"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodePluginManifestValidateInvalid    Code = "plugin.manifest.validate.invalid"
	CodePluginLifecycleTransitionInvalid Code = "plugin.lifecycle.transition.invalid"
	CodePluginRegisterConflict           Code = "plugin.register.conflict"
	CodePluginNotFound                   Code = "plugin.not_found"
	CodePluginCloseFailure               Code = "plugin.close.failure"

	CodeToolUpstreamFailure Code = "tool.upstream.failure"
	CodeToolInputInvalid    Code = "tool.input.invalid"
	CodeToolAuthForbidden   Code = "tool.auth.forbidden"

	CodeServerRequestInvalid  Code = "server.request.invalid"
	CodeServerInternalFailure Code = "server.internal.failure"
	CodeServerEntityNotFound  Code = "server.entity.not_found"
	CodeServerConfigInvalid   Code = "server.config.invalid"
	CodeServerStartFailure    Code = "server.start.failure"
	CodeServerShutdownFailure Code = "server.shutdown.failure"
	CodeServerNotImplemented  Code = "server.method.not_implemented"

	CodeCLIGatewayNotRunning Code = "cli.gateway.not_running"
	CodeCLIRequestFailure    Code = "cli.request.failure"
	CodeCLIResponseInvalid   Code = "cli.response.invalid"
	CodeCLISetupFailure      Code = "cli.setup.failure"
	CodeCLIInputInvalid      Code = "cli.input.invalid"
)

// Coder is implemented by typed errors that carry their own code.
type Coder interface {
	ErrorCode() Code
}

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// FieldValue creates a structured error field.
func FieldValue(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

// Field is kept as the primary helper for terse callsites.
func Field(key string, value any) Attr {
	return FieldValue(key, value)
}

func FieldPlugin(value string) Attr {
	return Field("plugin", value)
}

func FieldCard(value string) Attr {
	return Field("card_id", value)
}

func FieldTool(value string) Attr {
	return Field("tool_name", value)
}

func FieldCapability(value string) Attr {
	return Field("capability", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).Wrapf(err, format, args...)
}

// With adds structured fields to an existing error chain.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeServerInternalFailure
	}

	return oops.Code(code).With(flatten(fields)...).Wrap(err)
}

// CodeOf returns the code of the deepest typed or oops error in the chain.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	var coder Coder
	if stderrors.As(err, &coder) {
		return coder.ErrorCode()
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}

	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}

	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsConflict(err error) bool {
	return reason(CodeOf(err)) == "conflict"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_format"
}

func IsForbidden(err error) bool {
	r := reason(CodeOf(err))
	return r == "forbidden" || r == "denied"
}

func IsUpstreamFailure(err error) bool {
	code := CodeOf(err)
	return strings.Contains(string(code), "upstream") && reason(code) == "failure"
}

func HTTPStatus(err error) int {
	switch {
	case HasCode(err, CodeServerNotImplemented):
		return http.StatusNotImplemented
	case IsNotFound(err):
		return http.StatusNotFound
	case IsConflict(err):
		return http.StatusConflict
	case IsInvalidInput(err):
		return http.StatusBadRequest
	case IsForbidden(err):
		return http.StatusForbidden
	case IsUpstreamFailure(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func Join(errs ...error) error {
	return oops.Code(CodeServerInternalFailure).Wrap(stderrors.Join(errs...))
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
