package notify

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotInitialized is the fixed error every operation other than
// Init/Destroy/IsInitialized and event registration fails with while the
// kit is uninitialized.
var ErrNotInitialized = errors.New("notification kit is not initialized; call Init first")

// ConfigError reports a provider configuration that failed validation. It
// carries every missing or malformed field, not just the first.
type ConfigError struct {
	Provider ProviderKind
	Fields   []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s config: missing or malformed fields: %s",
		e.Provider, strings.Join(e.Fields, ", "))
}

// ProviderInitError reports that the backend SDK could not be loaded or
// constructed.
type ProviderInitError struct {
	Provider ProviderKind
	Err      error
}

func (e *ProviderInitError) Error() string {
	return fmt.Sprintf("provider %s failed to initialize: %v", e.Provider, e.Err)
}

func (e *ProviderInitError) Unwrap() error { return e.Err }

// TokenError reports a genuine token retrieval or refresh failure. Token
// operations are the one place the kit fails loudly, because a silent
// failure would hide the caller's inability to register for push.
type TokenError struct {
	Op  string
	Err error
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("token %s failed: %v", e.Op, e.Err)
}

func (e *TokenError) Unwrap() error { return e.Err }

// SubscriptionError reports a topic operation attempted without the
// device identity it requires.
type SubscriptionError struct {
	Topic  string
	Reason string
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscription to %q failed: %s", e.Topic, e.Reason)
}

// UnsupportedOperationError reports an operation that has no meaning on
// the current platform or provider.
type UnsupportedOperationError struct {
	Op     string
	Reason string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("operation %s is not supported: %s", e.Op, e.Reason)
}

// ModuleLoadError reports a required optional module that could not be
// loaded, naming the missing module so the caller can surface an
// actionable message.
type ModuleLoadError struct {
	Module string
	Err    error
}

func (e *ModuleLoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("module %q is not available: %v", e.Module, e.Err)
	}
	return fmt.Sprintf("module %q is not available: no factory registered", e.Module)
}

func (e *ModuleLoadError) Unwrap() error { return e.Err }
