package compose

import (
	"fmt"

	"github.com/tinywideclouds/go-snspush-service/pkg/push"
)

// Composer builds one provider's native payload.
type Composer interface {
	Provider() push.Provider
	// Compose never mutates its inputs. A non-empty identityID is always
	// placed at data.identity_id.
	Compose(alert push.Alert, data push.Data, options push.Options, identityID string) map[string]any
}

var composers = map[push.Provider]Composer{
	push.ProviderAPNS:        apnsComposer{provider: push.ProviderAPNS},
	push.ProviderAPNSSandbox: apnsComposer{provider: push.ProviderAPNSSandbox},
	push.ProviderGCM:         gcmComposer{},
}

// ComposerFor returns the composer of a known provider.
func ComposerFor(p push.Provider) (Composer, error) {
	c, ok := composers[p]
	if !ok {
		return nil, fmt.Errorf("%w: %q", push.ErrUnknownProvider, string(p))
	}
	return c, nil
}

// ResolveComposers validates a whole provider list up front, so an unknown
// name fails the call before anything is sent.
func ResolveComposers(providers []push.Provider) ([]Composer, error) {
	out := make([]Composer, 0, len(providers))
	for _, p := range providers {
		c, err := ComposerFor(p)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// apnsComposer serves both the production and sandbox Apple channels.
type apnsComposer struct {
	provider push.Provider
}

func (c apnsComposer) Provider() push.Provider { return c.provider }

func (c apnsComposer) Compose(alert push.Alert, data push.Data, options push.Options, identityID string) map[string]any {
	payload := map[string]any{
		"aps": map[string]any{
			"alert": map[string]any(NormalizeAlert(alert)),
		},
		"data": cloneMap(data),
	}
	override := overrideFor(options, c.provider)
	if override == nil && c.provider == push.ProviderAPNSSandbox {
		override = overrideFor(options, push.ProviderAPNS)
	}
	return finish(payload, override, identityID)
}

type gcmComposer struct{}

func (gcmComposer) Provider() push.Provider { return push.ProviderGCM }

func (gcmComposer) Compose(alert push.Alert, data push.Data, options push.Options, identityID string) map[string]any {
	payload := map[string]any{
		"notification": cloneMap(alert),
		"data":         cloneMap(data),
	}
	return finish(payload, overrideFor(options, push.ProviderGCM), identityID)
}

func finish(payload, override map[string]any, identityID string) map[string]any {
	if len(override) > 0 {
		payload = DeepMerge(payload, override)
	}
	if identityID != "" {
		data, ok := asMap(payload["data"])
		if !ok {
			data = map[string]any{}
		}
		data["identity_id"] = identityID
		payload["data"] = data
	}
	return payload
}

// overrideFor returns options[provider] when it is a mapping.
func overrideFor(options push.Options, p push.Provider) map[string]any {
	m, ok := asMap(options[string(p)])
	if !ok || len(m) == 0 {
		return nil
	}
	return m
}
