package push

import (
	"fmt"
	"strings"
)

// Provider is a push channel family served by the transport.
type Provider string

const (
	ProviderAPNS        Provider = "APNS"
	ProviderAPNSSandbox Provider = "APNS_SANDBOX"
	ProviderGCM         Provider = "GCM"
)

// AllProviders is the default provider list of a publish call.
func AllProviders() []Provider {
	return []Provider{ProviderGCM, ProviderAPNS, ProviderAPNSSandbox}
}

// ParseProvider accepts the exact envelope key of a known provider.
func ParseProvider(name string) (Provider, error) {
	switch p := Provider(strings.TrimSpace(name)); p {
	case ProviderAPNS, ProviderAPNSSandbox, ProviderGCM:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
}

// Valid reports whether p is one of the known providers.
func (p Provider) Valid() bool {
	_, err := ParseProvider(string(p))
	return err == nil
}

func (p Provider) String() string { return string(p) }

// UnmarshalText rejects unknown providers while decoding a request, so they
// never reach a dispatch call.
func (p *Provider) UnmarshalText(text []byte) error {
	parsed, err := ParseProvider(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
