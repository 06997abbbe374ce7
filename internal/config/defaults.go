package config

import "github.com/murka/selectel-storage-client/pkg/selectel"

// Default values for configuration options, the first layer of the override
// chain.
const (
	defaultAuthVersion    = int(selectel.DefaultProtocol)
	defaultSSL            = true
	defaultLogLevel       = "warn"
	defaultConnectTimeout = "10s"
	defaultDataTimeout    = "0"
)

// DefaultConfig returns a Config populated with all default values. TOML
// decoding starts from it so unset fields keep their defaults.
func DefaultConfig() *Config {
	return &Config{
		AuthVersion: defaultAuthVersion,
		SSL:         defaultSSL,
		Network: NetworkConfig{
			ConnectTimeout: defaultConnectTimeout,
			DataTimeout:    defaultDataTimeout,
		},
		Logging: LoggingConfig{
			LogLevel: defaultLogLevel,
		},
		Endpoints: EndpointsConfig{
			APIHost:           selectel.DefaultAPIHost,
			AuthHost:          selectel.DefaultAuthHost,
			StorageHostSuffix: selectel.DefaultStorageHostSuffix,
		},
	}
}
